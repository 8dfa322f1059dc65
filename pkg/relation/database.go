package relation

// DatabaseRelation is the outermost level of a relation path. The level is
// optional: an empty name is left out of rendered paths.
type DatabaseRelation struct {
	name   string
	render *RenderPolicy
}

// NewDatabaseRelation builds the database level directly. Parsers for
// warehouses without databases return NewDatabaseRelation("", render).
func NewDatabaseRelation(name string, render *RenderPolicy) DatabaseRelation {
	return DatabaseRelation{name: name, render: render}
}

// Name returns the database name.
func (d DatabaseRelation) Name() string { return d.name }

// RenderPolicy returns the policy the database was built with.
func (d DatabaseRelation) RenderPolicy() *RenderPolicy { return d.render }

// FullyQualifiedPath renders the database on its own.
func (d DatabaseRelation) FullyQualifiedPath() string {
	return d.render.Render(d.name, "", "")
}

// DatabaseParser builds the database level of a relation. Warehouse
// adapters inject their own implementation into SchemaParser to change how
// the database level is read without touching the levels above it.
type DatabaseParser interface {
	FromDict(dict map[string]any) (DatabaseRelation, error)
	ParseNode(node NodeDescription) (map[string]any, error)
	ParseIntrospection(results IntrospectionResults) (map[string]any, error)
}

// DefaultDatabaseParser reads the database name from the node's database
// field and from the database column of the relation result set.
type DefaultDatabaseParser struct{}

// FromDict requires the key render. name may be absent or empty.
func (DefaultDatabaseParser) FromDict(dict map[string]any) (DatabaseRelation, error) {
	return databaseFromDict("database", dict)
}

// ParseNode implements DatabaseParser.
func (DefaultDatabaseParser) ParseNode(node NodeDescription) (map[string]any, error) {
	return map[string]any{"name": node.Database}, nil
}

// ParseIntrospection implements DatabaseParser.
func (DefaultDatabaseParser) ParseIntrospection(results IntrospectionResults) (map[string]any, error) {
	row, _ := results.First(ResultSetRelation)
	return map[string]any{"name": row.String(databaseColumns...)}, nil
}

func databaseFromDict(component string, dict map[string]any) (DatabaseRelation, error) {
	name, err := optionalString(component, dict, "name")
	if err != nil {
		return DatabaseRelation{}, err
	}
	render, err := requireRender(component, dict)
	if err != nil {
		return DatabaseRelation{}, err
	}
	return NewDatabaseRelation(name, render), nil
}
