package relation

// SchemaRelation is the middle level of a relation path. It owns its
// database by value.
type SchemaRelation struct {
	name     string
	database DatabaseRelation
	render   *RenderPolicy
}

// Name returns the schema name.
func (s SchemaRelation) Name() string { return s.name }

// Database returns the owning database.
func (s SchemaRelation) Database() DatabaseRelation { return s.database }

// DatabaseName returns the owning database's name.
func (s SchemaRelation) DatabaseName() string { return s.database.name }

// RenderPolicy returns the policy the schema was built with.
func (s SchemaRelation) RenderPolicy() *RenderPolicy { return s.render }

// FullyQualifiedPath renders database.schema.
func (s SchemaRelation) FullyQualifiedPath() string {
	return s.render.Render(s.database.name, s.name, "")
}

// SchemaParser builds the schema level and delegates the database level to
// the injected Database parser.
type SchemaParser struct {
	Database DatabaseParser
}

func (p SchemaParser) databaseParser() DatabaseParser {
	if p.Database == nil {
		return DefaultDatabaseParser{}
	}
	return p.Database
}

// FromDict requires the keys name, database and render. The database's
// render policy must match the schema's.
func (p SchemaParser) FromDict(dict map[string]any) (SchemaRelation, error) {
	name, err := requireString("schema", dict, "name")
	if err != nil {
		return SchemaRelation{}, err
	}
	render, err := requireRender("schema", dict)
	if err != nil {
		return SchemaRelation{}, err
	}
	dbDict, err := requireDict("schema", dict, "database")
	if err != nil {
		return SchemaRelation{}, err
	}
	db, err := p.databaseParser().FromDict(dbDict)
	if err != nil {
		return SchemaRelation{}, err
	}
	if !db.render.Equal(render) {
		return SchemaRelation{}, &ConstructionError{Component: "schema", Key: "render", Reason: "database render policy differs from schema render policy"}
	}
	return SchemaRelation{name: name, database: db, render: render}, nil
}

// ParseNode implements the node half of the parser contract.
func (p SchemaParser) ParseNode(node NodeDescription) (map[string]any, error) {
	db, err := p.databaseParser().ParseNode(node)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": node.Schema, "database": db}, nil
}

// ParseIntrospection implements the introspection half of the parser contract.
func (p SchemaParser) ParseIntrospection(results IntrospectionResults) (map[string]any, error) {
	db, err := p.databaseParser().ParseIntrospection(results)
	if err != nil {
		return nil, err
	}
	row, _ := results.First(ResultSetRelation)
	return map[string]any{"name": row.String(schemaColumns...), "database": db}, nil
}
