package relation

// DatabaseStub is the identity-only database level of a RelationStub.
type DatabaseStub struct {
	name   string
	render *RenderPolicy
}

// Name returns the database name.
func (d DatabaseStub) Name() string { return d.name }

// SchemaStub is the identity-only schema level of a RelationStub.
type SchemaStub struct {
	name     string
	database DatabaseStub
	render   *RenderPolicy
}

// Name returns the schema name.
func (s SchemaStub) Name() string { return s.name }

// Database returns the owning database stub.
func (s SchemaStub) Database() DatabaseStub { return s.database }

// RelationStub identifies an existing warehouse object without describing
// it. It is typically built by the executor from a catalog lookup and is
// enough to drop or rename the object, but not to create or alter one.
type RelationStub struct {
	name         string
	schema       SchemaStub
	render       *RenderPolicy
	typ          Type
	canBeRenamed bool
}

var _ Ref = (*RelationStub)(nil)

// RelationStubFromDict builds a stub from
// {name, schema: {name, database: {name, render}, render}, render, type, can_be_renamed}.
func RelationStubFromDict(dict map[string]any) (*RelationStub, error) {
	rawType, ok := dict["type"]
	if !ok || rawType == nil {
		return nil, missingKey("relation stub", "type")
	}
	typ, err := typeOf(rawType)
	if err != nil {
		return nil, err
	}
	name, err := requireString("relation stub", dict, "name")
	if err != nil {
		return nil, err
	}
	render, err := requireRender("relation stub", dict)
	if err != nil {
		return nil, err
	}
	schemaDict, err := requireDict("relation stub", dict, "schema")
	if err != nil {
		return nil, err
	}
	schema, err := schemaStubFromDict(schemaDict)
	if err != nil {
		return nil, err
	}
	if !schema.render.Equal(render) {
		return nil, &ConstructionError{Component: "relation stub", Key: "render", Reason: "schema render policy differs from relation render policy"}
	}
	renamable, ok := dict["can_be_renamed"].(bool)
	if !ok {
		return nil, &ConstructionError{Component: "relation stub", Key: "can_be_renamed", Reason: "required boolean is missing"}
	}
	return &RelationStub{name: name, schema: schema, render: render, typ: typ, canBeRenamed: renamable}, nil
}

func schemaStubFromDict(dict map[string]any) (SchemaStub, error) {
	name, err := requireString("schema stub", dict, "name")
	if err != nil {
		return SchemaStub{}, err
	}
	render, err := requireRender("schema stub", dict)
	if err != nil {
		return SchemaStub{}, err
	}
	dbDict, err := requireDict("schema stub", dict, "database")
	if err != nil {
		return SchemaStub{}, err
	}
	db, err := databaseFromDict("database stub", dbDict)
	if err != nil {
		return SchemaStub{}, err
	}
	if !db.render.Equal(render) {
		return SchemaStub{}, &ConstructionError{Component: "schema stub", Key: "render", Reason: "database render policy differs from schema render policy"}
	}
	return SchemaStub{name: name, database: DatabaseStub(db), render: render}, nil
}

// StubOf projects a full relation onto its identity.
func StubOf(r Relation, canBeRenamed bool) *RelationStub {
	s := r.Schema()
	db := s.Database()
	return &RelationStub{
		name: r.Name(),
		schema: SchemaStub{
			name:     s.Name(),
			database: DatabaseStub{name: db.Name(), render: db.RenderPolicy()},
			render:   s.RenderPolicy(),
		},
		render:       r.RenderPolicy(),
		typ:          r.Type(),
		canBeRenamed: canBeRenamed,
	}
}

// Name returns the relation name.
func (s *RelationStub) Name() string { return s.name }

// Schema returns the schema stub.
func (s *RelationStub) Schema() SchemaStub { return s.schema }

// SchemaName returns the schema name.
func (s *RelationStub) SchemaName() string { return s.schema.name }

// DatabaseName returns the database name.
func (s *RelationStub) DatabaseName() string { return s.schema.database.name }

// Type returns the type recorded for the existing object.
func (s *RelationStub) Type() Type { return s.typ }

// RenderPolicy returns the render policy.
func (s *RelationStub) RenderPolicy() *RenderPolicy { return s.render }

// CanBeRenamed reports whether the existing object may be renamed.
func (s *RelationStub) CanBeRenamed() bool { return s.canBeRenamed }

// FullyQualifiedPath renders database.schema.name.
func (s *RelationStub) FullyQualifiedPath() string {
	return s.render.Render(s.schema.database.name, s.schema.name, s.name)
}

// WithIdentifier returns a copy of the stub under another name.
func (s *RelationStub) WithIdentifier(name string) *RelationStub {
	cp := *s
	cp.name = name
	return &cp
}
