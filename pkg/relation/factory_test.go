package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mvNode() NodeDescription {
	return NodeDescription{
		Name:         "mv1",
		Schema:       "public",
		Materialized: "materialized_view",
		Query:        "select 1",
	}
}

func relationDict(render *RenderPolicy, typ string) map[string]any {
	return map[string]any{
		"name":   "mv1",
		"type":   typ,
		"query":  "select 1",
		"render": render,
		"schema": map[string]any{
			"name":   "public",
			"render": render,
			"database": map[string]any{
				"name":   "analytics",
				"render": render,
			},
		},
	}
}

func TestFactory_MakeFromNode(t *testing.T) {
	f := NewFactory(WithDefaults("analytics", "main"))

	rel, err := f.MakeFromNode(mvNode())
	require.NoError(t, err)

	mv, ok := rel.(*MaterializedViewRelation)
	require.True(t, ok, "expected a materialized view, got %T", rel)
	assert.Equal(t, "mv1", mv.Name())
	assert.Equal(t, "public", mv.SchemaName())
	assert.Equal(t, "analytics", mv.DatabaseName())
	assert.Equal(t, TypeMaterializedView, mv.Type())
	assert.Equal(t, "select 1", mv.Query())
	assert.Equal(t, `"analytics"."public"."mv1"`, mv.FullyQualifiedPath())
	assert.Same(t, f.RenderPolicy(), mv.RenderPolicy())
	assert.Same(t, mv.RenderPolicy(), mv.Schema().RenderPolicy())
	assert.Same(t, mv.RenderPolicy(), mv.Schema().Database().RenderPolicy())
}

func TestFactory_MakeFromNodeWithoutDatabase(t *testing.T) {
	rel, err := NewFactory().MakeFromNode(mvNode())
	require.NoError(t, err)

	assert.Equal(t, "", rel.DatabaseName())
	assert.Equal(t, `"public"."mv1"`, rel.FullyQualifiedPath())
	assert.Equal(t, `"public"`, rel.Schema().FullyQualifiedPath())
}

// catalogless ignores whatever database a node or catalog names.
type catalogless struct{}

func (catalogless) FromDict(dict map[string]any) (DatabaseRelation, error) {
	render, _ := dict["render"].(*RenderPolicy)
	return NewDatabaseRelation("", render), nil
}

func (catalogless) ParseNode(NodeDescription) (map[string]any, error) { return map[string]any{}, nil }

func (catalogless) ParseIntrospection(IntrospectionResults) (map[string]any, error) {
	return map[string]any{}, nil
}

func TestFactory_InjectedDatabaseParser(t *testing.T) {
	schema := SchemaParser{Database: catalogless{}}
	f := NewFactory(
		WithDefaults("ignored", "main"),
		WithParsers(ViewParser{Schema: schema}, MaterializedViewParser{Schema: schema}),
	)

	rel, err := f.MakeFromNode(mvNode())
	require.NoError(t, err)
	assert.Equal(t, `"public"."mv1"`, rel.FullyQualifiedPath())
	assert.Same(t, f.RenderPolicy(), rel.Schema().Database().RenderPolicy())
	assert.True(t, f.Supports(TypeView))
	assert.False(t, f.Supports(TypeTable))
}

func TestFactory_MakeFromNodeDefaultsSchema(t *testing.T) {
	f := NewFactory(WithDefaults("warehouse", "main"))
	node := NodeDescription{Name: "orders", Materialized: "view", Query: "select * from raw"}

	rel, err := f.MakeFromNode(node)
	require.NoError(t, err)
	assert.Equal(t, `"warehouse"."main"."orders"`, rel.FullyQualifiedPath())
}

func TestFactory_MakeFromNodeQuotingOverride(t *testing.T) {
	f := NewFactory(WithDefaults("analytics", "public"))
	off := false
	node := mvNode()
	node.Quoting = &QuoteOverride{Database: &off, Schema: &off}

	rel, err := f.MakeFromNode(node)
	require.NoError(t, err)
	assert.Equal(t, `analytics.public."mv1"`, rel.FullyQualifiedPath())
	assert.Equal(t, `"analytics"."public"."mv1"`, f.RenderPolicy().Render("analytics", "public", "mv1"))
}

func TestFactory_MakeFromNodeIndexes(t *testing.T) {
	f := NewFactory(WithDefaults("analytics", "public"))
	node := mvNode()
	node.Config = map[string]any{
		"indexes": []any{
			map[string]any{"columns": []any{"id"}, "unique": true},
			map[string]any{"columns": "created_at, id", "type": "brin"},
		},
	}

	rel, err := f.MakeFromNode(node)
	require.NoError(t, err)
	mv := rel.(*MaterializedViewRelation)
	assert.Equal(t, []IndexConfig{
		{Columns: []string{"id"}, Unique: true},
		{Method: "brin", Columns: []string{"created_at", "id"}},
	}, mv.Indexes())
}

func TestFactory_MakeFromNodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		factory   *Factory
		node      NodeDescription
		unsupport bool
		key       string
	}{
		{
			name:      "type outside the enumerated set",
			factory:   NewFactory(WithDefaults("db", "s")),
			node:      NodeDescription{Name: "x", Materialized: "snapshot"},
			unsupport: true,
		},
		{
			name:      "enumerated type without a parser",
			factory:   NewFactory(WithDefaults("db", "s")),
			node:      NodeDescription{Name: "x", Materialized: "ephemeral"},
			unsupport: true,
		},
		{
			name:      "parser removed from the factory",
			factory:   NewFactory(WithDefaults("db", "s"), WithParsers(TableParser{})),
			node:      mvNode(),
			unsupport: true,
		},
		{
			name:    "empty name",
			factory: NewFactory(WithDefaults("db", "s")),
			node:    NodeDescription{Materialized: "view", Query: "select 1"},
			key:     "name",
		},
		{
			name:    "no database and no default",
			factory: NewFactory(),
			node:    NodeDescription{Name: "v", Schema: "s", Materialized: "view", Query: "select 1"},
			key:     "name",
		},
		{
			name:    "view without a query",
			factory: NewFactory(WithDefaults("db", "s")),
			node:    NodeDescription{Name: "v", Materialized: "view"},
			key:     "query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := tt.factory.MakeFromNode(tt.node)
			require.Error(t, err)
			assert.Nil(t, rel)
			if tt.unsupport {
				var uerr *UnsupportedRelationTypeError
				assert.ErrorAs(t, err, &uerr)
				return
			}
			var cerr *ConstructionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestFactory_MakeFromIntrospection(t *testing.T) {
	f := NewFactory(WithDefaults("analytics", "public"))
	results := IntrospectionResults{
		ResultSetRelation: {{
			"relation_type": "materialized_view",
			"database":      "analytics",
			"schemaname":    "public",
			"matviewname":   "mv1",
			"definition":    " SELECT 1;",
		}},
		ResultSetIndexes: {{
			"name":         "mv1_id_idx",
			"method":       "btree",
			"unique":       true,
			"column_names": "id",
		}},
	}

	rel, err := f.MakeFromIntrospection(results)
	require.NoError(t, err)
	mv := rel.(*MaterializedViewRelation)
	assert.Equal(t, `"analytics"."public"."mv1"`, mv.FullyQualifiedPath())
	assert.Equal(t, " SELECT 1;", mv.Query())
	assert.Equal(t, []IndexConfig{{Name: "mv1_id_idx", Method: "btree", Unique: true, Columns: []string{"id"}}}, mv.Indexes())
}

func TestFactory_MakeFromIntrospectionDefaultsDatabase(t *testing.T) {
	f := NewFactory(WithDefaults("memory", "main"))
	results := IntrospectionResults{
		ResultSetRelation: {{"relation_type": "view", "table_schema": "main", "table_name": "v", "sql": "select 1"}},
	}

	rel, err := f.MakeFromIntrospection(results)
	require.NoError(t, err)
	assert.Equal(t, "memory", rel.DatabaseName())
	assert.Equal(t, "select 1", rel.Query())
}

func TestFactory_MakeFromIntrospectionAbsence(t *testing.T) {
	f := NewFactory(WithDefaults("analytics", "public"))

	for name, results := range map[string]IntrospectionResults{
		"nil":                 nil,
		"no result sets":      {},
		"empty relation set":  {ResultSetRelation: {}},
		"only index rows":     {ResultSetIndexes: {{"name": "idx"}}},
		"empty relation rows": {ResultSetRelation: nil, ResultSetIndexes: nil},
	} {
		t.Run(name, func(t *testing.T) {
			rel, err := f.MakeFromIntrospection(results)
			assert.NoError(t, err)
			assert.Nil(t, rel)
		})
	}
}

func TestFactory_MakeFromIntrospectionUnknownType(t *testing.T) {
	f := NewFactory(WithDefaults("analytics", "public"))
	_, err := f.MakeFromIntrospection(IntrospectionResults{
		ResultSetRelation: {{"relation_type": "foreign_table", "schema": "public", "name": "x"}},
	})
	var uerr *UnsupportedRelationTypeError
	assert.ErrorAs(t, err, &uerr)
}

func TestFromDict_RoundTrip(t *testing.T) {
	render := NewRenderPolicy()
	parser := MaterializedViewParser{}

	first, err := parser.FromDict(relationDict(render, "materialized_view"))
	require.NoError(t, err)
	second, err := parser.FromDict(relationDict(NewRenderPolicy(), "materialized_view"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.FullyQualifiedPath(), second.FullyQualifiedPath())

	fromNode, err := NewFactory(WithDefaults("analytics", "public")).MakeFromNode(mvNode())
	require.NoError(t, err)
	assert.Equal(t, first, fromNode)
}

func TestFromDict_UnsupportedTypeWins(t *testing.T) {
	render := NewRenderPolicy()
	broken := []map[string]any{
		relationDict(render, "pivot"),
		{"type": "pivot"},
		{"type": "pivot", "name": "", "schema": "not a mapping"},
	}

	for _, dict := range broken {
		for _, p := range DefaultParsers() {
			_, err := p.FromDict(dict)
			var uerr *UnsupportedRelationTypeError
			assert.ErrorAs(t, err, &uerr, "parser %s", p.Type())
		}
		_, err := RelationStubFromDict(dict)
		var uerr *UnsupportedRelationTypeError
		assert.ErrorAs(t, err, &uerr)
	}
}

func TestFromDict_ConstructionErrors(t *testing.T) {
	render := NewRenderPolicy()
	tests := []struct {
		name   string
		mutate func(d map[string]any)
		key    string
	}{
		{name: "missing type", mutate: func(d map[string]any) { delete(d, "type") }, key: "type"},
		{name: "missing name", mutate: func(d map[string]any) { delete(d, "name") }, key: "name"},
		{name: "missing render", mutate: func(d map[string]any) { delete(d, "render") }, key: "render"},
		{name: "missing schema", mutate: func(d map[string]any) { delete(d, "schema") }, key: "schema"},
		{name: "schema not a mapping", mutate: func(d map[string]any) { d["schema"] = "public" }, key: "schema"},
		{
			name:   "missing database",
			mutate: func(d map[string]any) { delete(d["schema"].(map[string]any), "database") },
			key:    "database",
		},
		{
			name:   "render policies disagree",
			mutate: func(d map[string]any) { d["render"] = NewRenderPolicy(WithCasing(CasingLower)) },
			key:    "render",
		},
		{
			name:   "type handled by another parser",
			mutate: func(d map[string]any) { d["type"] = "view" },
			key:    "type",
		},
		{name: "missing query", mutate: func(d map[string]any) { delete(d, "query") }, key: "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dict := relationDict(render, "materialized_view")
			tt.mutate(dict)
			_, err := MaterializedViewParser{}.FromDict(dict)
			var cerr *ConstructionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.key, cerr.Key)
		})
	}
}

func TestFromDict_RenderAsMapping(t *testing.T) {
	render := map[string]any{"quote": map[string]any{"database": false, "schema": false}}
	dict := map[string]any{
		"name":   "v",
		"type":   "view",
		"query":  "select 1",
		"render": render,
		"schema": map[string]any{
			"name":     "s",
			"render":   render,
			"database": map[string]any{"name": "d", "render": render},
		},
	}

	rel, err := ViewParser{}.FromDict(dict)
	require.NoError(t, err)
	assert.Equal(t, `d.s."v"`, rel.FullyQualifiedPath())
}

type upperDatabaseParser struct{ DefaultDatabaseParser }

func (upperDatabaseParser) ParseNode(NodeDescription) (map[string]any, error) {
	return map[string]any{"name": "SHARED"}, nil
}

func TestSchemaParser_InjectedDatabaseParser(t *testing.T) {
	schema := SchemaParser{Database: upperDatabaseParser{}}
	f := NewFactory(WithDefaults("ignored", "public"), WithParsers(ViewParser{Schema: schema}))

	rel, err := f.MakeFromNode(NodeDescription{Name: "v", Materialized: "view", Query: "select 1"})
	require.NoError(t, err)
	assert.Equal(t, "SHARED", rel.DatabaseName())
}

func TestFactory_IsImmutableAfterConstruction(t *testing.T) {
	caps := Capabilities{
		Alterable: map[Type][]string{TypeMaterializedView: {AttributeIndexes}},
		Renamable: map[Type]bool{TypeView: true},
	}
	f := NewFactory(WithCapabilities(caps))

	caps.Alterable[TypeMaterializedView][0] = AttributeQuery
	caps.Renamable[TypeTable] = true
	got := f.Capabilities()
	got.Renamable[TypeView] = false

	assert.True(t, f.Capabilities().CanAlter(TypeMaterializedView, AttributeIndexes))
	assert.False(t, f.Capabilities().CanAlter(TypeMaterializedView, AttributeQuery))
	assert.False(t, f.Capabilities().CanRename(TypeTable))
	assert.True(t, f.Capabilities().CanRename(TypeView))
}
