package materialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

func tableNode(name string, config map[string]any) relation.NodeDescription {
	return relation.NodeDescription{
		Name:         name,
		Schema:       "public",
		Materialized: "table",
		Query:        "select * from raw_orders",
		Config:       config,
	}
}

func tableStub(t *testing.T, relations *relation.Factory, name string, typ relation.Type) *relation.RelationStub {
	t.Helper()
	stub, err := relations.MakeStub(map[string]any{
		"name":           name,
		"type":           string(typ),
		"can_be_renamed": true,
		"schema": map[string]any{
			"name":     "public",
			"database": map[string]any{"name": "analytics"},
		},
	})
	require.NoError(t, err)
	return stub
}

func TestStrategies(t *testing.T) {
	relations := newRelations(postgresLike)
	f := NewFactory(relations, WithMaterializations(AllMaterializations()))

	tests := []struct {
		name     string
		typ      Type
		node     relation.NodeDescription
		existing relation.Type
		intro    relation.IntrospectionResults
		full     bool
		wantOp   Operation
		wantLast string
	}{
		{
			name:     "table created when absent",
			typ:      TypeTable,
			node:     tableNode("orders", nil),
			wantOp:   OperationCreate,
			wantLast: `create table "analytics"."public"."orders"`,
		},
		{
			name:     "existing table always rebuilt",
			typ:      TypeTable,
			node:     tableNode("orders", nil),
			existing: relation.TypeTable,
			wantOp:   OperationReplace,
			wantLast: `drop table "analytics"."public"."orders__relplan_backup"`,
		},
		{
			name:     "incremental appends without unique key",
			typ:      TypeIncremental,
			node:     tableNode("events", nil),
			existing: relation.TypeTable,
			wantOp:   OperationAppend,
			wantLast: `append into "analytics"."public"."events"`,
		},
		{
			name:     "incremental merges on unique key",
			typ:      TypeIncremental,
			node:     tableNode("events", map[string]any{"unique_key": "event_id"}),
			existing: relation.TypeTable,
			wantOp:   OperationMerge,
			wantLast: `merge into "analytics"."public"."events" on event_id`,
		},
		{
			name:     "incremental rebuilt on full refresh",
			typ:      TypeIncremental,
			node:     tableNode("events", nil),
			existing: relation.TypeTable,
			full:     true,
			wantOp:   OperationReplace,
			wantLast: `drop table "analytics"."public"."events__relplan_backup"`,
		},
		{
			name:     "incremental rebuilt over a view",
			typ:      TypeIncremental,
			node:     tableNode("events", nil),
			existing: relation.TypeView,
			wantOp:   OperationReplace,
			wantLast: `drop view "analytics"."public"."events__relplan_backup"`,
		},
		{
			name: "unchanged view is left alone",
			typ:  TypeView,
			node: relation.NodeDescription{Name: "v", Materialized: "view", Query: "select 1"},
			intro: relation.IntrospectionResults{relation.ResultSetRelation: {{
				"relation_type": "view", "schemaname": "public", "viewname": "v", "definition": " SELECT 1;",
			}}},
			existing: relation.TypeView,
			wantOp:   OperationNoop,
		},
		{
			name: "changed view is replaced",
			typ:  TypeView,
			node: relation.NodeDescription{Name: "v", Materialized: "view", Query: "select 2"},
			intro: relation.IntrospectionResults{relation.ResultSetRelation: {{
				"relation_type": "view", "schemaname": "public", "viewname": "v", "definition": "select 1",
			}}},
			existing: relation.TypeView,
			wantOp:   OperationReplace,
			wantLast: `drop view "analytics"."public"."v__relplan_backup"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var existing *relation.RelationStub
			if tt.existing != "" {
				existing = tableStub(t, relations, tt.node.Name, tt.existing)
			}
			m, err := f.MakeFromRuntimeConfig(RuntimeConfig{Node: tt.node, Introspection: tt.intro, FullRefresh: tt.full}, tt.typ, existing)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, tt.typ, m.Type())
			assert.Equal(t, existing, m.Existing())

			plan, err := m.Plan()
			require.NoError(t, err)
			assert.Equal(t, tt.wantOp, plan.Operation)
			if tt.wantLast == "" {
				assert.Empty(t, plan.Steps)
				return
			}
			require.NotEmpty(t, plan.Steps)
			assert.Equal(t, tt.wantLast, plan.Steps[len(plan.Steps)-1].Describe())
		})
	}
}

func TestIncremental_TargetIsTable(t *testing.T) {
	f := NewFactory(newRelations(postgresLike), WithMaterializations(AllMaterializations()))
	m, err := f.MakeFromRuntimeConfig(RuntimeConfig{Node: tableNode("events", nil)}, TypeIncremental, nil)
	require.NoError(t, err)
	assert.Equal(t, relation.TypeTable, m.Target().Type())
}
