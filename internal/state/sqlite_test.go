package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/relplan/internal/testutil"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"runs", "node_plans", "relation_snapshots"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Close())

	// Reopening an existing file finds nothing to migrate.
	store = NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(nil)

	_, err := store.CreateRun(ctx, "dev", false)
	assert.Error(t, err)
	assert.Error(t, store.RecordNodePlan(ctx, NodePlan{}))
	_, err = store.GetSnapshot(ctx, "dev", "mv1")
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		status     RunStatus
		errMsg     string
		wantErrMsg string
	}{
		{name: "completed", status: RunStatusCompleted},
		{name: "failed", status: RunStatusFailed, errMsg: "1 node failed", wantErrMsg: "1 node failed"},
		{name: "cancelled", status: RunStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := setupTestStore(t)

			run, err := store.CreateRun(ctx, "production", true)
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)

			require.NoError(t, store.CompleteRun(ctx, run.ID, tt.status, tt.errMsg))

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, "production", got.Environment)
			assert.Equal(t, tt.status, got.Status)
			assert.True(t, got.FullRefresh)
			assert.Equal(t, tt.wantErrMsg, got.Error)
			require.NotNil(t, got.CompletedAt)
		})
	}
}

func TestSQLiteStore_RunQueries(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	latest, err := store.GetLatestRun(ctx, "dev")
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := store.CreateRun(ctx, "dev", false)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.CreateRun(ctx, "dev", false)
	require.NoError(t, err)
	_, err = store.CreateRun(ctx, "prod", false)
	require.NoError(t, err)

	latest, err = store.GetLatestRun(ctx, "dev")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	_, err = store.GetRun(ctx, "missing")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, store.CompleteRun(ctx, "missing", RunStatusCompleted, ""), "run not found")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSQLiteStore_NodePlans(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	run, err := store.CreateRun(ctx, "dev", false)
	require.NoError(t, err)

	plans := []NodePlan{
		{
			RunID: run.ID, Node: "public.mv1", Relation: `"analytics"."public"."mv1"`,
			Materialization: "materialized_view", Operation: "create", State: "does_not_exist",
			Status: NodeStatusSuccess, Steps: []string{`create materialized_view "analytics"."public"."mv1"`},
			Duration: 1500 * time.Millisecond,
		},
		{
			RunID: run.ID, Node: "public.orders", Status: NodeStatusFailed, Error: "boom",
			Warnings: []string{"something changed"},
		},
		{RunID: run.ID, Node: "public.downstream", Status: NodeStatusSkipped},
	}
	for _, p := range plans {
		require.NoError(t, store.RecordNodePlan(ctx, p))
	}

	got, err := store.ListNodePlans(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "public.mv1", got[0].Node)
	assert.Equal(t, plans[0].Steps, got[0].Steps)
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.Empty(t, got[0].Warnings)
	assert.Equal(t, NodeStatusFailed, got[1].Status)
	assert.Equal(t, "boom", got[1].Error)
	assert.Equal(t, []string{"something changed"}, got[1].Warnings)
	assert.Equal(t, NodeStatusSkipped, got[2].Status)
}

func TestSQLiteStore_NodePlanRequiresRun(t *testing.T) {
	store := setupTestStore(t)
	err := store.RecordNodePlan(context.Background(), NodePlan{RunID: "nope", Node: "x", Status: NodeStatusSuccess})
	assert.Error(t, err, "foreign keys should be enforced")
}

func TestSQLiteStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	snap, err := store.GetSnapshot(ctx, "dev", "raw.clicks")
	require.NoError(t, err)
	assert.Nil(t, snap)

	results := relation.IntrospectionResults{
		relation.ResultSetRelation: {{
			"database": "lake", "schema": "raw", "name": "clicks",
			"relation_type": "external", "location": "s3://bucket/clicks", "file_format": "parquet",
		}},
	}
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{
		Environment: "dev", Node: "raw.clicks", Relation: `"lake"."raw"."clicks"`,
		Type: relation.TypeExternal, Results: results, RunID: "r1",
	}))

	snap, err = store.GetSnapshot(ctx, "dev", "raw.clicks")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, relation.TypeExternal, snap.Type)
	assert.Equal(t, "r1", snap.RunID)

	rel, err := relation.NewFactory().MakeFromIntrospection(snap.Results)
	require.NoError(t, err)
	ext, ok := rel.(*relation.ExternalRelation)
	require.True(t, ok)
	assert.Equal(t, "s3://bucket/clicks", ext.Location())

	// Saving again replaces the snapshot.
	results[relation.ResultSetRelation][0]["location"] = "s3://bucket/clicks_v2"
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{
		Environment: "dev", Node: "raw.clicks", Relation: `"lake"."raw"."clicks"`,
		Type: relation.TypeExternal, Results: results, RunID: "r2",
	}))
	snap, err = store.GetSnapshot(ctx, "dev", "raw.clicks")
	require.NoError(t, err)
	assert.Equal(t, "r2", snap.RunID)
	assert.Equal(t, "s3://bucket/clicks_v2", snap.Results[relation.ResultSetRelation][0].String("location"))

	other, err := store.GetSnapshot(ctx, "prod", "raw.clicks")
	require.NoError(t, err)
	assert.Nil(t, other, "snapshots are scoped to an environment")

	require.NoError(t, store.DeleteSnapshot(ctx, "dev", "raw.clicks"))
	snap, err = store.GetSnapshot(ctx, "dev", "raw.clicks")
	require.NoError(t, err)
	assert.Nil(t, snap)
}
