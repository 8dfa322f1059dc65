package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/relplan/internal/executor"
	"github.com/leapstack-labs/relplan/internal/nodes"
	"github.com/leapstack-labs/relplan/internal/state"
	"github.com/leapstack-labs/relplan/pkg/adapter"
	"github.com/leapstack-labs/relplan/pkg/materialization"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Options selects what a run covers.
type Options struct {
	// Select limits the run to these node keys. Empty means every node.
	Select []string
	// Downstream adds every node depending on a selected one.
	Downstream bool
}

// NodeResult is the outcome of one node.
type NodeResult struct {
	Node            string
	Relation        string
	Materialization string
	Status          state.NodeStatus
	// Plan is nil when the node failed before planning finished or was skipped.
	Plan       *materialization.Plan
	Statements []string
	Err        error
	Duration   time.Duration
}

// Result is the outcome of a run. Nodes are ordered by level, then key.
type Result struct {
	Run   *state.Run
	Nodes []NodeResult
}

// Count returns the number of nodes with status.
func (r *Result) Count(status state.NodeStatus) int {
	n := 0
	for _, nr := range r.Nodes {
		if nr.Status == status {
			n++
		}
	}
	return n
}

// Plan computes the plan of every node without changing the warehouse.
func (e *Engine) Plan(ctx context.Context, project *nodes.Project, opts Options) (*Result, error) {
	return e.run(ctx, project, opts, false)
}

// Apply plans every node and executes the plans level by level.
func (e *Engine) Apply(ctx context.Context, project *nodes.Project, opts Options) (*Result, error) {
	return e.run(ctx, project, opts, true)
}

func (e *Engine) run(ctx context.Context, project *nodes.Project, opts Options, apply bool) (*Result, error) {
	g, err := e.buildGraph(project)
	if err != nil {
		return nil, err
	}
	g, err = selectNodes(g, opts.Select, opts.Downstream)
	if err != nil {
		return nil, err
	}
	levels, err := g.Levels()
	if err != nil {
		return nil, fmt.Errorf("dependency sort failed: %w", err)
	}

	run, err := e.store.CreateRun(ctx, e.environment, e.fullRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Info("starting run",
		slog.String("run_id", run.ID),
		slog.String("environment", e.environment),
		slog.Bool("apply", apply),
		slog.Int("nodes", g.Len()),
		slog.Int("levels", len(levels)))

	result := &Result{}
	skipped := make(map[string]string) // node -> failed upstream
	var failed []string

	for _, level := range levels {
		results := make([]NodeResult, len(level))
		var (
			mu          sync.Mutex
			levelFailed []string
		)

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(e.threads)
		for i, id := range level {
			node, _ := g.Node(id)
			if upstream, ok := skipped[id]; ok {
				results[i] = NodeResult{
					Node:            id,
					Materialization: node.Materialized,
					Status:          state.NodeStatusSkipped,
					Err:             fmt.Errorf("upstream node %s failed", upstream),
				}
				continue
			}
			eg.Go(func() error {
				nr := e.runNode(egCtx, run.ID, node, apply)
				results[i] = nr
				if nr.Status == state.NodeStatusFailed {
					mu.Lock()
					levelFailed = append(levelFailed, id)
					mu.Unlock()
				}
				return nil
			})
		}
		_ = eg.Wait()

		for _, id := range levelFailed {
			for _, down := range g.Downstream(id) {
				if _, ok := skipped[down]; !ok {
					skipped[down] = id
				}
			}
		}
		failed = append(failed, levelFailed...)

		for _, nr := range results {
			e.record(ctx, run.ID, nr)
		}
		result.Nodes = append(result.Nodes, results...)

		if ctx.Err() != nil {
			break
		}
	}

	status, runErr := state.RunStatusCompleted, error(nil)
	switch {
	case ctx.Err() != nil:
		status, runErr = state.RunStatusCancelled, ctx.Err()
	case len(failed) > 0:
		status, runErr = state.RunStatusFailed, fmt.Errorf("%d node(s) failed", len(failed))
	}

	// The run context may be cancelled; state is still written.
	stateCtx := context.WithoutCancel(ctx)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		e.logger.Info("run failed", slog.String("run_id", run.ID), slog.String("error", errMsg))
	} else {
		e.logger.Info("run completed", slog.String("run_id", run.ID))
	}
	if err := e.store.CompleteRun(stateCtx, run.ID, status, errMsg); err != nil {
		e.logger.Warn("failed to complete run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}
	if r, err := e.store.GetRun(stateCtx, run.ID); err == nil {
		run = r
	}
	result.Run = run
	return result, runErr
}

// runNode plans, and when apply is set executes, one node. Errors are
// reported on the result and never abort the run.
func (e *Engine) runNode(ctx context.Context, runID string, node relation.NodeDescription, apply bool) NodeResult {
	start := e.now()
	nr := NodeResult{Node: node.Key(), Materialization: node.Materialized}
	logger := e.logger.With(slog.String("node", nr.Node))

	fail := func(err error) NodeResult {
		nr.Status = state.NodeStatusFailed
		nr.Err = err
		nr.Duration = e.now().Sub(start)
		logger.Error("node failed", slog.String("error", err.Error()))
		return nr
	}

	plan, err := e.planNode(ctx, node)
	if err != nil {
		return fail(err)
	}
	nr.Plan = plan
	nr.Relation = plan.Target.FullyQualifiedPath()
	for _, w := range plan.Warnings {
		logger.Warn(w)
	}

	stmts, err := e.executor.Statements(plan)
	if err != nil {
		return fail(err)
	}
	nr.Statements = stmts
	logger.Debug("planned node",
		slog.String("operation", string(plan.Operation)),
		slog.String("state", string(plan.State)),
		slog.Int("statements", len(stmts)))

	if !apply {
		nr.Status = state.NodeStatusPlanned
		nr.Duration = e.now().Sub(start)
		return nr
	}

	if err := e.executor.Apply(ctx, plan); err != nil {
		return fail(err)
	}
	nr.Status = state.NodeStatusSuccess
	nr.Duration = e.now().Sub(start)

	if err := e.store.SaveSnapshot(context.WithoutCancel(ctx), state.Snapshot{
		Environment: e.environment,
		Node:        nr.Node,
		Relation:    nr.Relation,
		Type:        plan.Target.Type(),
		Results:     e.snapshot(ctx, plan.Target, logger),
		RunID:       runID,
	}); err != nil {
		logger.Warn("failed to save relation snapshot", slog.String("error", err.Error()))
	}
	return nr
}

// planNode resolves what exists at the node's path and asks the node's
// materialization for a plan. When the warehouse cannot describe the
// existing relation, the configuration recorded by the last apply stands in.
func (e *Engine) planNode(ctx context.Context, node relation.NodeDescription) (*materialization.Plan, error) {
	typ := materialization.ParseType(node.Materialized)
	if !e.materializations.Supports(typ) {
		return nil, &UnsupportedMaterializationError{
			Node:            node.Key(),
			Materialization: node.Materialized,
			Supported:       e.materializations.Types(),
		}
	}

	var (
		stub    *relation.RelationStub
		results relation.IntrospectionResults
	)
	if relType, ok := typ.RelationType(); ok {
		lookup := node
		lookup.Materialized = string(relType)
		target, err := e.relations.MakeFromNode(lookup)
		if err != nil {
			return nil, err
		}
		stub, results, err = e.executor.Resolve(ctx, target)
		switch {
		case errors.Is(err, adapter.ErrDescribeUnsupported):
			results, err = e.snapshotResults(ctx, node.Key())
			if err != nil {
				return nil, err
			}
			if results != nil {
				e.logger.Debug("describing relation from snapshot", slog.String("node", node.Key()))
			}
		case err != nil:
			return nil, fmt.Errorf("failed to resolve %s: %w", target.FullyQualifiedPath(), err)
		case !results.Empty():
			recorded, err := e.snapshotResults(ctx, node.Key())
			if err != nil {
				return nil, err
			}
			results = executor.Reconcile(results, recorded)
		}
	}

	cfg, err := materialization.RuntimeConfigFor(node, results, e.fullRefresh)
	if err != nil {
		return nil, err
	}
	m, err := e.materializations.MakeFromRuntimeConfig(cfg, typ, stub)
	if err != nil {
		return nil, err
	}
	return m.Plan()
}

// snapshot records the applied relation. For views and materialized views
// it also records the definition the warehouse reports for it now, which
// later plans use to tell the catalog's rendering of an unchanged query
// from a real change.
func (e *Engine) snapshot(ctx context.Context, rel relation.Relation, logger *slog.Logger) relation.IntrospectionResults {
	results := executor.Snapshot(rel)
	switch rel.Type() {
	case relation.TypeView, relation.TypeMaterializedView:
	default:
		return results
	}
	_, live, err := e.executor.Resolve(ctx, rel)
	switch {
	case errors.Is(err, adapter.ErrDescribeUnsupported):
	case err != nil:
		logger.Warn("failed to describe applied relation", slog.String("error", err.Error()))
	default:
		results = executor.WithCatalogDefinition(results, live)
	}
	return results
}

func (e *Engine) snapshotResults(ctx context.Context, key string) (relation.IntrospectionResults, error) {
	snap, err := e.store.GetSnapshot(ctx, e.environment, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot of %s: %w", key, err)
	}
	if snap == nil {
		e.logger.Debug("no snapshot recorded", slog.String("node", key))
		return nil, nil
	}
	return snap.Results, nil
}

func (e *Engine) record(ctx context.Context, runID string, nr NodeResult) {
	np := state.NodePlan{
		RunID:           runID,
		Node:            nr.Node,
		Relation:        nr.Relation,
		Materialization: nr.Materialization,
		Status:          nr.Status,
		Duration:        nr.Duration,
	}
	if nr.Plan != nil {
		np.Operation = string(nr.Plan.Operation)
		np.State = string(nr.Plan.State)
		np.Warnings = nr.Plan.Warnings
		for _, s := range nr.Plan.Steps {
			np.Steps = append(np.Steps, s.Describe())
		}
	}
	if nr.Err != nil {
		np.Error = nr.Err.Error()
	}
	if err := e.store.RecordNodePlan(context.WithoutCancel(ctx), np); err != nil {
		e.logger.Warn("failed to record node plan", slog.String("node", nr.Node), slog.String("error", err.Error()))
	}
}

// Levels returns the execution levels of the project's nodes.
func (e *Engine) Levels(project *nodes.Project) ([][]string, error) {
	g, err := e.buildGraph(project)
	if err != nil {
		return nil, err
	}
	return g.Levels()
}
