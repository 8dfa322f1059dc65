// Package executor turns materialization plans into warehouse statements and
// resolves the existing-relation state the planner needs.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/relplan/pkg/adapter"
	"github.com/leapstack-labs/relplan/pkg/materialization"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Executor runs plans against one warehouse connection.
type Executor struct {
	adapter   adapter.Adapter
	relations *relation.Factory
	logger    *slog.Logger
}

// New creates an executor. relations supplies the render policy stubs are
// built with. If logger is nil, a discard logger is used.
func New(adp adapter.Adapter, relations *relation.Factory, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{adapter: adp, relations: relations, logger: logger}
}

// Resolve looks up the relation at target's path. It returns a nil stub when
// nothing exists there. When the relation exists but the adapter cannot
// describe its type, the stub is returned together with an error wrapping
// adapter.ErrDescribeUnsupported.
func (e *Executor) Resolve(ctx context.Context, target relation.Ref) (*relation.RelationStub, relation.IntrospectionResults, error) {
	row, err := e.adapter.LookupRelation(ctx, target.SchemaName(), target.Name())
	if err != nil {
		return nil, nil, err
	}
	if row == nil {
		e.logger.Debug("relation does not exist", slog.String("relation", target.FullyQualifiedPath()))
		return nil, nil, nil
	}

	stub, err := e.relations.MakeStub(e.stubDict(row, target))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog entry of %s: %w", target.FullyQualifiedPath(), err)
	}

	results, err := e.adapter.DescribeRelation(ctx, stub)
	if errors.Is(err, adapter.ErrDescribeUnsupported) {
		return stub, nil, fmt.Errorf("%s: %w", stub.FullyQualifiedPath(), err)
	}
	if err != nil {
		return nil, nil, err
	}
	e.logger.Debug("resolved relation",
		slog.String("relation", stub.FullyQualifiedPath()),
		slog.String("type", string(stub.Type())),
		slog.Bool("described", !results.Empty()))
	return stub, results, nil
}

// stubDict builds the stub mapping for a catalog row. A relation can be
// renamed only when the catalog allows it and the warehouse supports
// renaming its type.
func (e *Executor) stubDict(row relation.Row, target relation.Ref) map[string]any {
	typ := row.String("relation_type")
	renamable := row.Bool("can_be_renamed") && e.relations.Capabilities().CanRename(relation.Type(typ))
	database := row.String("database")
	if database == "" {
		database = target.DatabaseName()
	}
	schema := row.String("schema")
	if schema == "" {
		schema = target.SchemaName()
	}
	return map[string]any{
		"name":           row.String("name"),
		"type":           typ,
		"can_be_renamed": renamable,
		"schema": map[string]any{
			"name":     schema,
			"database": map[string]any{"name": database},
		},
	}
}

// Statements renders the plan's steps.
func (e *Executor) Statements(plan *materialization.Plan) ([]string, error) {
	return Statements(plan)
}

// Apply executes the plan's statements in order and stops at the first
// failure. A no-op plan issues no statements.
func (e *Executor) Apply(ctx context.Context, plan *materialization.Plan) error {
	if plan.IsNoop() {
		e.logger.Debug("nothing to apply", slog.String("relation", plan.Target.FullyQualifiedPath()))
		return nil
	}
	stmts, err := Statements(plan)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.adapter.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s of %s failed at statement %d: %w",
				plan.Operation, plan.Target.FullyQualifiedPath(), i+1, err)
		}
	}
	e.logger.Info("applied plan",
		slog.String("relation", plan.Target.FullyQualifiedPath()),
		slog.String("operation", string(plan.Operation)),
		slog.Int("statements", len(stmts)))
	return nil
}
