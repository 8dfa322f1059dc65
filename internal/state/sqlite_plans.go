package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RecordNodePlan stores the plan and outcome of one node.
func (s *SQLiteStore) RecordNodePlan(ctx context.Context, p NodePlan) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	steps, err := json.Marshal(nonNil(p.Steps))
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}
	warnings, err := json.Marshal(nonNil(p.Warnings))
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_plans
		(run_id, node, relation, materialization, operation, state, status, steps, warnings, error, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RunID, p.Node, p.Relation, p.Materialization, p.Operation, p.State, string(p.Status),
		string(steps), string(warnings), nullString(p.Error), p.Duration.Milliseconds(), p.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record plan of %s: %w", p.Node, err)
	}
	return nil
}

// ListNodePlans returns the plans recorded for a run in recording order.
func (s *SQLiteStore) ListNodePlans(ctx context.Context, runID string) ([]NodePlan, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, node, relation, materialization, operation, state, status, steps, warnings,
		       COALESCE(error, ''), duration_ms, recorded_at
		FROM node_plans WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var plans []NodePlan
	for rows.Next() {
		var (
			p               NodePlan
			status          string
			steps, warnings string
			durationMS      int64
		)
		if err := rows.Scan(&p.RunID, &p.Node, &p.Relation, &p.Materialization, &p.Operation, &p.State,
			&status, &steps, &warnings, &p.Error, &durationMS, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.Status = NodeStatus(status)
		p.Duration = time.Duration(durationMS) * time.Millisecond
		_ = json.Unmarshal([]byte(steps), &p.Steps)
		_ = json.Unmarshal([]byte(warnings), &p.Warnings)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
