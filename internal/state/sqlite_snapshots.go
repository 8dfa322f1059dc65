package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// SaveSnapshot stores the configuration a node's relation was applied with,
// replacing the previous snapshot of the node.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	results, err := json.Marshal(snap.Results)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of %s: %w", snap.Node, err)
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO relation_snapshots
		(environment, node, relation, relation_type, results, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.Environment, snap.Node, snap.Relation, string(snap.Type), string(results), snap.RunID, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot of %s: %w", snap.Node, err)
	}
	return nil
}

// GetSnapshot returns the last snapshot of a node, or nil.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, env, node string) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var (
		snap    = Snapshot{Environment: env, Node: node}
		typ     string
		results string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT relation, relation_type, results, run_id, updated_at
		FROM relation_snapshots WHERE environment = ? AND node = ?`, env, node).
		Scan(&snap.Relation, &typ, &results, &snap.RunID, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot of %s: %w", node, err)
	}

	snap.Type = relation.Type(typ)
	if err := json.Unmarshal([]byte(results), &snap.Results); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of %s: %w", node, err)
	}
	return &snap, nil
}

// DeleteSnapshot forgets a node's snapshot.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, env, node string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM relation_snapshots WHERE environment = ? AND node = ?`, env, node); err != nil {
		return fmt.Errorf("failed to delete snapshot of %s: %w", node, err)
	}
	return nil
}
