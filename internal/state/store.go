// Package state records run history and the last applied configuration of
// every relation in a SQLite database.
package state

import (
	"context"
	"time"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// RunStatus is the lifecycle status of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// NodeStatus is the outcome of one node in a run.
type NodeStatus string

// Node statuses.
const (
	NodeStatusPlanned NodeStatus = "planned"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
	NodeStatusSkipped NodeStatus = "skipped"
)

// Run is one invocation of plan or apply.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	FullRefresh bool
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// NodePlan is the recorded plan and outcome of one node in a run.
type NodePlan struct {
	RunID           string
	Node            string
	Relation        string
	Materialization string
	Operation       string
	State           string
	Status          NodeStatus
	Steps           []string
	Warnings        []string
	Error           string
	Duration        time.Duration
	RecordedAt      time.Time
}

// Snapshot is the configuration of a relation as last applied, stored in
// the shape of introspection results.
type Snapshot struct {
	Environment string
	Node        string
	Relation    string
	Type        relation.Type
	Results     relation.IntrospectionResults
	RunID       string
	UpdatedAt   time.Time
}

// Store is the state the engine reads and writes.
type Store interface {
	CreateRun(ctx context.Context, env string, fullRefresh bool) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	RecordNodePlan(ctx context.Context, p NodePlan) error
	SaveSnapshot(ctx context.Context, s Snapshot) error
	// GetSnapshot returns nil and no error when nothing was recorded.
	GetSnapshot(ctx context.Context, env, node string) (*Snapshot, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
