// Package engine plans and applies a project's nodes in dependency order.
// Nodes within a level run concurrently; a failing node only stops the
// nodes that depend on it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/relplan/internal/executor"
	"github.com/leapstack-labs/relplan/internal/state"
	"github.com/leapstack-labs/relplan/pkg/adapter"
	"github.com/leapstack-labs/relplan/pkg/materialization"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// DefaultThreads is used when Config.Threads is not positive.
const DefaultThreads = 4

// Engine orchestrates planning and applying nodes against one warehouse.
type Engine struct {
	adapter          adapter.Adapter
	store            state.Store
	relations        *relation.Factory
	materializations *materialization.Factory
	executor         *executor.Executor
	logger           *slog.Logger

	environment string
	threads     int
	fullRefresh bool
	now         func() time.Time
}

// Config holds engine configuration.
type Config struct {
	// Adapter is used by Open to connect to the warehouse.
	Adapter adapter.Config
	// StatePath is the path to the SQLite state database, used by Open.
	StatePath string
	// Environment scopes runs and relation snapshots.
	Environment string
	// Threads bounds the number of nodes planned or applied at once.
	Threads int
	// FullRefresh rebuilds every existing relation.
	FullRefresh bool
	// Render is the render policy of every relation. Nil quotes and
	// includes every component.
	Render *relation.RenderPolicy
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Open connects to the warehouse and opens the state store described by
// cfg. The engine owns both and releases them on Close.
func Open(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	adp, err := adapter.Open(ctx, cfg.Adapter, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	e, err := New(ctx, adp, store, cfg)
	if err != nil {
		_ = adp.Close()
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

// New creates an engine over a connected adapter and an open store. The
// engine takes ownership of both.
func New(ctx context.Context, adp adapter.Adapter, store state.Store, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	database, err := adp.CurrentDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current database: %w", err)
	}

	render := cfg.Render
	if render == nil {
		render = relation.NewRenderPolicy()
	}
	relations := relation.NewFactory(
		relation.WithRenderPolicy(render),
		relation.WithCapabilities(adp.Capabilities()),
		relation.WithDefaults(database, adp.DefaultSchema()),
	)

	threads := cfg.Threads
	if threads < 1 {
		threads = DefaultThreads
	}
	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	logger.Debug("initializing engine",
		slog.String("adapter", adp.Name()),
		slog.String("database", database),
		slog.String("environment", env),
		slog.Int("threads", threads))

	return &Engine{
		adapter:          adp,
		store:            store,
		relations:        relations,
		materializations: materialization.NewFactory(relations, materialization.WithMaterializations(materialization.AllMaterializations())),
		executor:         executor.New(adp, relations, logger),
		logger:           logger,
		environment:      env,
		threads:          threads,
		fullRefresh:      cfg.FullRefresh,
		now:              time.Now,
	}, nil
}

// Relations returns the relation factory nodes are built with.
func (e *Engine) Relations() *relation.Factory { return e.relations }

// Store returns the state store.
func (e *Engine) Store() state.Store { return e.store }

// Close releases the warehouse connection and the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	var errs []error
	if err := e.adapter.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// UnsupportedMaterializationError is returned for nodes whose
// materialization has no strategy.
type UnsupportedMaterializationError struct {
	Node            string
	Materialization string
	Supported       []materialization.Type
}

func (e *UnsupportedMaterializationError) Error() string {
	return fmt.Sprintf("node %s: unsupported materialization %q (supported: %v)", e.Node, e.Materialization, e.Supported)
}
