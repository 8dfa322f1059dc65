// Package adapter defines the warehouse adapter contract used by the
// executor to look up, describe and change relations.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves with Register from their init functions.
package adapter

import (
	"context"
	"errors"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// ErrDescribeUnsupported is returned by DescribeRelation when the adapter
// cannot read the configuration of a relation type from the catalog.
var ErrDescribeUnsupported = errors.New("describe not supported for this relation type")

// Config holds configuration for connecting to a warehouse.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Adapter defines the interface that all warehouse adapters must implement.
type Adapter interface {
	// Name returns the registered adapter name.
	Name() string

	// Connect establishes a connection to the warehouse using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection and releases resources.
	Close() error

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a statement and returns every row keyed by column name.
	Query(ctx context.Context, sql string, args ...any) ([]relation.Row, error)

	// CurrentDatabase returns the database new relations default to.
	CurrentDatabase(ctx context.Context) (string, error)

	// DefaultSchema returns the schema new relations default to.
	DefaultSchema() string

	// LookupRelation finds a relation by schema and name in the catalog.
	// It returns nil and no error when the relation does not exist. The
	// row carries at least name, schema, database, relation_type and
	// can_be_renamed.
	LookupRelation(ctx context.Context, schema, name string) (relation.Row, error)

	// DescribeRelation runs the catalog queries describing ref's
	// configuration. Missing relations yield empty results.
	DescribeRelation(ctx context.Context, ref relation.Ref) (relation.IntrospectionResults, error)

	// Capabilities reports what the warehouse can change in place.
	Capabilities() relation.Capabilities
}
