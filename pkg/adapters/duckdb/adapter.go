// Package duckdb provides a DuckDB warehouse adapter.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/relplan/pkg/adapter"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Name is the adapter name used in target.type.
const Name = "duckdb"

const defaultSchema = "main"

const lookupQuery = `
select table_catalog as database, table_schema as schema, table_name as name,
    case table_type when 'VIEW' then 'view' else 'table' end as relation_type,
    true as can_be_renamed
from information_schema.tables
where table_schema = ? and table_name = ?`

const describeViewQuery = `
select database_name as database, schema_name as schema, view_name as name, sql, 'view' as relation_type
from duckdb_views()
where schema_name = ? and view_name = ?`

const describeTableQuery = `
select table_catalog as database, table_schema as schema, table_name as name, 'table' as relation_type
from information_schema.tables
where table_schema = ? and table_name = ? and table_type = 'BASE TABLE'`

// duckdb_views() returns the full CREATE VIEW statement.
var createViewPrefix = regexp.MustCompile(`(?is)^\s*create\s+(or\s+replace\s+)?(temp\s+|temporary\s+)?view\s+.+?\s+as\s+`)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Name implements adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Connect establishes a connection to DuckDB and applies the extensions,
// settings and secrets from cfg.Params.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	if err := a.applyParams(ctx, params); err != nil {
		_ = db.Close()
		a.DB = nil
		return err
	}
	return nil
}

func (a *Adapter) applyParams(ctx context.Context, p *Params) error {
	for _, ext := range p.Extensions {
		if err := a.Exec(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("failed to load extension %s: %w", ext, err)
		}
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := a.Exec(ctx, fmt.Sprintf("SET %s = %s", k, quoteLiteral(p.Settings[k]))); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}

	for i, s := range p.Secrets {
		if err := a.Exec(ctx, buildCreateSecretSQL(s)); err != nil {
			return fmt.Errorf("failed to create secret %d (%s): %w", i, s.Type, err)
		}
	}
	return nil
}

// CurrentDatabase implements adapter.Adapter.
func (a *Adapter) CurrentDatabase(ctx context.Context) (string, error) {
	return a.CurrentDatabaseWith(ctx, "select current_database()")
}

// DefaultSchema implements adapter.Adapter.
func (a *Adapter) DefaultSchema() string { return a.SchemaOrDefault(defaultSchema) }

// LookupRelation implements adapter.Adapter.
func (a *Adapter) LookupRelation(ctx context.Context, schema, name string) (relation.Row, error) {
	row, err := a.QueryFirst(ctx, lookupQuery, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s.%s: %w", schema, name, err)
	}
	return row, nil
}

// DescribeRelation implements adapter.Adapter.
func (a *Adapter) DescribeRelation(ctx context.Context, ref relation.Ref) (relation.IntrospectionResults, error) {
	var query string
	switch ref.Type() {
	case relation.TypeView:
		query = describeViewQuery
	case relation.TypeTable:
		query = describeTableQuery
	default:
		return nil, fmt.Errorf("%s %s: %w", ref.Type(), ref.FullyQualifiedPath(), adapter.ErrDescribeUnsupported)
	}

	rows, err := a.Query(ctx, query, ref.SchemaName(), ref.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", ref.FullyQualifiedPath(), err)
	}
	for _, row := range rows {
		if def := row.String("sql"); def != "" {
			row["sql"] = createViewPrefix.ReplaceAllString(def, "")
		}
	}
	return relation.IntrospectionResults{relation.ResultSetRelation: rows}, nil
}

// Capabilities implements adapter.Adapter. DuckDB has no materialized
// views and cannot alter view definitions in place.
func (a *Adapter) Capabilities() relation.Capabilities {
	return relation.Capabilities{
		Renamable: map[relation.Type]bool{
			relation.TypeTable: true,
			relation.TypeView:  true,
		},
	}
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
