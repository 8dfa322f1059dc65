// Package postgres provides a PostgreSQL warehouse adapter.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/leapstack-labs/relplan/pkg/adapter"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Name is the adapter name used in target.type.
const Name = "postgres"

const defaultSchema = "public"

// lookupQuery finds a relation in any of the catalogs holding tables, views
// and materialized views. Every postgres relation can be renamed.
const lookupQuery = `
select current_database() as database, schemaname as schema, name, relation_type, true as can_be_renamed
from (
    select schemaname, tablename as name, 'table' as relation_type from pg_tables
    union all
    select schemaname, viewname as name, 'view' as relation_type from pg_views
    union all
    select schemaname, matviewname as name, 'materialized_view' as relation_type from pg_matviews
) relations
where schemaname = $1 and name = $2`

const describeMaterializedViewQuery = `
select current_database() as database, schemaname, matviewname, definition, 'materialized_view' as relation_type
from pg_matviews
where schemaname = $1 and matviewname = $2`

const describeViewQuery = `
select current_database() as database, schemaname, viewname, definition, 'view' as relation_type
from pg_views
where schemaname = $1 and viewname = $2`

const describeTableQuery = `
select current_database() as database, schemaname, tablename, 'table' as relation_type
from pg_tables
where schemaname = $1 and tablename = $2`

const describeIndexesQuery = `
select
    i.relname                                   as name,
    m.amname                                    as method,
    ix.indisunique                              as "unique",
    array_to_string(array_agg(a.attname), ',')  as column_names
from pg_index ix
join pg_class i on i.oid = ix.indexrelid
join pg_am m on m.oid = i.relam
join pg_class t on t.oid = ix.indrelid
join pg_namespace n on n.oid = t.relnamespace
join pg_attribute a on a.attrelid = t.oid and a.attnum = any(ix.indkey)
where n.nspname = $1 and t.relname = $2 and t.relkind in ('r', 'm')
group by 1, 2, 3
order by 1, 2, 3`

// Adapter implements the adapter.Adapter interface for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
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

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// CurrentDatabase implements adapter.Adapter.
func (a *Adapter) CurrentDatabase(ctx context.Context) (string, error) {
	return a.CurrentDatabaseWith(ctx, "select current_database()")
}

// DefaultSchema implements adapter.Adapter.
func (a *Adapter) DefaultSchema() string { return a.SchemaOrDefault(defaultSchema) }

// LookupRelation implements adapter.Adapter.
func (a *Adapter) LookupRelation(ctx context.Context, schema, name string) (relation.Row, error) {
	rows, err := a.Query(ctx, lookupQuery, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s.%s: %w", schema, name, err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("more than one relation named %s.%s", schema, name)
	}
}

// DescribeRelation implements adapter.Adapter. Materialized views are
// described with their indexes.
func (a *Adapter) DescribeRelation(ctx context.Context, ref relation.Ref) (relation.IntrospectionResults, error) {
	var query string
	switch ref.Type() {
	case relation.TypeMaterializedView:
		query = describeMaterializedViewQuery
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
	results := relation.IntrospectionResults{relation.ResultSetRelation: rows}
	if len(rows) == 0 || ref.Type() != relation.TypeMaterializedView {
		return results, nil
	}

	indexes, err := a.Query(ctx, describeIndexesQuery, ref.SchemaName(), ref.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to describe indexes of %s: %w", ref.FullyQualifiedPath(), err)
	}
	results[relation.ResultSetIndexes] = indexes
	return results, nil
}

// Capabilities implements adapter.Adapter. Indexes of a materialized view
// can be created and dropped without rebuilding it.
func (a *Adapter) Capabilities() relation.Capabilities {
	return relation.Capabilities{
		Alterable: map[relation.Type][]string{
			relation.TypeMaterializedView: {relation.AttributeIndexes},
		},
		Renamable: map[relation.Type]bool{
			relation.TypeTable:            true,
			relation.TypeView:             true,
			relation.TypeMaterializedView: true,
		},
	}
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
