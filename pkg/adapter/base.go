package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec, and Query implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if b.Logger != nil {
		b.Logger.Debug("exec", slog.String("sql", sqlStr))
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement and scans every row into a relation.Row.
// Byte slices are converted to strings.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, args ...any) ([]relation.Row, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []relation.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(relation.Row, len(cols))
		for i, c := range cols {
			if bs, ok := values[i].([]byte); ok {
				row[c] = string(bs)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// QueryFirst returns the first row of a query, or nil when there is none.
func (b *BaseSQLAdapter) QueryFirst(ctx context.Context, sqlStr string, args ...any) (relation.Row, error) {
	rows, err := b.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// CurrentDatabaseWith runs query and returns its single string result.
func (b *BaseSQLAdapter) CurrentDatabaseWith(ctx context.Context, query string) (string, error) {
	row, err := b.QueryFirst(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to read current database: %w", err)
	}
	for _, v := range row {
		return fmt.Sprint(v), nil
	}
	if b.Cfg.Database != "" {
		return b.Cfg.Database, nil
	}
	return "", fmt.Errorf("failed to read current database: no rows")
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// SchemaOrDefault returns the configured schema, or fallback.
func (b *BaseSQLAdapter) SchemaOrDefault(fallback string) string {
	if b.Cfg.Schema != "" {
		return b.Cfg.Schema
	}
	return fallback
}
