package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/relplan/pkg/source"
)

// ErrNoLoadedAt is reported for source tables without any loaded_at value.
var ErrNoLoadedAt = errors.New("no rows with a loaded_at value")

// FreshnessResult is the freshness of one source table.
type FreshnessResult struct {
	Source      string
	Relation    string
	MaxLoadedAt time.Time
	Age         time.Duration
	Status      source.FreshnessStatus
	Err         error
}

// Freshness checks every table with a loaded_at field and a configured
// threshold. Other tables are not reported. Query failures are reported as
// errors on the table's result.
func (e *Engine) Freshness(ctx context.Context, tables []source.Table) ([]FreshnessResult, error) {
	var checked []source.Table
	for _, t := range tables {
		if t.HasFreshness() {
			checked = append(checked, t)
		}
	}

	results := make([]FreshnessResult, len(checked))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.threads)
	for i, t := range checked {
		eg.Go(func() error {
			results[i] = e.freshness(egCtx, t)
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) freshness(ctx context.Context, t source.Table) FreshnessResult {
	res := FreshnessResult{Source: t.Key(), Status: source.FreshnessError}

	rel, err := e.relations.MakeFromNode(t.Node())
	if err != nil {
		res.Err = err
		return res
	}
	res.Relation = rel.FullyQualifiedPath()

	rows, err := e.adapter.Query(ctx, t.FreshnessQuery(res.Relation))
	if err != nil {
		res.Err = fmt.Errorf("failed to query freshness of %s: %w", res.Relation, err)
		return res
	}
	var loadedAt any
	if len(rows) > 0 {
		loadedAt, _ = rows[0].Lookup("max_loaded_at")
	}
	if loadedAt == nil {
		res.Err = ErrNoLoadedAt
		return res
	}
	newest, err := asTime(loadedAt)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", res.Relation, err)
		return res
	}

	res.MaxLoadedAt = newest
	res.Age = e.now().Sub(newest)
	if res.Age < 0 {
		res.Age = 0
	}
	res.Status = t.Freshness.Status(res.Age)
	e.logger.Debug("checked source freshness",
		slog.String("source", res.Source),
		slog.Duration("age", res.Age),
		slog.String("status", string(res.Status)))
	return res
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// asTime converts a scanned timestamp. Drivers return time.Time; some
// return text for timestamps computed in a query.
func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case []byte:
		return asTime(string(t))
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse loaded_at value %q", t)
	default:
		return time.Time{}, fmt.Errorf("unexpected loaded_at value of type %T", v)
	}
}
