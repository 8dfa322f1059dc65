package executor

import (
	"strings"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Snapshot renders rel as the introspection results a catalog would return
// for it. Snapshots of applied relations are persisted and stand in for
// introspection when the adapter cannot describe a relation type.
func Snapshot(rel relation.Relation) relation.IntrospectionResults {
	row := relation.Row{
		"database":      rel.DatabaseName(),
		"schema":        rel.SchemaName(),
		"name":          rel.Name(),
		"relation_type": string(rel.Type()),
	}
	results := relation.IntrospectionResults{}

	switch r := rel.(type) {
	case *relation.MaterializedViewRelation:
		row["definition"] = r.Query()
		indexes := make([]relation.Row, 0, len(r.Indexes()))
		for _, idx := range r.Indexes() {
			indexes = append(indexes, relation.Row{
				"name":         idx.Name,
				"method":       idx.Method,
				"unique":       idx.Unique,
				"column_names": strings.Join(idx.Columns, ","),
			})
		}
		results[relation.ResultSetIndexes] = indexes
	case *relation.ViewRelation:
		row["definition"] = r.Query()
	case *relation.ExternalRelation:
		row["location"] = r.Location()
		row["file_format"] = r.FileFormat()
	}

	results[relation.ResultSetRelation] = []relation.Row{row}
	return results
}

// CatalogDefinitionColumn holds, in a snapshot's relation row, the
// definition the warehouse reported right after the relation was applied.
const CatalogDefinitionColumn = "catalog_definition"

var definitionColumns = []string{"definition", "query", "sql"}

// WithCatalogDefinition copies the definition found in live into the
// relation row of snap.
func WithCatalogDefinition(snap, live relation.IntrospectionResults) relation.IntrospectionResults {
	liveRow, ok := live.First(relation.ResultSetRelation)
	if !ok {
		return snap
	}
	def := liveRow.String(definitionColumns...)
	if def == "" {
		return snap
	}
	return withRelationRow(snap, func(row relation.Row) {
		row[CatalogDefinitionColumn] = def
	})
}

// Reconcile returns live with its definition replaced by the query recorded
// at the last apply, as long as the warehouse still reports the definition
// it reported right after that apply. Catalogs such as pg_views return a
// deparsed query that never matches the declared text. Every other column
// and result set, indexes included, comes from live.
func Reconcile(live, recorded relation.IntrospectionResults) relation.IntrospectionResults {
	liveRow, ok := live.First(relation.ResultSetRelation)
	if !ok {
		return live
	}
	recRow, ok := recorded.First(relation.ResultSetRelation)
	if !ok {
		return live
	}
	catalog := recRow.String(CatalogDefinitionColumn)
	if catalog == "" || recRow.String("relation_type") != liveRow.String("relation_type") {
		return live
	}
	if relation.NormalizeQuery(catalog) != relation.NormalizeQuery(liveRow.String(definitionColumns...)) {
		return live
	}
	applied := recRow.String(definitionColumns...)
	return withRelationRow(live, func(row relation.Row) {
		for _, col := range definitionColumns {
			delete(row, col)
		}
		row["definition"] = applied
	})
}

// withRelationRow returns a shallow copy of results whose first relation
// row was copied and passed to edit.
func withRelationRow(results relation.IntrospectionResults, edit func(relation.Row)) relation.IntrospectionResults {
	out := make(relation.IntrospectionResults, len(results))
	for set, rows := range results {
		out[set] = rows
	}
	rows := results[relation.ResultSetRelation]
	first := make(relation.Row, len(rows[0])+1)
	for k, v := range rows[0] {
		first[k] = v
	}
	edit(first)
	out[relation.ResultSetRelation] = append([]relation.Row{first}, rows[1:]...)
	return out
}
