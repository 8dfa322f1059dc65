package relation

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultIndexMethod is used when an index declares no method.
const DefaultIndexMethod = "btree"

// IndexConfig is an index on a materialized view.
type IndexConfig struct {
	Name    string   `mapstructure:"name"`
	Method  string   `mapstructure:"method"`
	Unique  bool     `mapstructure:"unique"`
	Columns []string `mapstructure:"columns"`
}

// Signature identifies an index by what it indexes, ignoring its name:
// declared indexes are usually unnamed while introspected ones always
// carry the name the warehouse generated.
func (i IndexConfig) Signature() string {
	method := strings.ToLower(i.Method)
	if method == "" {
		method = DefaultIndexMethod
	}
	unique := ""
	if i.Unique {
		unique = "unique "
	}
	return fmt.Sprintf("%s%s(%s)", unique, method, strings.ToLower(strings.Join(i.Columns, ",")))
}

// parseIndexes accepts either []IndexConfig or a list of mappings, as found
// in node configs. The key type is accepted as a spelling of method.
func parseIndexes(component string, v any) ([]IndexConfig, error) {
	if v == nil {
		return nil, nil
	}
	if idx, ok := v.([]IndexConfig); ok {
		return append([]IndexConfig(nil), idx...), nil
	}
	var raw []struct {
		Name    string `mapstructure:"name"`
		Method  string `mapstructure:"method"`
		Type    string `mapstructure:"type"`
		Unique  bool   `mapstructure:"unique"`
		Columns any    `mapstructure:"columns"`
	}
	if err := decode(v, &raw); err != nil {
		return nil, &ConstructionError{Component: component, Key: "indexes", Err: err}
	}
	out := make([]IndexConfig, 0, len(raw))
	for _, r := range raw {
		method := r.Method
		if method == "" {
			method = r.Type
		}
		cols, err := indexColumns(r.Columns)
		if err != nil {
			return nil, &ConstructionError{Component: component, Key: "indexes", Err: err}
		}
		if len(cols) == 0 {
			return nil, &ConstructionError{Component: component, Key: "indexes", Reason: "index declares no columns"}
		}
		out = append(out, IndexConfig{Name: r.Name, Method: method, Unique: r.Unique, Columns: cols})
	}
	return out, nil
}

// indexColumns accepts a list of names or a comma separated string, the
// shape pg catalogs return from array_to_string.
func indexColumns(v any) ([]string, error) {
	switch c := v.(type) {
	case nil:
		return nil, nil
	case string:
		var cols []string
		for _, s := range strings.Split(c, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cols = append(cols, s)
			}
		}
		return cols, nil
	case []byte:
		return indexColumns(string(c))
	default:
		var cols []string
		if err := decode(c, &cols); err != nil {
			return nil, err
		}
		return cols, nil
	}
}

// MaterializedViewRelation is a materialized view with its defining query
// and indexes.
type MaterializedViewRelation struct {
	relationBase
	query   string
	indexes []IndexConfig
}

// Query returns the defining query.
func (m *MaterializedViewRelation) Query() string { return m.query }

// Indexes returns a copy of the index definitions.
func (m *MaterializedViewRelation) Indexes() []IndexConfig {
	return append([]IndexConfig(nil), m.indexes...)
}

// WithIdentifier implements Relation.
func (m *MaterializedViewRelation) WithIdentifier(name string) Relation {
	cp := *m
	cp.relationBase = m.relationBase.withName(name)
	return &cp
}

// Diff compares the defining query and the index set.
func (m *MaterializedViewRelation) Diff(existing Relation) []Change {
	changes := queryChange(m.query, existing.Query())
	var current []IndexConfig
	if mv, ok := existing.(*MaterializedViewRelation); ok {
		current = mv.indexes
	}
	return append(changes, indexChanges(m.indexes, current)...)
}

func indexChanges(declared, current []IndexConfig) []Change {
	want := make(map[string]IndexConfig, len(declared))
	for _, idx := range declared {
		want[idx.Signature()] = idx
	}
	have := make(map[string]IndexConfig, len(current))
	for _, idx := range current {
		have[idx.Signature()] = idx
	}

	var changes []Change
	for _, sig := range sortedKeys(have) {
		if _, ok := want[sig]; !ok {
			changes = append(changes, Change{Attribute: AttributeIndexes, Action: ChangeActionDrop, Context: have[sig]})
		}
	}
	for _, sig := range sortedKeys(want) {
		if _, ok := have[sig]; !ok {
			changes = append(changes, Change{Attribute: AttributeIndexes, Action: ChangeActionCreate, Context: want[sig]})
		}
	}
	return changes
}

func sortedKeys(m map[string]IndexConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MaterializedViewParser builds MaterializedViewRelation values.
type MaterializedViewParser struct {
	Schema SchemaParser
}

// Type implements Parser.
func (MaterializedViewParser) Type() Type { return TypeMaterializedView }

// FromDict requires query in addition to the shared relation keys.
func (p MaterializedViewParser) FromDict(dict map[string]any) (Relation, error) {
	base, err := baseFromDict(dict, p.Schema, TypeMaterializedView)
	if err != nil {
		return nil, err
	}
	query, err := requireString("materialized view", dict, "query")
	if err != nil {
		return nil, err
	}
	indexes, err := parseIndexes("materialized view", dict["indexes"])
	if err != nil {
		return nil, err
	}
	return &MaterializedViewRelation{relationBase: base, query: query, indexes: indexes}, nil
}

// ParseNode reads the query and the indexes config key.
func (p MaterializedViewParser) ParseNode(node NodeDescription) (map[string]any, error) {
	dict, err := baseParseNode(node, p.Schema, TypeMaterializedView)
	if err != nil {
		return nil, err
	}
	indexes, err := parseIndexes("materialized view", node.Config["indexes"])
	if err != nil {
		return nil, err
	}
	dict["query"] = node.Query
	dict["indexes"] = indexes
	return dict, nil
}

// ParseIntrospection reads the definition column of the relation set and
// every row of the indexes set.
func (p MaterializedViewParser) ParseIntrospection(results IntrospectionResults) (map[string]any, error) {
	dict, err := baseParseIntrospection(results, p.Schema, TypeMaterializedView)
	if err != nil {
		return nil, err
	}
	row, _ := results.First(ResultSetRelation)
	dict["query"] = row.String("definition", "query", "sql")

	indexes := make([]IndexConfig, 0, len(results[ResultSetIndexes]))
	for _, r := range results[ResultSetIndexes] {
		cols, err := indexColumns(r["column_names"])
		if err != nil {
			return nil, &ConstructionError{Component: "materialized view", Key: "indexes", Err: err}
		}
		indexes = append(indexes, IndexConfig{
			Name:    r.String("name"),
			Method:  r.String("method"),
			Unique:  r.Bool("unique"),
			Columns: cols,
		})
	}
	dict["indexes"] = indexes
	return dict, nil
}
