package relation

import (
	"fmt"
	"strconv"
	"strings"
)

// QuoteOverride adjusts individual quote settings for one node. Nil fields
// keep the run-wide setting.
type QuoteOverride struct {
	Database   *bool `yaml:"database,omitempty"`
	Schema     *bool `yaml:"schema,omitempty"`
	Identifier *bool `yaml:"identifier,omitempty"`
}

// Apply returns base with the non-nil override fields applied.
func (o *QuoteOverride) Apply(base QuotePolicy) QuotePolicy {
	if o == nil {
		return base
	}
	if o.Database != nil {
		base.Database = *o.Database
	}
	if o.Schema != nil {
		base.Schema = *o.Schema
	}
	if o.Identifier != nil {
		base.Identifier = *o.Identifier
	}
	return base
}

// NodeDescription is the declarative description of a node handed over by
// the parsing front end.
type NodeDescription struct {
	Name         string         `yaml:"name"`
	Database     string         `yaml:"database,omitempty"`
	Schema       string         `yaml:"schema,omitempty"`
	Materialized string         `yaml:"materialized"`
	Query        string         `yaml:"query,omitempty"`
	Config       map[string]any `yaml:"config,omitempty"`
	DependsOn    []string       `yaml:"depends_on,omitempty"`
	Quoting      *QuoteOverride `yaml:"quoting,omitempty"`
}

// Key identifies the node within a project: schema.name, or just name when
// no schema is declared.
func (n NodeDescription) Key() string {
	if n.Schema == "" {
		return n.Name
	}
	return n.Schema + "." + n.Name
}

// ConfigString returns a string config value, or "" when unset.
func (n NodeDescription) ConfigString(key string) string {
	if v, ok := n.Config[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// ConfigBool returns a boolean config value, or false when unset.
func (n NodeDescription) ConfigBool(key string) bool {
	switch v := n.Config[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Result set names in IntrospectionResults.
const (
	ResultSetRelation = "relation"
	ResultSetIndexes  = "indexes"
)

// Row is one row of a catalog query, keyed by column name.
type Row map[string]any

// Lookup returns the first present value among keys. Catalog column names
// differ between warehouses, so parsers pass every known spelling.
func (r Row) Lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns the first present value among keys as a string.
func (r Row) String(keys ...string) string {
	v, ok := r.Lookup(keys...)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

// Bool returns the first present value among keys as a bool.
func (r Row) Bool(keys ...string) bool {
	v, ok := r.Lookup(keys...)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case []byte:
		p, _ := strconv.ParseBool(string(b))
		return p
	case string:
		p, _ := strconv.ParseBool(strings.TrimSpace(b))
		return p
	default:
		return false
	}
}

// IntrospectionResults holds the result sets of the catalog queries run
// against the warehouse for one relation.
type IntrospectionResults map[string][]Row

// Empty reports whether the relation was not found.
func (r IntrospectionResults) Empty() bool {
	return len(r[ResultSetRelation]) == 0
}

// First returns the first row of a result set.
func (r IntrospectionResults) First(set string) (Row, bool) {
	rows := r[set]
	if len(rows) == 0 {
		return nil, false
	}
	return rows[0], true
}

// Catalog column spellings understood by the default parsers.
var (
	databaseColumns = []string{"database", "table_catalog", "catalog_name", "database_name"}
	schemaColumns   = []string{"schema", "schemaname", "table_schema", "schema_name"}
	nameColumns     = []string{"name", "matviewname", "viewname", "tablename", "table_name", "view_name"}
	typeColumns     = []string{"relation_type", "type"}
)
