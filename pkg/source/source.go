// Package source holds declarative source definitions: tables loaded into
// the warehouse by something other than this tool. Sources are planned like
// any other node (external sources as external relations) and can be
// checked for freshness.
package source

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Quoting overrides the run-wide quoting for a source or one of its tables.
// Nil fields are unset.
type Quoting struct {
	Database   *bool `yaml:"database"`
	Schema     *bool `yaml:"schema"`
	Identifier *bool `yaml:"identifier"`
	Column     *bool `yaml:"column"`
}

// Merged applies others in order; the last set value of each field wins.
func (q Quoting) Merged(others ...Quoting) Quoting {
	for _, o := range others {
		if o.Database != nil {
			q.Database = o.Database
		}
		if o.Schema != nil {
			q.Schema = o.Schema
		}
		if o.Identifier != nil {
			q.Identifier = o.Identifier
		}
		if o.Column != nil {
			q.Column = o.Column
		}
	}
	return q
}

// Override converts q into a relation quoting override, or nil when q sets
// none of the path components.
func (q Quoting) Override() *relation.QuoteOverride {
	if q.Database == nil && q.Schema == nil && q.Identifier == nil {
		return nil
	}
	return &relation.QuoteOverride{Database: q.Database, Schema: q.Schema, Identifier: q.Identifier}
}

// ExternalPartition is a partition column of an external table.
type ExternalPartition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	DataType    string `yaml:"data_type"`
}

// ExternalTable describes data stored outside the warehouse.
type ExternalTable struct {
	Location      string              `yaml:"location"`
	FileFormat    string              `yaml:"file_format"`
	RowFormat     string              `yaml:"row_format"`
	TblProperties string              `yaml:"tbl_properties"`
	Partitions    []ExternalPartition `yaml:"partitions"`
}

// IsConfigured reports whether a location is set.
func (e *ExternalTable) IsConfigured() bool {
	return e != nil && e.Location != ""
}

func (e *ExternalTable) validate() error {
	if e == nil {
		return nil
	}
	for i, p := range e.Partitions {
		if p.Name == "" || p.DataType == "" {
			return fmt.Errorf("external partition %d: partition columns must have a name and a data_type", i)
		}
	}
	return nil
}

// TableDefinition is one table of a source.
type TableDefinition struct {
	Name          string              `yaml:"name"`
	Description   string              `yaml:"description"`
	Identifier    string              `yaml:"identifier"`
	LoadedAtField string              `yaml:"loaded_at_field"`
	Quoting       Quoting             `yaml:"quoting"`
	Freshness     *FreshnessThreshold `yaml:"freshness"`
	External      *ExternalTable      `yaml:"external"`
	Tags          []string            `yaml:"tags"`
	Config        map[string]any      `yaml:"config"`
}

// Definition is a source: a group of tables sharing a database and schema.
type Definition struct {
	Name          string              `yaml:"name"`
	Description   string              `yaml:"description"`
	Database      string              `yaml:"database"`
	Schema        string              `yaml:"schema"`
	Loader        string              `yaml:"loader"`
	Quoting       Quoting             `yaml:"quoting"`
	Freshness     *FreshnessThreshold `yaml:"freshness"`
	LoadedAtField string              `yaml:"loaded_at_field"`
	Tables        []TableDefinition   `yaml:"tables"`
	Tags          []string            `yaml:"tags"`
	Config        map[string]any      `yaml:"config"`
}

// Validate checks names, freshness thresholds and external partitions.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("source: name is required")
	}
	if err := d.Freshness.validate(); err != nil {
		return fmt.Errorf("source %s: freshness %w", d.Name, err)
	}
	seen := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if t.Name == "" {
			return fmt.Errorf("source %s: table name is required", d.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("source %s: duplicate table %s", d.Name, t.Name)
		}
		seen[t.Name] = true
		if err := t.Freshness.validate(); err != nil {
			return fmt.Errorf("source %s.%s: freshness %w", d.Name, t.Name, err)
		}
		if err := t.External.validate(); err != nil {
			return fmt.Errorf("source %s.%s: %w", d.Name, t.Name, err)
		}
	}
	return nil
}

// Table is a source table with the source-level settings applied.
type Table struct {
	Source        string
	Name          string
	Identifier    string
	Database      string
	Schema        string
	LoadedAtField string
	Quoting       Quoting
	Freshness     *FreshnessThreshold
	External      *ExternalTable
}

// Key identifies the table as source.table.
func (t Table) Key() string { return t.Source + "." + t.Name }

// Node describes the table as a relation node: external when the table has
// an external location, a table otherwise.
func (t Table) Node() relation.NodeDescription {
	node := relation.NodeDescription{
		Name:         t.Identifier,
		Database:     t.Database,
		Schema:       t.Schema,
		Materialized: string(relation.TypeTable),
		Quoting:      t.Quoting.Override(),
	}
	if t.External.IsConfigured() {
		node.Materialized = string(relation.TypeExternal)
		node.Config = map[string]any{
			"location":    t.External.Location,
			"file_format": t.External.FileFormat,
		}
	}
	return node
}

// HasFreshness reports whether the table can be checked for freshness.
func (t Table) HasFreshness() bool {
	return t.LoadedAtField != "" && t.Freshness.IsConfigured()
}

// FreshnessQuery returns the query reading the newest loaded_at value from
// the table rendered at path.
func (t Table) FreshnessQuery(path string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "select max(%s) as max_loaded_at from %s", t.LoadedAtField, path)
	if t.Freshness != nil && t.Freshness.Filter != "" {
		fmt.Fprintf(&b, " where %s", t.Freshness.Filter)
	}
	return b.String()
}

// ResolvedTables applies source-level defaults to every table. The schema
// defaults to the source name and the identifier to the table name.
func (d Definition) ResolvedTables() []Table {
	schema := d.Schema
	if schema == "" {
		schema = d.Name
	}
	out := make([]Table, 0, len(d.Tables))
	for _, t := range d.Tables {
		ident := t.Identifier
		if ident == "" {
			ident = t.Name
		}
		loadedAt := t.LoadedAtField
		if loadedAt == "" {
			loadedAt = d.LoadedAtField
		}
		out = append(out, Table{
			Source:        d.Name,
			Name:          t.Name,
			Identifier:    ident,
			Database:      d.Database,
			Schema:        schema,
			LoadedAtField: loadedAt,
			Quoting:       d.Quoting.Merged(t.Quoting),
			Freshness:     d.Freshness.Merged(t.Freshness),
			External:      t.External,
		})
	}
	return out
}

// Nodes returns a relation node per table.
func (d Definition) Nodes() []relation.NodeDescription {
	tables := d.ResolvedTables()
	nodes := make([]relation.NodeDescription, len(tables))
	for i, t := range tables {
		nodes[i] = t.Node()
	}
	return nodes
}
