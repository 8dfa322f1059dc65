// Package nodes loads node descriptions and source definitions from the
// project's nodes directory: YAML files with models and sources lists, and
// SQL files carrying a YAML frontmatter block.
package nodes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Frontmatter is the YAML header of a SQL node file. The shorthand keys
// unique_key, indexes, on_configuration_change and refresh are folded into
// the node config.
type Frontmatter struct {
	Name                  string                  `yaml:"name"`
	Description           string                  `yaml:"description"`
	Database              string                  `yaml:"database"`
	Schema                string                  `yaml:"schema"`
	Materialized          string                  `yaml:"materialized"`
	UniqueKey             string                  `yaml:"unique_key"`
	Indexes               []map[string]any        `yaml:"indexes"`
	OnConfigurationChange string                  `yaml:"on_configuration_change"`
	Refresh               *bool                   `yaml:"refresh"`
	DependsOn             []string                `yaml:"depends_on"`
	Quoting               *relation.QuoteOverride `yaml:"quoting"`
	Tags                  []string                `yaml:"tags"`
	Config                map[string]any          `yaml:"config"`
}

// frontmatterPattern matches /*--- ... ---*/ blocks at the start of a file.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

// ParseSQL builds a node from SQL content. Without frontmatter the node is
// named after the file and takes the defaults.
func ParseSQL(file, defaultName, defaultSchema, content string) (relation.NodeDescription, error) {
	fm := &Frontmatter{}
	query := strings.TrimSpace(content)

	if m := frontmatterPattern.FindStringSubmatch(content); len(m) == 2 {
		query = strings.TrimSpace(frontmatterPattern.ReplaceAllString(content, ""))
		dec := yaml.NewDecoder(bytes.NewBufferString(m[1]))
		dec.KnownFields(true)
		if err := dec.Decode(fm); err != nil && !errors.Is(err, io.EOF) {
			return relation.NodeDescription{}, &ParseError{File: file, Message: fmt.Sprintf("invalid frontmatter: %v", err)}
		}
	}

	node := fm.node(query)
	applyDefaults(&node, defaultName, defaultSchema)
	if node.Query == "" {
		return relation.NodeDescription{}, &ParseError{File: file, Message: "node has no query"}
	}
	return node, nil
}

func (fm *Frontmatter) node(query string) relation.NodeDescription {
	config := make(map[string]any, len(fm.Config)+4)
	for k, v := range fm.Config {
		config[k] = v
	}
	if fm.UniqueKey != "" {
		config["unique_key"] = fm.UniqueKey
	}
	if len(fm.Indexes) > 0 {
		indexes := make([]any, len(fm.Indexes))
		for i, idx := range fm.Indexes {
			indexes[i] = idx
		}
		config["indexes"] = indexes
	}
	if fm.OnConfigurationChange != "" {
		config["on_configuration_change"] = fm.OnConfigurationChange
	}
	if fm.Refresh != nil {
		config["refresh"] = *fm.Refresh
	}
	if len(config) == 0 {
		config = nil
	}

	return relation.NodeDescription{
		Name:         fm.Name,
		Database:     fm.Database,
		Schema:       fm.Schema,
		Materialized: fm.Materialized,
		Query:        query,
		Config:       config,
		DependsOn:    fm.DependsOn,
		Quoting:      fm.Quoting,
	}
}

// DefaultMaterialized is used by nodes that do not declare a materialization.
const DefaultMaterialized = "table"

func applyDefaults(node *relation.NodeDescription, name, schema string) {
	if node.Name == "" {
		node.Name = name
	}
	if node.Schema == "" {
		node.Schema = schema
	}
	if node.Materialized == "" {
		node.Materialized = DefaultMaterialized
	}
}

// ParseError is a malformed node or source file.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}
