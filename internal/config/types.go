// Package config provides configuration management for relplan.
//
// Configuration is layered with koanf: defaults, then relplan.yaml, then
// RELPLAN_ environment variables, then command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/relplan/pkg/adapter"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Default configuration values.
const (
	DefaultNodesDir   = "nodes"
	DefaultStateFile  = ".relplan/state.db"
	DefaultEnv        = "dev"
	DefaultOutput     = "auto" // TTY=text, non-TTY=json
	DefaultThreads    = 4
	DefaultTargetType = "duckdb"
)

// Output modes accepted by --output.
var outputModes = []string{"auto", "text", "json"}

// Config holds all relplan configuration options.
type Config struct {
	ProjectRoot  string               `koanf:"-"`
	NodesDir     string               `koanf:"nodes_dir"`
	StatePath    string               `koanf:"state_path"`
	Environment  string               `koanf:"environment"`
	Threads      int                  `koanf:"threads"`
	FullRefresh  bool                 `koanf:"full_refresh"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Target       *TargetConfig        `koanf:"target"`
	Render       map[string]any       `koanf:"render"`
	Environments map[string]EnvConfig `koanf:"environments"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	NodesDir string         `koanf:"nodes_dir"`
	Target   *TargetConfig  `koanf:"target"`
	Render   map[string]any `koanf:"render"`
}

// TargetConfig holds warehouse connection configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres

	// File-based databases
	Path string `koanf:"path"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	Schema string `koanf:"schema"`

	// Options are driver connection options (e.g. sslmode).
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration such as DuckDB extensions.
	Params map[string]any `koanf:"params"`
}

// Validate checks the target against the adapter registry.
func (t *TargetConfig) Validate() error {
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// applyDefaults fills type-specific defaults.
func (t *TargetConfig) applyDefaults() {
	t.Type = strings.ToLower(t.Type)
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = 5432
	}
}

// Validate checks the values that cannot be repaired by defaults.
func (c *Config) Validate() error {
	if c.NodesDir == "" {
		return fmt.Errorf("nodes_dir is required")
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	valid := false
	for _, m := range outputModes {
		if c.OutputFormat == m {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("unknown output format %q (expected one of %s)", c.OutputFormat, strings.Join(outputModes, ", "))
	}
	if c.Target == nil {
		return fmt.Errorf("target is required")
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	return nil
}

// AdapterConfig converts the target into the adapter connection config.
func (c *Config) AdapterConfig() adapter.Config {
	t := c.Target
	if t == nil {
		return adapter.Config{Type: DefaultTargetType}
	}
	return adapter.Config{
		Type:     t.Type,
		Path:     t.Path,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// RenderPolicy builds the relation render policy from the render section.
// An absent section yields the fully quoted, fully included policy.
func (c *Config) RenderPolicy() (*relation.RenderPolicy, error) {
	if len(c.Render) == 0 {
		return relation.NewRenderPolicy(), nil
	}
	p, err := relation.RenderPolicyFromDict(c.Render)
	if err != nil {
		return nil, fmt.Errorf("invalid render configuration: %w", err)
	}
	return p, nil
}
