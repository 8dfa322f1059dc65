// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/cli/output"
	"github.com/leapstack-labs/relplan/internal/config"
)

// Project files written by SetupTestProject, relative to the project root.
var projectFiles = map[string]string{
	"nodes/main/raw_orders.sql": `/*---
materialized: table
---*/
select * from (values
    (1, 'alice', 20.0, now()),
    (2, 'bob', 35.5, now())
) as t(order_id, customer, amount, loaded_at)`,

	"nodes/main/orders.sql": `/*---
materialized: incremental
unique_key: order_id
depends_on: [raw_orders]
---*/
select order_id, customer, amount from main.raw_orders`,

	"nodes/main/customer_totals.sql": `/*---
materialized: view
depends_on: [orders]
---*/
select customer, sum(amount) as total from main.orders group by customer`,

	"nodes/sources.yml": `sources:
  - name: raw
    schema: main
    tables:
      - name: raw_orders
        loaded_at_field: loaded_at
        freshness:
          warn_after: {count: 12, period: hour}
          error_after: {count: 1, period: day}
`,
}

// SetupTestProject creates a temporary project with a table, an incremental
// model built on it, a view on top and a source with a freshness threshold.
// It returns the project root.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range projectFiles {
		path := filepath.Join(tmpDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return tmpDir
}

// ProjectConfig returns a configuration for the project at root, targeting a
// DuckDB file inside it.
func ProjectConfig(root string, mode output.Mode) *config.Config {
	return &config.Config{
		ProjectRoot:  root,
		NodesDir:     filepath.Join(root, "nodes"),
		StatePath:    filepath.Join(root, ".relplan", "state.db"),
		Environment:  config.DefaultEnv,
		Threads:      2,
		OutputFormat: string(mode),
		Target:       &config.TargetConfig{Type: "duckdb", Path: filepath.Join(root, "warehouse.duckdb")},
	}
}

// ExecuteCommand runs cmd with cfg in its context, as the root command does
// after loading configuration, and returns what it wrote to stdout.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	ctx := config.WithConfig(context.Background(), cfg)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}
