package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/relplan/pkg/relation"

	// Register adapters for target validation.
	_ "github.com/leapstack-labs/relplan/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/relplan/pkg/adapters/postgres"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("nodes-dir", "", "")
	fs.String("state", "", "")
	fs.String("env", "", "")
	fs.Int("threads", 0, "")
	fs.Bool("full-refresh", false, "")
	fs.Bool("verbose", false, "")
	fs.String("output", "", "")
	return fs
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func realPath(t *testing.T, path string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return p
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, used, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, used)
	assert.Equal(t, realPath(t, dir), realPath(t, cfg.ProjectRoot))
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultNodesDir), cfg.NodesDir)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultEnv, cfg.Environment)
	assert.Equal(t, DefaultThreads, cfg.Threads)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.FullRefresh)
	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
}

func TestLoad_FileFoundUpward(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
nodes_dir: models
threads: 8
target:
  type: Postgres
  host: localhost
  database: analytics
  user: etl
  password: ${RELPLAN_TEST_PASSWORD}
  options:
    sslmode: require
render:
  quote:
    database: false
  casing: lower
`)
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)
	t.Setenv("RELPLAN_TEST_PASSWORD", "s3cret")

	cfg, used, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, realPath(t, filepath.Join(root, ConfigFileName)), realPath(t, used))
	assert.Equal(t, realPath(t, root), realPath(t, cfg.ProjectRoot))
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "models"), cfg.NodesDir)
	assert.Equal(t, 8, cfg.Threads)

	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, 5432, cfg.Target.Port)
	assert.Equal(t, "s3cret", cfg.Target.Password)

	ac := cfg.AdapterConfig()
	assert.Equal(t, "etl", ac.Username)
	assert.Equal(t, "analytics", ac.Database)
	assert.Equal(t, "require", ac.Options["sslmode"])

	policy, err := cfg.RenderPolicy()
	require.NoError(t, err)
	assert.Equal(t, relation.CasingLower, policy.Casing())
	assert.False(t, policy.Quote().Database)
	assert.Equal(t, `analytics."public"."orders"`, policy.Render("Analytics", "public", "orders"))
}

func TestLoad_Precedence(t *testing.T) {
	root := t.TempDir()
	cfgFile := writeConfig(t, root, `
threads: 2
output: text
environment: dev
`)
	t.Chdir(root)
	t.Setenv("RELPLAN_THREADS", "6")
	t.Setenv("RELPLAN_TARGET__SCHEMA", "staging")

	cfg, _, err := Load(cfgFile, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Threads, "env overrides file")
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Equal(t, "staging", cfg.Target.Schema)

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--threads", "3", "--output", "json", "--full-refresh", "--state", "tmp/state.db"}))
	cfg, _, err = Load(cfgFile, flags)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Threads, "flags override env")
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.True(t, cfg.FullRefresh)
	assert.Equal(t, realPath(t, root), realPath(t, filepath.Dir(filepath.Dir(cfg.StatePath))))
}

func TestLoad_Environments(t *testing.T) {
	root := t.TempDir()
	cfgFile := writeConfig(t, root, `
target:
  type: duckdb
  path: dev.duckdb
  schema: main
  params:
    settings:
      threads: "2"
render:
  casing: upper
environments:
  prod:
    nodes_dir: prod_nodes
    target:
      path: /data/prod.duckdb
      params:
        extensions: [httpfs]
    render:
      quote_character: "`+"`"+`"
`)
	t.Chdir(root)

	cfg, _, err := Load(cfgFile, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "dev.duckdb"), cfg.Target.Path)

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--env", "prod"}))
	cfg, _, err = Load(cfgFile, flags)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "prod_nodes"), cfg.NodesDir)
	assert.Equal(t, "/data/prod.duckdb", cfg.Target.Path)
	assert.Equal(t, "main", cfg.Target.Schema)
	assert.Contains(t, cfg.Target.Params, "settings")
	assert.Contains(t, cfg.Target.Params, "extensions")

	policy, err := cfg.RenderPolicy()
	require.NoError(t, err)
	assert.Equal(t, relation.CasingUpper, policy.Casing())
	assert.Equal(t, "`", policy.QuoteCharacter())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		expectErr string
	}{
		{name: "unknown adapter", content: "target: {type: oracle}\n", expectErr: "unknown adapter type"},
		{name: "zero threads", content: "threads: 0\n", expectErr: "threads must be at least 1"},
		{name: "bad output", content: "output: markdown\n", expectErr: "unknown output format"},
		{name: "malformed yaml", content: "target: [\n", expectErr: "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			t.Chdir(root)
			_, _, err := Load(writeConfig(t, root, tt.content), nil)
			assert.ErrorContains(t, err, tt.expectErr)
		})
	}
}

func TestConfig_RenderPolicyInvalid(t *testing.T) {
	cfg := &Config{Render: map[string]any{"casing": "title"}}
	_, err := cfg.RenderPolicy()
	assert.ErrorContains(t, err, "invalid render configuration")

	cfg = &Config{}
	policy, err := cfg.RenderPolicy()
	require.NoError(t, err)
	assert.True(t, policy.Equal(relation.NewRenderPolicy()))
}

func TestMergeTargetConfig(t *testing.T) {
	base := &TargetConfig{
		Type:    "postgres",
		Host:    "localhost",
		Port:    5432,
		User:    "dev",
		Options: map[string]string{"sslmode": "disable"},
	}

	assert.Same(t, base, MergeTargetConfig(base, nil))
	override := &TargetConfig{Host: "prod-db", Options: map[string]string{"sslmode": "require"}}
	assert.Same(t, override, MergeTargetConfig(nil, override))

	merged := MergeTargetConfig(base, override)
	assert.Equal(t, "postgres", merged.Type)
	assert.Equal(t, "prod-db", merged.Host)
	assert.Equal(t, 5432, merged.Port)
	assert.Equal(t, "dev", merged.User)
	assert.Equal(t, "require", merged.Options["sslmode"])
	assert.Equal(t, "disable", base.Options["sslmode"], "base is not modified")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RELPLAN_TEST_HOST", "db.internal")

	tests := []struct {
		in   string
		want string
	}{
		{"${RELPLAN_TEST_HOST}", "db.internal"},
		{"postgres://${RELPLAN_TEST_HOST}:5432", "postgres://db.internal:5432"},
		{"${RELPLAN_TEST_UNSET}", "${RELPLAN_TEST_UNSET}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.in))
		})
	}
}

func TestTargetConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		target    TargetConfig
		expectErr string
	}{
		{name: "empty type", target: TargetConfig{}, expectErr: "target type is required"},
		{name: "duckdb", target: TargetConfig{Type: "duckdb"}},
		{name: "uppercase", target: TargetConfig{Type: "DuckDB"}},
		{name: "postgres", target: TargetConfig{Type: "postgres"}},
		{name: "unknown", target: TargetConfig{Type: "mysql"}, expectErr: "relplan.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.expectErr != "" {
				assert.ErrorContains(t, err, tt.expectErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
