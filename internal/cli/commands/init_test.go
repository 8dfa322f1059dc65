package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/relplan/internal/cli/output"
	"github.com/leapstack-labs/relplan/internal/config"
	"github.com/leapstack-labs/relplan/internal/nodes"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string) // setup before running
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:    "init empty directory",
			args:    []string{},
			wantErr: false,
			wantFiles: []string{
				"relplan.yaml",
				".gitignore",
				"nodes",
				"nodes/staging/stg_orders.sql",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "relplan.yaml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name:    "init example project",
			args:    []string{"--example"},
			wantErr: false,
			wantFiles: []string{
				"relplan.yaml",
				"nodes/sources.yml",
				"nodes/staging/stg_orders.sql",
				"nodes/marts/customer_revenue.sql",
			},
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "relplan.yaml"), []byte("existing"), 0600)
			},
			args:    []string{"--force"},
			wantErr: false,
			wantFiles: []string{
				"relplan.yaml",
				"nodes",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			// Run setup if provided
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			// Check expected files exist
			for _, f := range tt.wantFiles {
				path := filepath.Join(tmpDir, f)
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "expected file/dir %q to exist", f)
			}
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}

func TestInitCreatesValidConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.NoError(t, err)

	// The generated config loads and the project parses.
	cfg, used, err := config.Load("", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(used, "relplan.yaml"))
	assert.Equal(t, "duckdb", cfg.Target.Type)

	project, err := loadProject(cfg)
	require.NoError(t, err)
	require.Len(t, project.Models, 1)
	assert.Equal(t, "staging.stg_orders", project.Models[0].Key())
	assert.Equal(t, "view", project.Models[0].Materialized)
}

func TestInitExampleProjectLoads(t *testing.T) {
	dir := t.TempDir()
	r := output.NewRendererWithTTY(new(bytes.Buffer), new(bytes.Buffer), false, output.ModeText)
	require.NoError(t, runInit(r, dir, "example", false))

	project, err := nodes.Load(filepath.Join(dir, "nodes"))
	require.NoError(t, err)
	require.NoError(t, project.Validate())

	var keys []string
	for _, m := range project.Models {
		keys = append(keys, m.Key())
	}
	assert.ElementsMatch(t, []string{"main.raw_orders", "staging.stg_orders", "marts.customer_revenue"}, keys)

	tables := project.SourceTables()
	require.Len(t, tables, 1)
	assert.True(t, tables[0].HasFreshness())
}
