// Package commands implements the relplan subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/cli/output"
	"github.com/leapstack-labs/relplan/internal/config"
	"github.com/leapstack-labs/relplan/internal/engine"
	"github.com/leapstack-labs/relplan/internal/nodes"
)

// CommandContext holds the shared dependencies of a command.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a connected engine.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cmd, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cc.Logger.Warn("failed to close engine", slog.String("error", err.Error()))
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need a warehouse connection.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}, nil
}

func createEngine(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	if err := ensureStateDir(cfg.StatePath); err != nil {
		return nil, err
	}
	render, err := cfg.RenderPolicy()
	if err != nil {
		return nil, err
	}
	return engine.Open(cmd.Context(), engine.Config{
		Adapter:     cfg.AdapterConfig(),
		StatePath:   cfg.StatePath,
		Environment: cfg.Environment,
		Threads:     cfg.Threads,
		FullRefresh: cfg.FullRefresh,
		Render:      render,
		Logger:      logger,
	})
}

func ensureStateDir(statePath string) error {
	if statePath == ":memory:" {
		return nil
	}
	stateDir := filepath.Dir(statePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return nil
}

// loadProject reads and validates the project under the nodes directory.
func loadProject(cfg *config.Config) (*nodes.Project, error) {
	project, err := nodes.Load(cfg.NodesDir)
	if err != nil {
		return nil, err
	}
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	return project, nil
}

// splitSelect splits comma-separated selections and drops empty entries.
func splitSelect(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
