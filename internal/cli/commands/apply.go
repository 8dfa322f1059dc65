package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/engine"
)

// RunOptions holds options for the plan and apply commands.
type RunOptions struct {
	Select     []string
	Downstream bool
	ShowSQL    bool
}

func (o *RunOptions) engineOptions() engine.Options {
	return engine.Options{Select: splitSelect(o.Select), Downstream: o.Downstream}
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().StringSliceVarP(&opts.Select, "select", "s", nil, "Nodes to include, as schema.name (comma-separated or repeated)")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --select")
	cmd.Flags().BoolVar(&opts.ShowSQL, "sql", false, "Print the statements of every node")
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change",
		Long: `Compare every node with the relation at its path and print the
operation apply would run: create, replace, alter, refresh, merge, append or
nothing. The warehouse is not changed; the plan is recorded in the state
database.`,
		Example: `  # Plan every node
  relplan plan

  # Plan one node and everything built on it, with SQL
  relplan plan --select marts.revenue --downstream --sql

  # Plan as JSON
  relplan plan -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNodes(cmd, opts, false)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

// NewApplyCommand creates the apply command.
func NewApplyCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Build or update every node's relation",
		Long: `Plan every node and execute the plans in dependency order.

Nodes in the same level run concurrently, up to --threads at once. A failing
node does not stop the run; nodes depending on it are skipped.`,
		Example: `  # Apply every node
  relplan apply

  # Rebuild everything from scratch
  relplan apply --full-refresh

  # Apply a node and its dependents
  relplan apply --select staging.orders --downstream`,
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNodes(cmd, opts, true)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func runNodes(cmd *cobra.Command, opts *RunOptions, apply bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	project, err := loadProject(cmdCtx.Cfg)
	if err != nil {
		return err
	}

	run := cmdCtx.Engine.Plan
	if apply {
		run = cmdCtx.Engine.Apply
	}
	result, runErr := run(cmd.Context(), project, opts.engineOptions())
	if result == nil {
		return runErr
	}

	if err := renderResult(cmdCtx.Renderer, result, opts.ShowSQL); err != nil {
		return err
	}
	return runErr
}
