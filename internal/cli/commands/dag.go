package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/cli/output"
)

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dag",
		Short: "Show the dependency graph",
		Long: `Display the nodes of the project grouped by execution level.

Nodes in the same level do not depend on each other and are planned and
applied concurrently.`,
		Example: `  # Show the DAG
  relplan dag

  # Output as JSON
  relplan dag --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDAG(cmd)
		},
	}

	return cmd
}

func runDAG(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	project, err := loadProject(cmdCtx.Cfg)
	if err != nil {
		return err
	}
	levels, err := cmdCtx.Engine.Levels(project)
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	r := cmdCtx.Renderer
	total := 0
	for _, level := range levels {
		total += len(level)
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := output.DAGOutput{Levels: make([]output.DAGLevel, 0, len(levels)), TotalNodes: total}
		for i, level := range levels {
			out.Levels = append(out.Levels, output.DAGLevel{Level: i, Nodes: level})
		}
		return r.JSON(out)
	}

	styles := r.Styles()
	r.Header(1, "Dependency Graph")
	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, node := range level {
			r.Printf("  %s\n", styles.Node.Render(node))
		}
		r.Println("")
	}
	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d nodes in %d levels", total, len(levels))))
	return nil
}
