package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new relplan project",
		Long: `Initialize a new relplan project with a nodes directory and a
relplan.yaml configuration targeting a local DuckDB file.

Use --example to create a small project with a source, a table, an
incremental model and a view.`,
		Example: `  # Initialize in current directory
  relplan init

  # Initialize a new directory with the example project
  relplan init my-project --example

  # Force overwrite existing files
  relplan init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeText)
			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Create the example project")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "relplan.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("relplan.yaml already exists. Use --force to overwrite")
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles(template)
	if err != nil {
		return err
	}
	styles := r.Styles()
	groups := groupTemplateFiles(files)
	for _, group := range []string{"config", "nodes"} {
		for _, f := range groups[group] {
			r.Printf("  %s %s\n", styles.Success.Render("created"), f)
		}
	}

	r.Println("")
	r.Println(styles.Bold.Render("relplan project initialized"))
	r.Println("")
	r.Println("Next steps:")
	r.Println("  relplan plan     Show what apply would change")
	r.Println("  relplan apply    Build every node in dependency order")
	r.Println("  relplan dag      Show the dependency graph")
	return nil
}
