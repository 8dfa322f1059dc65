package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/cli/output"
	"github.com/leapstack-labs/relplan/internal/engine"
	"github.com/leapstack-labs/relplan/pkg/source"
)

// NewSourcesCommand creates the sources command group.
func NewSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect declared sources",
		Long:  `Commands for the source tables declared in the nodes directory.`,
	}
	cmd.AddCommand(newFreshnessCommand())
	return cmd
}

func newFreshnessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "freshness",
		Short: "Check how recently sources were loaded",
		Long: `Query the newest loaded_at value of every source table with a
freshness threshold and compare its age with warn_after and error_after.

The command fails when any table is past error_after or cannot be checked.`,
		Example: `  relplan sources freshness
  relplan sources freshness -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFreshness(cmd)
		},
	}
}

func runFreshness(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	project, err := loadProject(cmdCtx.Cfg)
	if err != nil {
		return err
	}
	results, err := cmdCtx.Engine.Freshness(cmd.Context(), project.SourceTables())
	if err != nil {
		return err
	}

	if err := renderFreshness(cmdCtx.Renderer, results); err != nil {
		return err
	}
	failed := 0
	for _, res := range results {
		if res.Status == source.FreshnessError {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d source table(s) failed freshness checks", failed)
	}
	return nil
}

func renderFreshness(r *output.Renderer, results []engine.FreshnessResult) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]output.FreshnessOutput, 0, len(results))
		for _, res := range results {
			fo := output.FreshnessOutput{
				Source:     res.Source,
				Relation:   res.Relation,
				Status:     string(res.Status),
				AgeSeconds: res.Age.Seconds(),
			}
			if !res.MaxLoadedAt.IsZero() {
				loadedAt := res.MaxLoadedAt
				fo.MaxLoadedAt = &loadedAt
			}
			if res.Err != nil {
				fo.Error = res.Err.Error()
			}
			out = append(out, fo)
		}
		return r.JSON(out)
	}

	if len(results) == 0 {
		r.Println(r.Styles().Muted.Render("No source tables with a freshness threshold"))
		return nil
	}
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		loadedAt, age := "-", "-"
		if !res.MaxLoadedAt.IsZero() {
			loadedAt = res.MaxLoadedAt.Format(time.RFC3339)
			age = res.Age.Round(time.Second).String()
		}
		rows = append(rows, []string{res.Source, loadedAt, age, r.Status(string(res.Status))})
	}
	r.Table([]string{"source", "max loaded at", "age", "status"}, rows)
	for _, res := range results {
		if res.Err != nil {
			r.Printf("%s %s: %v\n", r.Styles().Error.Render("error"), res.Source, res.Err)
		}
	}
	return nil
}
