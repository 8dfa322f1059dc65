package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/cli/output"
	"github.com/leapstack-labs/relplan/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recorded plan and apply runs",
		Long: `List recent runs from the state database, newest first. Given a run
ID, show the plan recorded for every node of that run.`,
		Example: `  relplan runs
  relplan runs --limit 5
  relplan runs 0f8c2d1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}
			store := state.NewSQLiteStore(cmdCtx.Logger)
			if err := store.Open(cmdCtx.Cfg.StatePath); err != nil {
				return fmt.Errorf("failed to open state database: %w", err)
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return showRun(cmd, cmdCtx.Renderer, store, args[0])
			}
			return listRuns(cmd, cmdCtx.Renderer, store, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func listRuns(cmd *cobra.Command, r *output.Renderer, store *state.SQLiteStore, limit int) error {
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := make([]output.RunSummary, 0, len(runs))
		for _, run := range runs {
			out = append(out, runSummary(run))
		}
		return r.JSON(out)
	}

	if len(runs) == 0 {
		r.Println(r.Styles().Muted.Render("No runs recorded"))
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			run.ID, run.Environment, r.Status(string(run.Status)),
			run.StartedAt.Local().Format(time.DateTime), duration,
		})
	}
	r.Table([]string{"id", "environment", "status", "started", "duration"}, rows)
	return nil
}

func showRun(cmd *cobra.Command, r *output.Renderer, store *state.SQLiteStore, id string) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	plans, err := store.ListNodePlans(cmd.Context(), id)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := output.RunOutput{
			RunID:       run.ID,
			Environment: run.Environment,
			Status:      string(run.Status),
			FullRefresh: run.FullRefresh,
			Error:       run.Error,
			Nodes:       make([]output.NodeOutput, 0, len(plans)),
		}
		for _, p := range plans {
			out.Nodes = append(out.Nodes, output.NodeOutput{
				Node:            p.Node,
				Relation:        p.Relation,
				Materialization: p.Materialization,
				Status:          string(p.Status),
				Operation:       p.Operation,
				State:           p.State,
				Steps:           p.Steps,
				Warnings:        p.Warnings,
				Error:           p.Error,
				DurationMs:      p.Duration.Milliseconds(),
			})
		}
		return r.JSON(out)
	}

	styles := r.Styles()
	r.Header(1, fmt.Sprintf("Run %s", run.ID))
	r.Printf("%s %s\n", styles.Muted.Render("environment:"), run.Environment)
	r.Printf("%s %s\n", styles.Muted.Render("status:"), r.Status(string(run.Status)))
	if run.Error != "" {
		r.Printf("%s %s\n", styles.Muted.Render("error:"), run.Error)
	}
	r.Println("")
	for _, p := range plans {
		r.Printf("%s %s %s\n", styles.Node.Render(p.Node), styles.Muted.Render(p.Operation), r.Status(string(p.Status)))
		for _, step := range p.Steps {
			r.Printf("    %s\n", step)
		}
		for _, w := range p.Warnings {
			r.Printf("    %s %s\n", styles.Warning.Render("warning:"), w)
		}
		if p.Error != "" {
			r.Printf("    %s %s\n", styles.Error.Render("error:"), strings.TrimSpace(p.Error))
		}
	}
	return nil
}

func runSummary(run *state.Run) output.RunSummary {
	return output.RunSummary{
		ID:          run.ID,
		Environment: run.Environment,
		Status:      string(run.Status),
		FullRefresh: run.FullRefresh,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}
