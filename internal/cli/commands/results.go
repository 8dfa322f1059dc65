package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/relplan/internal/cli/output"
	"github.com/leapstack-labs/relplan/internal/engine"
	"github.com/leapstack-labs/relplan/internal/state"
)

func renderResult(r *output.Renderer, result *engine.Result, showSQL bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(resultOutput(result))
	}

	styles := r.Styles()
	rows := make([][]string, 0, len(result.Nodes))
	for _, nr := range result.Nodes {
		operation := "-"
		if nr.Plan != nil {
			operation = string(nr.Plan.Operation)
		}
		rows = append(rows, []string{
			nr.Node,
			nr.Materialization,
			operation,
			r.Status(string(nr.Status)),
			nr.Duration.Round(time.Millisecond).String(),
		})
	}
	r.Table([]string{"node", "materialization", "operation", "status", "duration"}, rows)

	for _, nr := range result.Nodes {
		if nr.Plan != nil {
			for _, w := range nr.Plan.Warnings {
				r.Warning(fmt.Sprintf("%s: %s", nr.Node, w))
			}
		}
		if nr.Err != nil && nr.Status == state.NodeStatusFailed {
			r.Printf("%s %s: %v\n", styles.Error.Render("error"), nr.Node, nr.Err)
		}
		if showSQL && len(nr.Statements) > 0 {
			r.Println("")
			r.Println(styles.Header2.Render("-- " + nr.Node))
			for _, stmt := range nr.Statements {
				r.Printf("%s;\n", stmt)
			}
		}
	}

	run := result.Run
	r.Println("")
	r.Println(styles.Muted.Render(fmt.Sprintf("Run %s (%s): %d succeeded, %d planned, %d failed, %d skipped",
		run.ID, run.Environment,
		result.Count(state.NodeStatusSuccess),
		result.Count(state.NodeStatusPlanned),
		result.Count(state.NodeStatusFailed),
		result.Count(state.NodeStatusSkipped))))
	r.Printf("Status: %s\n", r.Status(string(run.Status)))
	return nil
}

func resultOutput(result *engine.Result) output.RunOutput {
	out := output.RunOutput{
		RunID:       result.Run.ID,
		Environment: result.Run.Environment,
		Status:      string(result.Run.Status),
		FullRefresh: result.Run.FullRefresh,
		Error:       result.Run.Error,
		Nodes:       make([]output.NodeOutput, 0, len(result.Nodes)),
	}
	for _, nr := range result.Nodes {
		node := output.NodeOutput{
			Node:            nr.Node,
			Relation:        nr.Relation,
			Materialization: nr.Materialization,
			Status:          string(nr.Status),
			Statements:      nr.Statements,
			DurationMs:      nr.Duration.Milliseconds(),
		}
		if nr.Plan != nil {
			node.Operation = string(nr.Plan.Operation)
			node.State = string(nr.Plan.State)
			node.Warnings = nr.Plan.Warnings
			for _, step := range nr.Plan.Steps {
				node.Steps = append(node.Steps, step.Describe())
			}
		}
		if nr.Err != nil {
			node.Error = nr.Err.Error()
		}
		out.Nodes = append(out.Nodes, node)
	}
	return out
}
