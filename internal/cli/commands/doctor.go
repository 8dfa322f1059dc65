package commands

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/relplan/internal/cli/output"
	"github.com/leapstack-labs/relplan/internal/nodes"
	"github.com/leapstack-labs/relplan/pkg/materialization"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project and warehouse connection",
		Long: `Check that the project loads, that its dependency graph has no
cycles, that every node uses a supported materialization and that the
warehouse accepts connections.

Output adapts to environment:
  - Terminal: Styled output with colors
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  relplan doctor

  # Output as JSON
  relplan doctor -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Target       string        `json:"target"`
	Environment  string        `json:"environment"`
	Models       int           `json:"models"`
	Sources      int           `json:"sources"`
	HealthChecks []HealthCheck `json:"health_checks"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Status  string   `json:"status"` // "pass", "warn", "error"
	Details []string `json:"details,omitempty"`
}

func (o *DoctorOutput) failed() bool {
	return slices.ContainsFunc(o.HealthChecks, func(c HealthCheck) bool { return c.Status == "error" })
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	out := &DoctorOutput{Target: cfg.Target.Type, Environment: cfg.Environment}
	add := func(group, name, status string, details ...string) {
		out.HealthChecks = append(out.HealthChecks, HealthCheck{Name: name, Group: group, Status: status, Details: details})
	}

	project, err := loadProject(cfg)
	if err != nil {
		add("project", "nodes load", "error", err.Error())
	} else {
		out.Models = len(project.Models)
		out.Sources = len(project.SourceTables())
		add("project", "nodes load", "pass", fmt.Sprintf("%d models, %d source tables in %s", out.Models, out.Sources, cfg.NodesDir))
		checkMaterializations(project, add)
	}

	eng, err := createEngine(cmd, cfg, cmdCtx.Logger)
	if err != nil {
		add("warehouse", "connection", "error", err.Error())
	} else {
		defer func() { _ = eng.Close() }()
		add("warehouse", "connection", "pass", fmt.Sprintf("%s target, state at %s", cfg.Target.Type, cfg.StatePath))
		if project != nil {
			if levels, err := eng.Levels(project); err != nil {
				add("project", "dependency graph", "error", err.Error())
			} else {
				add("project", "dependency graph", "pass", fmt.Sprintf("%d levels", len(levels)))
			}
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(out); err != nil {
			return err
		}
	} else {
		renderDoctorText(r, out)
	}
	if out.failed() {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func checkMaterializations(project *nodes.Project, add func(group, name, status string, details ...string)) {
	supported := materialization.AllMaterializations()
	var unsupported []string
	for _, m := range project.Models {
		if _, ok := supported[materialization.ParseType(m.Materialized)]; !ok {
			unsupported = append(unsupported, fmt.Sprintf("%s uses %q", m.Key(), m.Materialized))
		}
	}
	if len(unsupported) > 0 {
		add("nodes", "materializations", "error", unsupported...)
		return
	}
	add("nodes", "materializations", "pass")
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println(styles.Header.Render("relplan Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Printf("   Target: %s | Environment: %s | Models: %d | Sources: %d\n", out.Target, out.Environment, out.Models, out.Sources)
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.Error.Render("✗")
		}
		r.Printf("   %s %s\n", icon, check.Name)

		// Show first 3 details
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")
}
