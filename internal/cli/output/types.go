package output

import "time"

// RunOutput is the JSON form of a plan or apply run.
type RunOutput struct {
	RunID       string       `json:"run_id"`
	Environment string       `json:"environment"`
	Status      string       `json:"status"`
	FullRefresh bool         `json:"full_refresh"`
	Error       string       `json:"error,omitempty"`
	Nodes       []NodeOutput `json:"nodes"`
}

// NodeOutput is the JSON form of one node in a run.
type NodeOutput struct {
	Node            string   `json:"node"`
	Relation        string   `json:"relation,omitempty"`
	Materialization string   `json:"materialization"`
	Status          string   `json:"status"`
	Operation       string   `json:"operation,omitempty"`
	State           string   `json:"state,omitempty"`
	Steps           []string `json:"steps,omitempty"`
	Statements      []string `json:"statements,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Error           string   `json:"error,omitempty"`
	DurationMs      int64    `json:"duration_ms"`
}

// FreshnessOutput is the JSON form of one source freshness check.
type FreshnessOutput struct {
	Source      string     `json:"source"`
	Relation    string     `json:"relation,omitempty"`
	Status      string     `json:"status"`
	MaxLoadedAt *time.Time `json:"max_loaded_at,omitempty"`
	AgeSeconds  float64    `json:"age_seconds"`
	Error       string     `json:"error,omitempty"`
}

// DAGOutput is the JSON form of the dependency graph.
type DAGOutput struct {
	Levels     []DAGLevel `json:"levels"`
	TotalNodes int        `json:"total_nodes"`
}

// DAGLevel is one execution level.
type DAGLevel struct {
	Level int      `json:"level"`
	Nodes []string `json:"nodes"`
}

// RunSummary is the JSON form of a recorded run.
type RunSummary struct {
	ID          string     `json:"id"`
	Environment string     `json:"environment"`
	Status      string     `json:"status"`
	FullRefresh bool       `json:"full_refresh"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}
