// Package materialization decides how a declared relation is brought into
// the warehouse. A Materialization compares the relation built from a node
// description with what already exists and produces a Plan of typed steps;
// it never runs SQL itself.
package materialization

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Type is the materialization kind declared on a node.
type Type string

// Materialization types.
const (
	TypeMaterializedView Type = "materialized_view"
	TypeView             Type = "view"
	TypeTable            Type = "table"
	TypeIncremental      Type = "incremental"
	TypeSnapshot         Type = "snapshot"
)

// ParseType normalizes a declared materialization name. Unknown names are
// returned as-is so the factory can report them as unmapped.
func ParseType(s string) Type {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	if norm == "materializedview" {
		norm = string(TypeMaterializedView)
	}
	return Type(norm)
}

// RelationType is the relation a materialization persists. Types without
// a relation, such as snapshots, report false.
func (t Type) RelationType() (relation.Type, bool) {
	switch t {
	case TypeMaterializedView:
		return relation.TypeMaterializedView, true
	case TypeView:
		return relation.TypeView, true
	case TypeTable, TypeIncremental:
		return relation.TypeTable, true
	}
	return "", false
}

// OnConfigurationChange says what to do when an existing relation's
// configuration differs from the declared one.
type OnConfigurationChange string

// Configuration change policies.
const (
	ConfigChangeApply    OnConfigurationChange = "apply"
	ConfigChangeContinue OnConfigurationChange = "continue"
	ConfigChangeFail     OnConfigurationChange = "fail"
)

// ParseOnConfigurationChange maps a node config value onto a policy. The
// empty string means apply.
func ParseOnConfigurationChange(s string) (OnConfigurationChange, error) {
	switch p := OnConfigurationChange(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ConfigChangeApply, nil
	case ConfigChangeApply, ConfigChangeContinue, ConfigChangeFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown on_configuration_change %q (expected apply, continue or fail)", s)
	}
}

// RuntimeConfig is everything a strategy needs to plan one node.
type RuntimeConfig struct {
	Node relation.NodeDescription
	// Introspection holds the catalog rows describing the existing relation.
	// Nil means the existing configuration is unknown.
	Introspection relation.IntrospectionResults
	// FullRefresh forces existing relations to be rebuilt.
	FullRefresh bool
	// Refresh requests a data refresh of an unchanged materialized view.
	Refresh               bool
	OnConfigurationChange OnConfigurationChange
}

// RuntimeConfigFor builds the runtime config for node, reading
// on_configuration_change from the node config.
func RuntimeConfigFor(node relation.NodeDescription, introspection relation.IntrospectionResults, fullRefresh bool) (RuntimeConfig, error) {
	policy, err := ParseOnConfigurationChange(node.ConfigString("on_configuration_change"))
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("node %s: %w", node.Key(), err)
	}
	return RuntimeConfig{
		Node:                  node,
		Introspection:         introspection,
		FullRefresh:           fullRefresh,
		Refresh:               node.ConfigBool("refresh"),
		OnConfigurationChange: policy,
	}, nil
}
