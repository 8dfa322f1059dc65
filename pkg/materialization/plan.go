package materialization

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// State is how the existing relation relates to the declared one.
type State string

// States, computed once per plan.
const (
	StateDoesNotExist          State = "does_not_exist"
	StateExistsSameType        State = "exists_same_type"
	StateExistsDifferentType   State = "exists_different_type"
	StateExistsIdenticalConfig State = "exists_identical_config"
	StateExistsConfigChanged   State = "exists_config_changed"
)

// Operation is the plan chosen for a node.
type Operation string

// Operations.
const (
	OperationCreate  Operation = "create"
	OperationReplace Operation = "replace"
	OperationAlter   Operation = "alter"
	OperationRefresh Operation = "refresh"
	OperationNoop    Operation = "noop"
	OperationMerge   Operation = "merge"
	OperationAppend  Operation = "append"
)

// Step is one warehouse operation. The set of steps is closed; executors
// switch on the concrete type.
type Step interface {
	Describe() string
	step()
}

// CreateStep creates a relation from its full definition.
type CreateStep struct {
	Relation relation.Relation
}

// DropStep drops a relation. Only identity is needed.
type DropStep struct {
	Ref      relation.Ref
	IfExists bool
}

// RenameStep renames a relation within its schema.
type RenameStep struct {
	Ref     relation.Ref
	NewName string
}

// AlterStep applies in-place changes.
type AlterStep struct {
	Relation relation.Relation
	Changes  []relation.Change
}

// RefreshStep refreshes a materialized view's data.
type RefreshStep struct {
	Relation relation.Relation
}

// InsertStep loads new rows into an existing table. With a unique key,
// rows matching incoming keys are deleted first.
type InsertStep struct {
	Relation  relation.Relation
	UniqueKey string
}

func (CreateStep) step()  {}
func (DropStep) step()    {}
func (RenameStep) step()  {}
func (AlterStep) step()   {}
func (RefreshStep) step() {}
func (InsertStep) step()  {}

func (s CreateStep) Describe() string {
	return fmt.Sprintf("create %s %s", s.Relation.Type(), s.Relation.FullyQualifiedPath())
}

func (s DropStep) Describe() string {
	if s.IfExists {
		return fmt.Sprintf("drop %s if exists %s", s.Ref.Type(), s.Ref.FullyQualifiedPath())
	}
	return fmt.Sprintf("drop %s %s", s.Ref.Type(), s.Ref.FullyQualifiedPath())
}

func (s RenameStep) Describe() string {
	return fmt.Sprintf("rename %s %s to %s", s.Ref.Type(), s.Ref.FullyQualifiedPath(), s.NewName)
}

func (s AlterStep) Describe() string {
	descs := make([]string, len(s.Changes))
	for i, c := range s.Changes {
		descs[i] = c.String()
	}
	return fmt.Sprintf("alter %s %s: %s", s.Relation.Type(), s.Relation.FullyQualifiedPath(), strings.Join(descs, ", "))
}

func (s RefreshStep) Describe() string {
	return fmt.Sprintf("refresh %s %s", s.Relation.Type(), s.Relation.FullyQualifiedPath())
}

func (s InsertStep) Describe() string {
	if s.UniqueKey != "" {
		return fmt.Sprintf("merge into %s on %s", s.Relation.FullyQualifiedPath(), s.UniqueKey)
	}
	return fmt.Sprintf("append into %s", s.Relation.FullyQualifiedPath())
}

// Plan is the outcome of planning one node.
type Plan struct {
	Materialization Type
	Operation       Operation
	State           State
	Target          relation.Relation
	// Existing is nil when the relation does not exist.
	Existing *relation.RelationStub
	Changes  []relation.Change
	Steps    []Step
	Warnings []string
}

// IsNoop reports whether applying the plan changes nothing.
func (p *Plan) IsNoop() bool {
	return len(p.Steps) == 0
}
