package materialization

import (
	"fmt"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Suffixes of the relations created while swapping in a replacement.
const (
	IntermediateSuffix = "__relplan_tmp"
	BackupSuffix       = "__relplan_backup"
)

// Materialization plans one node. Instances are built per node attempt by
// the Factory and are not reused.
type Materialization interface {
	Type() Type
	// Target is the declared relation.
	Target() relation.Relation
	// Existing is the stub of the relation found in the warehouse, or nil.
	Existing() *relation.RelationStub
	Plan() (*Plan, error)
}

// Constructor builds a strategy. existing may be nil, meaning the relation
// does not exist or its existence is unknown.
type Constructor func(cfg RuntimeConfig, relations *relation.Factory, existing *relation.RelationStub) (Materialization, error)

type base struct {
	typ      Type
	cfg      RuntimeConfig
	caps     relation.Capabilities
	target   relation.Relation
	existing *relation.RelationStub
	current  relation.Relation
}

func newBase(typ Type, relType relation.Type, cfg RuntimeConfig, relations *relation.Factory, existing *relation.RelationStub) (base, error) {
	if cfg.OnConfigurationChange == "" {
		cfg.OnConfigurationChange = ConfigChangeApply
	}
	if _, err := ParseOnConfigurationChange(string(cfg.OnConfigurationChange)); err != nil {
		return base{}, err
	}

	node := cfg.Node
	node.Materialized = string(relType)
	target, err := relations.MakeFromNode(node)
	if err != nil {
		return base{}, err
	}
	current, err := relations.MakeFromIntrospection(cfg.Introspection)
	if err != nil {
		return base{}, fmt.Errorf("failed to parse introspection of %s: %w", target.FullyQualifiedPath(), err)
	}
	return base{
		typ:      typ,
		cfg:      cfg,
		caps:     relations.Capabilities(),
		target:   target,
		existing: existing,
		current:  current,
	}, nil
}

func (b *base) Type() Type                       { return b.typ }
func (b *base) Target() relation.Relation        { return b.target }
func (b *base) Existing() *relation.RelationStub { return b.existing }

// state classifies the existing relation. Without introspected metadata of
// the same type the configuration cannot be compared, and the state stays
// exists_same_type.
func (b *base) state() (State, []relation.Change) {
	switch {
	case b.existing == nil:
		return StateDoesNotExist, nil
	case b.existing.Type() != b.target.Type():
		return StateExistsDifferentType, nil
	case b.current == nil || b.current.Type() != b.target.Type():
		return StateExistsSameType, nil
	}
	changes := b.target.Diff(b.current)
	if len(changes) == 0 {
		return StateExistsIdenticalConfig, nil
	}
	return StateExistsConfigChanged, changes
}

func (b *base) newPlan() *Plan {
	state, changes := b.state()
	return &Plan{
		Materialization: b.typ,
		State:           state,
		Target:          b.target,
		Existing:        b.existing,
		Changes:         changes,
	}
}

func (b *base) create(p *Plan) (*Plan, error) {
	p.Operation = OperationCreate
	p.Steps = []Step{CreateStep{Relation: b.target}}
	return p, nil
}

func (b *base) noop(p *Plan) (*Plan, error) {
	p.Operation = OperationNoop
	p.Steps = nil
	return p, nil
}

// replace swaps a freshly built intermediate in for the existing relation:
// the existing relation is renamed to a backup before the intermediate takes
// its name, and the backup is dropped last.
func (b *base) replace(p *Plan) (*Plan, error) {
	if !b.existing.CanBeRenamed() {
		return nil, &RelationCannotBeRenamedError{Relation: b.existing.FullyQualifiedPath(), Type: b.existing.Type()}
	}
	name := b.target.Name()
	intermediate := b.target.WithIdentifier(name + IntermediateSuffix)
	backup := b.existing.WithIdentifier(name + BackupSuffix)

	p.Operation = OperationReplace
	p.Steps = []Step{
		DropStep{Ref: relation.StubOf(intermediate, true), IfExists: true},
		DropStep{Ref: backup, IfExists: true},
		CreateStep{Relation: intermediate},
		RenameStep{Ref: b.existing, NewName: backup.Name()},
		RenameStep{Ref: relation.StubOf(intermediate, true), NewName: name},
		DropStep{Ref: backup},
	}
	return p, nil
}

// applyChanges handles exists_config_changed according to the node's
// on_configuration_change policy.
func (b *base) applyChanges(p *Plan) (*Plan, error) {
	switch b.cfg.OnConfigurationChange {
	case ConfigChangeContinue:
		p.Warnings = append(p.Warnings, fmt.Sprintf(
			"configuration of %s changed but on_configuration_change is continue; leaving it as is",
			b.target.FullyQualifiedPath()))
		return b.noop(p)
	case ConfigChangeFail:
		return nil, &ConfigurationChangeError{Relation: b.target.FullyQualifiedPath(), Changes: p.Changes}
	}
	if b.caps.AllAlterable(b.target.Type(), p.Changes) {
		p.Operation = OperationAlter
		p.Steps = []Step{AlterStep{Relation: b.target, Changes: p.Changes}}
		return p, nil
	}
	return b.replace(p)
}
