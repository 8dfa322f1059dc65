package materialization

import "github.com/leapstack-labs/relplan/pkg/relation"

// MaterializedView plans materialized views. Unchanged views are left alone
// or refreshed on request; changed ones are altered when the warehouse can
// change every differing attribute in place, and replaced otherwise.
type MaterializedView struct{ base }

// NewMaterializedView is the Constructor for TypeMaterializedView.
func NewMaterializedView(cfg RuntimeConfig, relations *relation.Factory, existing *relation.RelationStub) (Materialization, error) {
	b, err := newBase(TypeMaterializedView, relation.TypeMaterializedView, cfg, relations, existing)
	if err != nil {
		return nil, err
	}
	return &MaterializedView{b}, nil
}

// Plan implements Materialization.
func (m *MaterializedView) Plan() (*Plan, error) {
	p := m.newPlan()
	switch {
	case p.State == StateDoesNotExist:
		return m.create(p)
	case m.cfg.FullRefresh, p.State == StateExistsDifferentType, p.State == StateExistsSameType:
		return m.replace(p)
	case p.State == StateExistsIdenticalConfig:
		if m.cfg.Refresh {
			p.Operation = OperationRefresh
			p.Steps = []Step{RefreshStep{Relation: m.target}}
			return p, nil
		}
		return m.noop(p)
	default:
		return m.applyChanges(p)
	}
}

// View plans plain views.
type View struct{ base }

// NewView is the Constructor for TypeView.
func NewView(cfg RuntimeConfig, relations *relation.Factory, existing *relation.RelationStub) (Materialization, error) {
	b, err := newBase(TypeView, relation.TypeView, cfg, relations, existing)
	if err != nil {
		return nil, err
	}
	return &View{b}, nil
}

// Plan implements Materialization.
func (v *View) Plan() (*Plan, error) {
	p := v.newPlan()
	switch {
	case p.State == StateDoesNotExist:
		return v.create(p)
	case v.cfg.FullRefresh, p.State == StateExistsDifferentType, p.State == StateExistsSameType:
		return v.replace(p)
	case p.State == StateExistsIdenticalConfig:
		return v.noop(p)
	default:
		return v.applyChanges(p)
	}
}

// Table plans tables. A table's contents depend on its upstream data, so an
// existing table is rebuilt on every run.
type Table struct{ base }

// NewTable is the Constructor for TypeTable.
func NewTable(cfg RuntimeConfig, relations *relation.Factory, existing *relation.RelationStub) (Materialization, error) {
	b, err := newBase(TypeTable, relation.TypeTable, cfg, relations, existing)
	if err != nil {
		return nil, err
	}
	return &Table{b}, nil
}

// Plan implements Materialization.
func (t *Table) Plan() (*Plan, error) {
	p := t.newPlan()
	if p.State == StateDoesNotExist {
		return t.create(p)
	}
	return t.replace(p)
}

// Incremental plans tables that are loaded incrementally. Existing tables
// of the right type receive new rows; with a unique_key, rows sharing a key
// with incoming rows are replaced.
type Incremental struct{ base }

// NewIncremental is the Constructor for TypeIncremental.
func NewIncremental(cfg RuntimeConfig, relations *relation.Factory, existing *relation.RelationStub) (Materialization, error) {
	b, err := newBase(TypeIncremental, relation.TypeTable, cfg, relations, existing)
	if err != nil {
		return nil, err
	}
	return &Incremental{b}, nil
}

// Plan implements Materialization.
func (i *Incremental) Plan() (*Plan, error) {
	p := i.newPlan()
	switch {
	case p.State == StateDoesNotExist:
		return i.create(p)
	case i.cfg.FullRefresh, p.State == StateExistsDifferentType:
		return i.replace(p)
	}

	var key string
	if t, ok := i.target.(*relation.TableRelation); ok {
		key = t.UniqueKey()
	}
	p.Operation = OperationAppend
	if key != "" {
		p.Operation = OperationMerge
	}
	p.Steps = []Step{InsertStep{Relation: i.target, UniqueKey: key}}
	return p, nil
}
