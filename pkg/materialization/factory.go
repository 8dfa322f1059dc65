package materialization

import (
	"sort"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// Registry maps materialization types to their constructors.
type Registry map[Type]Constructor

// DefaultMaterializations is the registry a Factory uses unless told
// otherwise: materialized views only.
func DefaultMaterializations() Registry {
	return Registry{
		TypeMaterializedView: NewMaterializedView,
	}
}

// AllMaterializations registers every strategy in this package.
func AllMaterializations() Registry {
	return Registry{
		TypeMaterializedView: NewMaterializedView,
		TypeView:             NewView,
		TypeTable:            NewTable,
		TypeIncremental:      NewIncremental,
	}
}

// Factory selects the strategy for a materialization type.
type Factory struct {
	relations *relation.Factory
	registry  Registry
}

// Option configures a Factory.
type Option func(*Factory)

// WithMaterializations replaces the registry.
func WithMaterializations(r Registry) Option {
	return func(f *Factory) { f.registry = r }
}

// NewFactory returns a factory building relations with relations.
func NewFactory(relations *relation.Factory, opts ...Option) *Factory {
	f := &Factory{relations: relations, registry: DefaultMaterializations()}
	for _, opt := range opts {
		opt(f)
	}
	registry := make(Registry, len(f.registry))
	for t, c := range f.registry {
		registry[t] = c
	}
	f.registry = registry
	return f
}

// Relations returns the relation factory handed to every strategy.
func (f *Factory) Relations() *relation.Factory { return f.relations }

// Supports reports whether typ has a registered strategy and, for types
// that build a relation, whether the relation factory has a parser for it.
func (f *Factory) Supports(typ Type) bool {
	if _, ok := f.registry[typ]; !ok {
		return false
	}
	if relType, ok := typ.RelationType(); ok && f.relations != nil {
		return f.relations.Supports(relType)
	}
	return true
}

// Types lists the registered materialization types in a stable order.
func (f *Factory) Types() []Type {
	types := make([]Type, 0, len(f.registry))
	for t := range f.registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// MakeFromRuntimeConfig builds the strategy for typ. When typ has no
// registered strategy it returns nil and no error; callers decide how to
// handle unmapped types.
func (f *Factory) MakeFromRuntimeConfig(cfg RuntimeConfig, typ Type, existing *relation.RelationStub) (Materialization, error) {
	construct, ok := f.registry[typ]
	if !ok {
		return nil, nil
	}
	return construct(cfg, f.relations, existing)
}
