package relation

import (
	"fmt"
	"sort"
)

// Factory builds relations from node descriptions and introspection
// results. It never talks to the warehouse.
//
// A Factory is built once per run context and is read-only afterwards, so
// concurrently planned nodes can share it.
type Factory struct {
	render          *RenderPolicy
	parsers         map[Type]Parser
	caps            Capabilities
	defaultDatabase string
	defaultSchema   string
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithRenderPolicy sets the policy applied to every relation built.
func WithRenderPolicy(p *RenderPolicy) FactoryOption {
	return func(f *Factory) {
		if p != nil {
			f.render = p
		}
	}
}

// WithParsers replaces the parser set. The last parser registered for a
// type wins.
func WithParsers(parsers ...Parser) FactoryOption {
	return func(f *Factory) {
		f.parsers = make(map[Type]Parser, len(parsers))
		for _, p := range parsers {
			f.parsers[p.Type()] = p
		}
	}
}

// WithCapabilities records what the target warehouse can alter in place.
func WithCapabilities(c Capabilities) FactoryOption {
	return func(f *Factory) { f.caps = c }
}

// WithDefaults sets the database and schema used when a node omits them.
func WithDefaults(database, schema string) FactoryOption {
	return func(f *Factory) {
		f.defaultDatabase = database
		f.defaultSchema = schema
	}
}

// DefaultParsers returns a parser for every buildable relation type, all
// sharing the default schema and database parsers.
func DefaultParsers() []Parser {
	schema := SchemaParser{Database: DefaultDatabaseParser{}}
	return []Parser{
		TableParser{Schema: schema},
		ViewParser{Schema: schema},
		MaterializedViewParser{Schema: schema},
		ExternalParser{Schema: schema},
	}
}

// NewFactory returns a factory using DefaultParsers and a policy that
// quotes and includes every component unless overridden.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{render: NewRenderPolicy()}
	WithParsers(DefaultParsers()...)(f)
	for _, opt := range opts {
		opt(f)
	}
	parsers := make(map[Type]Parser, len(f.parsers))
	for t, p := range f.parsers {
		parsers[t] = p
	}
	f.parsers = parsers
	f.caps = f.caps.clone()
	return f
}

// RenderPolicy returns the shared render policy.
func (f *Factory) RenderPolicy() *RenderPolicy { return f.render }

// Capabilities returns a copy of the warehouse capabilities.
func (f *Factory) Capabilities() Capabilities { return f.caps.clone() }

// Supports reports whether the factory can build relations of type t.
func (f *Factory) Supports(t Type) bool {
	_, ok := f.parsers[t]
	return ok
}

// SupportedTypes lists the buildable types in a stable order.
func (f *Factory) SupportedTypes() []Type {
	types := make([]Type, 0, len(f.parsers))
	for t := range f.parsers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (f *Factory) parser(raw string) (Parser, error) {
	t, err := ParseType(raw)
	if err != nil {
		return nil, &UnsupportedRelationTypeError{Type: raw, Supported: f.SupportedTypes()}
	}
	p, ok := f.parsers[t]
	if !ok {
		return nil, &UnsupportedRelationTypeError{Type: raw, Supported: f.SupportedTypes()}
	}
	return p, nil
}

// MakeFromNode builds the declared relation for node.
func (f *Factory) MakeFromNode(node NodeDescription) (Relation, error) {
	p, err := f.parser(node.Materialized)
	if err != nil {
		return nil, err
	}
	if node.Database == "" {
		node.Database = f.defaultDatabase
	}
	if node.Schema == "" {
		node.Schema = f.defaultSchema
	}

	dict, err := p.ParseNode(node)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.Key(), err)
	}

	render := f.render
	if node.Quoting != nil {
		render = render.WithQuotePolicy(node.Quoting.Apply(render.Quote()))
	}
	return p.FromDict(withRender(dict, render))
}

// MakeFromIntrospection builds the relation described by catalog rows.
// It returns nil and no error when the relation does not exist.
func (f *Factory) MakeFromIntrospection(results IntrospectionResults) (Relation, error) {
	if results.Empty() {
		return nil, nil
	}
	row, _ := results.First(ResultSetRelation)
	raw := row.String(typeColumns...)
	if raw == "" {
		return nil, missingKey("introspection results", "relation_type")
	}
	p, err := f.parser(raw)
	if err != nil {
		return nil, err
	}

	dict, err := p.ParseIntrospection(results)
	if err != nil {
		return nil, err
	}
	if schema, ok := dict["schema"].(map[string]any); ok {
		if db, ok := schema["database"].(map[string]any); ok && db["name"] == "" {
			db["name"] = f.defaultDatabase
		}
	}
	return p.FromDict(withRender(dict, f.render))
}

// MakeStub builds a stub from a stub construction mapping, using the
// factory's render policy where the mapping carries none.
func (f *Factory) MakeStub(dict map[string]any) (*RelationStub, error) {
	if _, ok := dict["render"]; !ok {
		dict = withRender(dict, f.render)
	}
	return RelationStubFromDict(dict)
}
