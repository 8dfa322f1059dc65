// Package relation models warehouse objects as immutable database, schema
// and relation values, and builds them from declarative node descriptions
// or from catalog introspection.
//
// Two families of values share the Ref interface: full relations, which
// carry the type-specific metadata needed to create or alter an object, and
// stubs, which carry only identity. Operations that only need identity
// (drop, rename, path rendering) accept a Ref; operations that need the
// definition (create, alter) require a Relation, which stubs do not
// implement.
package relation

import (
	"strings"
	"unicode"
)

// Ref is the identity shared by full relations and stubs.
type Ref interface {
	Name() string
	SchemaName() string
	DatabaseName() string
	Type() Type
	RenderPolicy() *RenderPolicy
	FullyQualifiedPath() string
}

// Relation is a relation with its full declared or introspected metadata.
type Relation interface {
	Ref
	Schema() SchemaRelation
	Query() string
	// Diff lists what would have to change for existing to match the
	// receiver. An empty result means the configurations are identical.
	Diff(existing Relation) []Change
	// WithIdentifier returns a copy of the relation under another name.
	WithIdentifier(name string) Relation
}

// Parser builds one relation type. Parsers hold the schema parser for the
// level below; the factory picks a parser by relation type.
type Parser interface {
	Type() Type
	FromDict(dict map[string]any) (Relation, error)
	ParseNode(node NodeDescription) (map[string]any, error)
	ParseIntrospection(results IntrospectionResults) (map[string]any, error)
}

type relationBase struct {
	name   string
	schema SchemaRelation
	render *RenderPolicy
	typ    Type
}

func (r relationBase) Name() string                { return r.name }
func (r relationBase) Schema() SchemaRelation      { return r.schema }
func (r relationBase) SchemaName() string          { return r.schema.name }
func (r relationBase) DatabaseName() string        { return r.schema.database.name }
func (r relationBase) Type() Type                  { return r.typ }
func (r relationBase) RenderPolicy() *RenderPolicy { return r.render }

func (r relationBase) FullyQualifiedPath() string {
	return r.render.Render(r.schema.database.name, r.schema.name, r.name)
}

func (r relationBase) withName(name string) relationBase {
	r.name = name
	return r
}

// baseFromDict validates the keys every relation type shares. The type is
// checked before anything else so an unknown type is always reported as
// such, whatever else is wrong with the mapping.
func baseFromDict(dict map[string]any, schemaParser SchemaParser, want Type) (relationBase, error) {
	rawType, ok := dict["type"]
	if !ok || rawType == nil {
		return relationBase{}, missingKey("relation", "type")
	}
	typ, err := typeOf(rawType)
	if err != nil {
		return relationBase{}, err
	}
	if typ != want {
		return relationBase{}, &ConstructionError{Component: "relation", Key: "type", Reason: "parser for " + string(want) + " cannot build " + string(typ)}
	}

	name, err := requireString("relation", dict, "name")
	if err != nil {
		return relationBase{}, err
	}
	render, err := requireRender("relation", dict)
	if err != nil {
		return relationBase{}, err
	}
	schemaDict, err := requireDict("relation", dict, "schema")
	if err != nil {
		return relationBase{}, err
	}
	schema, err := schemaParser.FromDict(schemaDict)
	if err != nil {
		return relationBase{}, err
	}
	if !schema.render.Equal(render) {
		return relationBase{}, &ConstructionError{Component: "relation", Key: "render", Reason: "schema render policy differs from relation render policy"}
	}
	return relationBase{name: name, schema: schema, render: render, typ: typ}, nil
}

func typeOf(v any) (Type, error) {
	switch t := v.(type) {
	case Type:
		return ParseType(string(t))
	case string:
		return ParseType(t)
	default:
		return "", &ConstructionError{Component: "relation", Key: "type", Reason: "expected a string"}
	}
}

func baseParseNode(node NodeDescription, schemaParser SchemaParser, typ Type) (map[string]any, error) {
	schema, err := schemaParser.ParseNode(node)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":   node.Name,
		"schema": schema,
		"type":   typ,
	}, nil
}

func baseParseIntrospection(results IntrospectionResults, schemaParser SchemaParser, typ Type) (map[string]any, error) {
	schema, err := schemaParser.ParseIntrospection(results)
	if err != nil {
		return nil, err
	}
	row, _ := results.First(ResultSetRelation)
	return map[string]any{
		"name":   row.String(nameColumns...),
		"schema": schema,
		"type":   typ,
	}, nil
}

// NormalizeQuery folds whitespace runs, keyword and identifier case and
// trailing semicolons so that a declared query and the definition echoed
// back by a catalog compare equal when only formatting differs. Text inside
// '...' literals and "..." identifiers is kept verbatim.
func NormalizeQuery(q string) string {
	q = strings.TrimRight(strings.TrimSpace(q), "; \t\r\n")

	var b strings.Builder
	b.Grow(len(q))
	var quote rune
	space := false
	for _, r := range q {
		switch {
		case quote != 0:
			b.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case unicode.IsSpace(r):
			space = true
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			if r == '\'' || r == '"' {
				quote = r
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func queryChange(declared, existing string) []Change {
	if NormalizeQuery(declared) == NormalizeQuery(existing) {
		return nil
	}
	return []Change{{Attribute: AttributeQuery, Action: ChangeActionAlter, Context: declared}}
}
