package relation

// ViewRelation is a plain view.
type ViewRelation struct {
	relationBase
	query string
}

// Query returns the view definition.
func (v *ViewRelation) Query() string { return v.query }

// WithIdentifier implements Relation.
func (v *ViewRelation) WithIdentifier(name string) Relation {
	cp := *v
	cp.relationBase = v.relationBase.withName(name)
	return &cp
}

// Diff compares the view definition.
func (v *ViewRelation) Diff(existing Relation) []Change {
	return queryChange(v.query, existing.Query())
}

// ViewParser builds ViewRelation values.
type ViewParser struct {
	Schema SchemaParser
}

// Type implements Parser.
func (ViewParser) Type() Type { return TypeView }

// FromDict requires query in addition to the shared relation keys.
func (p ViewParser) FromDict(dict map[string]any) (Relation, error) {
	base, err := baseFromDict(dict, p.Schema, TypeView)
	if err != nil {
		return nil, err
	}
	query, err := requireString("view", dict, "query")
	if err != nil {
		return nil, err
	}
	return &ViewRelation{relationBase: base, query: query}, nil
}

// ParseNode implements Parser.
func (p ViewParser) ParseNode(node NodeDescription) (map[string]any, error) {
	dict, err := baseParseNode(node, p.Schema, TypeView)
	if err != nil {
		return nil, err
	}
	dict["query"] = node.Query
	return dict, nil
}

// ParseIntrospection implements Parser.
func (p ViewParser) ParseIntrospection(results IntrospectionResults) (map[string]any, error) {
	dict, err := baseParseIntrospection(results, p.Schema, TypeView)
	if err != nil {
		return nil, err
	}
	row, _ := results.First(ResultSetRelation)
	dict["query"] = row.String("definition", "view_definition", "sql")
	return dict, nil
}
