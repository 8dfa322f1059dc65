package relation

// TableRelation is a table. Tables built by a transformation carry the
// query that fills them; tables found in the catalog do not.
type TableRelation struct {
	relationBase
	query     string
	uniqueKey string
}

// Query returns the query that fills the table, if known.
func (t *TableRelation) Query() string { return t.query }

// UniqueKey returns the column used to deduplicate incremental loads.
func (t *TableRelation) UniqueKey() string { return t.uniqueKey }

// WithIdentifier implements Relation.
func (t *TableRelation) WithIdentifier(name string) Relation {
	cp := *t
	cp.relationBase = t.relationBase.withName(name)
	return &cp
}

// Diff compares queries when the existing query is known. Catalogs do not
// keep the query a table was built from, so introspected tables never
// report a query change.
func (t *TableRelation) Diff(existing Relation) []Change {
	if existing.Query() == "" {
		return nil
	}
	return queryChange(t.query, existing.Query())
}

// TableParser builds TableRelation values.
type TableParser struct {
	Schema SchemaParser
}

// Type implements Parser.
func (TableParser) Type() Type { return TypeTable }

// FromDict accepts the optional keys query and unique_key.
func (p TableParser) FromDict(dict map[string]any) (Relation, error) {
	base, err := baseFromDict(dict, p.Schema, TypeTable)
	if err != nil {
		return nil, err
	}
	var extra struct {
		Query     string `mapstructure:"query"`
		UniqueKey string `mapstructure:"unique_key"`
	}
	if err := decode(dict, &extra); err != nil {
		return nil, &ConstructionError{Component: "table", Err: err}
	}
	return &TableRelation{relationBase: base, query: extra.Query, uniqueKey: extra.UniqueKey}, nil
}

// ParseNode implements Parser.
func (p TableParser) ParseNode(node NodeDescription) (map[string]any, error) {
	dict, err := baseParseNode(node, p.Schema, TypeTable)
	if err != nil {
		return nil, err
	}
	dict["query"] = node.Query
	dict["unique_key"] = node.ConfigString("unique_key")
	return dict, nil
}

// ParseIntrospection implements Parser.
func (p TableParser) ParseIntrospection(results IntrospectionResults) (map[string]any, error) {
	return baseParseIntrospection(results, p.Schema, TypeTable)
}
