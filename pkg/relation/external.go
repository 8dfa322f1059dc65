package relation

import "strings"

// ExternalRelation is a relation whose data lives outside the warehouse,
// declared by a source with an external location.
type ExternalRelation struct {
	relationBase
	location   string
	fileFormat string
}

// Query is always empty for external relations.
func (e *ExternalRelation) Query() string { return "" }

// Location returns the external data location.
func (e *ExternalRelation) Location() string { return e.location }

// FileFormat returns the declared file format.
func (e *ExternalRelation) FileFormat() string { return e.fileFormat }

// WithIdentifier implements Relation.
func (e *ExternalRelation) WithIdentifier(name string) Relation {
	cp := *e
	cp.relationBase = e.relationBase.withName(name)
	return &cp
}

// Diff compares location and file format.
func (e *ExternalRelation) Diff(existing Relation) []Change {
	other, ok := existing.(*ExternalRelation)
	if !ok {
		return []Change{{Attribute: AttributeLocation, Action: ChangeActionAlter, Context: e.location}}
	}
	var changes []Change
	if e.location != other.location {
		changes = append(changes, Change{Attribute: AttributeLocation, Action: ChangeActionAlter, Context: e.location})
	}
	if !strings.EqualFold(e.fileFormat, other.fileFormat) {
		changes = append(changes, Change{Attribute: AttributeFileFormat, Action: ChangeActionAlter, Context: e.fileFormat})
	}
	return changes
}

// ExternalParser builds ExternalRelation values.
type ExternalParser struct {
	Schema SchemaParser
}

// Type implements Parser.
func (ExternalParser) Type() Type { return TypeExternal }

// FromDict requires location in addition to the shared relation keys.
func (p ExternalParser) FromDict(dict map[string]any) (Relation, error) {
	base, err := baseFromDict(dict, p.Schema, TypeExternal)
	if err != nil {
		return nil, err
	}
	location, err := requireString("external relation", dict, "location")
	if err != nil {
		return nil, err
	}
	format, _ := dict["file_format"].(string)
	return &ExternalRelation{relationBase: base, location: location, fileFormat: format}, nil
}

// ParseNode reads the location and file_format config keys.
func (p ExternalParser) ParseNode(node NodeDescription) (map[string]any, error) {
	dict, err := baseParseNode(node, p.Schema, TypeExternal)
	if err != nil {
		return nil, err
	}
	dict["location"] = node.ConfigString("location")
	dict["file_format"] = node.ConfigString("file_format")
	return dict, nil
}

// ParseIntrospection implements Parser.
func (p ExternalParser) ParseIntrospection(results IntrospectionResults) (map[string]any, error) {
	dict, err := baseParseIntrospection(results, p.Schema, TypeExternal)
	if err != nil {
		return nil, err
	}
	row, _ := results.First(ResultSetRelation)
	dict["location"] = row.String("location")
	dict["file_format"] = row.String("file_format")
	return dict, nil
}
