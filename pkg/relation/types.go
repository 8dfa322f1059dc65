package relation

import "strings"

// Type is the kind of database object a relation represents.
type Type string

// Relation types.
const (
	TypeTable            Type = "table"
	TypeView             Type = "view"
	TypeMaterializedView Type = "materialized_view"
	TypeCTE              Type = "cte"
	TypeExternal         Type = "external"
	TypeEphemeral        Type = "ephemeral"
)

// AllTypes lists every relation type in declaration order.
func AllTypes() []Type {
	return []Type{TypeTable, TypeView, TypeMaterializedView, TypeCTE, TypeExternal, TypeEphemeral}
}

// ParseType maps a declared or introspected type name onto a Type.
// Names are matched case-insensitively; "materializedview" and
// "materialized view" are accepted as spellings of materialized_view.
func ParseType(s string) (Type, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	if norm == "materializedview" {
		norm = string(TypeMaterializedView)
	}
	for _, t := range AllTypes() {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", &UnsupportedRelationTypeError{Type: s, Supported: AllTypes()}
}

// String implements fmt.Stringer.
func (t Type) String() string { return string(t) }
