package relation

import "fmt"

// Attributes compared when diffing declared and existing relations.
const (
	AttributeQuery      = "query"
	AttributeIndexes    = "indexes"
	AttributeLocation   = "location"
	AttributeFileFormat = "file_format"
)

// ChangeAction is what a change does to its attribute.
type ChangeAction string

// Change actions.
const (
	ChangeActionCreate ChangeAction = "create"
	ChangeActionDrop   ChangeAction = "drop"
	ChangeActionAlter  ChangeAction = "alter"
)

// Change is one configuration difference between a declared relation and
// the relation found in the warehouse.
type Change struct {
	Attribute string
	Action    ChangeAction
	// Context carries the declared value: the new query, or the IndexConfig
	// being created or dropped.
	Context any
}

func (c Change) String() string {
	if idx, ok := c.Context.(IndexConfig); ok {
		return fmt.Sprintf("%s %s %s", c.Action, c.Attribute, idx.Signature())
	}
	return fmt.Sprintf("%s %s", c.Action, c.Attribute)
}

// Capabilities describes what a warehouse can change in place.
type Capabilities struct {
	// Alterable lists, per relation type, the attributes that can be
	// changed without rebuilding the relation.
	Alterable map[Type][]string
	// Renamable lists the relation types the warehouse can rename.
	Renamable map[Type]bool
}

func (c Capabilities) clone() Capabilities {
	out := Capabilities{
		Alterable: make(map[Type][]string, len(c.Alterable)),
		Renamable: make(map[Type]bool, len(c.Renamable)),
	}
	for t, attrs := range c.Alterable {
		out.Alterable[t] = append([]string(nil), attrs...)
	}
	for t, ok := range c.Renamable {
		out.Renamable[t] = ok
	}
	return out
}

// CanAlter reports whether attribute can change in place for type t.
func (c Capabilities) CanAlter(t Type, attribute string) bool {
	for _, a := range c.Alterable[t] {
		if a == attribute {
			return true
		}
	}
	return false
}

// CanRename reports whether relations of type t can be renamed.
func (c Capabilities) CanRename(t Type) bool {
	return c.Renamable[t]
}

// AllAlterable reports whether every change can be applied in place.
func (c Capabilities) AllAlterable(t Type, changes []Change) bool {
	for _, ch := range changes {
		if !c.CanAlter(t, ch.Attribute) {
			return false
		}
	}
	return true
}
