package relation

import (
	"fmt"
	"strings"
)

// ConstructionError is returned when a configuration mapping handed to a
// FromDict constructor is incomplete or malformed.
type ConstructionError struct {
	Component string
	Key       string
	Reason    string
	Err       error
}

func (e *ConstructionError) Error() string {
	var b strings.Builder
	b.WriteString("cannot construct ")
	b.WriteString(e.Component)
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConstructionError) Unwrap() error { return e.Err }

func missingKey(component, key string) *ConstructionError {
	return &ConstructionError{Component: component, Key: key, Reason: "required key is missing"}
}

// UnsupportedRelationTypeError is returned when a declared or introspected
// type is outside the enumerated set, or has no parser in the factory.
type UnsupportedRelationTypeError struct {
	Type      string
	Supported []Type
}

func (e *UnsupportedRelationTypeError) Error() string {
	names := make([]string, len(e.Supported))
	for i, t := range e.Supported {
		names[i] = string(t)
	}
	return fmt.Sprintf("unsupported relation type %q (supported: %s)", e.Type, strings.Join(names, ", "))
}
