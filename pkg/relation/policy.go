package relation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ComponentName identifies one level of a fully qualified relation path.
type ComponentName string

// Path components, outermost first.
const (
	ComponentDatabase   ComponentName = "database"
	ComponentSchema     ComponentName = "schema"
	ComponentIdentifier ComponentName = "identifier"
)

// Casing controls how unquoted identifiers are folded when rendered.
type Casing string

// Supported casing rules.
const (
	CasingPreserve Casing = "preserve"
	CasingLower    Casing = "lower"
	CasingUpper    Casing = "upper"
)

// DefaultQuoteCharacter is the ANSI identifier quote.
const DefaultQuoteCharacter = `"`

// QuotePolicy says which path components are quoted when rendered.
type QuotePolicy struct {
	Database   bool `mapstructure:"database" koanf:"database"`
	Schema     bool `mapstructure:"schema" koanf:"schema"`
	Identifier bool `mapstructure:"identifier" koanf:"identifier"`
}

// IncludePolicy says which path components appear in a rendered path.
type IncludePolicy struct {
	Database   bool `mapstructure:"database" koanf:"database"`
	Schema     bool `mapstructure:"schema" koanf:"schema"`
	Identifier bool `mapstructure:"identifier" koanf:"identifier"`
}

func (p QuotePolicy) enabled(c ComponentName) bool {
	switch c {
	case ComponentDatabase:
		return p.Database
	case ComponentSchema:
		return p.Schema
	default:
		return p.Identifier
	}
}

func (p IncludePolicy) enabled(c ComponentName) bool {
	switch c {
	case ComponentDatabase:
		return p.Database
	case ComponentSchema:
		return p.Schema
	default:
		return p.Identifier
	}
}

// RenderPolicy controls how relation paths are quoted, cased and joined.
//
// A RenderPolicy is immutable once constructed. It is built once per run
// context and shared by pointer between every component built from it, so
// it is safe to read from concurrently running nodes.
type RenderPolicy struct {
	quote          QuotePolicy
	include        IncludePolicy
	quoteCharacter string
	casing         Casing
	delimiter      string
}

// RenderOption configures a RenderPolicy at construction time.
type RenderOption func(*RenderPolicy)

// WithQuoting sets which components are quoted.
func WithQuoting(q QuotePolicy) RenderOption {
	return func(p *RenderPolicy) { p.quote = q }
}

// WithInclude sets which components are rendered.
func WithInclude(i IncludePolicy) RenderOption {
	return func(p *RenderPolicy) { p.include = i }
}

// WithQuoteCharacter overrides the identifier quote character.
func WithQuoteCharacter(c string) RenderOption {
	return func(p *RenderPolicy) { p.quoteCharacter = c }
}

// WithCasing sets the casing rule applied to unquoted components.
func WithCasing(c Casing) RenderOption {
	return func(p *RenderPolicy) { p.casing = c }
}

// NewRenderPolicy returns a policy that quotes and includes every component.
func NewRenderPolicy(opts ...RenderOption) *RenderPolicy {
	p := &RenderPolicy{
		quote:          QuotePolicy{Database: true, Schema: true, Identifier: true},
		include:        IncludePolicy{Database: true, Schema: true, Identifier: true},
		quoteCharacter: DefaultQuoteCharacter,
		casing:         CasingPreserve,
		delimiter:      ".",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RenderPolicyFromDict builds a policy from a configuration mapping with the
// optional keys quote, include, quote_character and casing. Components
// missing from quote or include stay enabled.
func RenderPolicyFromDict(dict map[string]any) (*RenderPolicy, error) {
	var raw struct {
		Quote          QuotePolicy   `mapstructure:"quote"`
		Include        IncludePolicy `mapstructure:"include"`
		QuoteCharacter string        `mapstructure:"quote_character"`
		Casing         string        `mapstructure:"casing"`
	}
	raw.Quote = QuotePolicy{Database: true, Schema: true, Identifier: true}
	raw.Include = IncludePolicy{Database: true, Schema: true, Identifier: true}
	if err := decode(dict, &raw); err != nil {
		return nil, &ConstructionError{Component: "render", Err: err}
	}

	opts := []RenderOption{WithQuoting(raw.Quote), WithInclude(raw.Include)}
	if raw.QuoteCharacter != "" {
		opts = append(opts, WithQuoteCharacter(raw.QuoteCharacter))
	}
	if raw.Casing != "" {
		c := Casing(strings.ToLower(raw.Casing))
		switch c {
		case CasingPreserve, CasingLower, CasingUpper:
			opts = append(opts, WithCasing(c))
		default:
			return nil, &ConstructionError{Component: "render", Key: "casing", Reason: fmt.Sprintf("unknown casing %q", raw.Casing)}
		}
	}
	return NewRenderPolicy(opts...), nil
}

// Quote returns the quote policy.
func (p *RenderPolicy) Quote() QuotePolicy { return p.quote }

// Include returns the include policy.
func (p *RenderPolicy) Include() IncludePolicy { return p.include }

// QuoteCharacter returns the identifier quote character.
func (p *RenderPolicy) QuoteCharacter() string { return p.quoteCharacter }

// Casing returns the casing rule.
func (p *RenderPolicy) Casing() Casing { return p.casing }

// WithQuotePolicy returns a copy of p using q. p itself is left untouched.
func (p *RenderPolicy) WithQuotePolicy(q QuotePolicy) *RenderPolicy {
	cp := *p
	cp.quote = q
	return &cp
}

// Equal reports whether two policies render every path identically.
func (p *RenderPolicy) Equal(other *RenderPolicy) bool {
	if p == other {
		return true
	}
	if p == nil || other == nil {
		return false
	}
	return *p == *other
}

// Part renders a single component. Quoted components keep their case;
// unquoted ones follow the casing rule.
func (p *RenderPolicy) Part(c ComponentName, name string) string {
	if p.quote.enabled(c) {
		q := p.quoteCharacter
		return q + strings.ReplaceAll(name, q, q+q) + q
	}
	switch p.casing {
	case CasingLower:
		return cases.Lower(language.Und).String(name)
	case CasingUpper:
		return cases.Upper(language.Und).String(name)
	default:
		return name
	}
}

// Render joins the included, non-empty components into a path.
func (p *RenderPolicy) Render(database, schema, identifier string) string {
	parts := make([]string, 0, 3)
	for _, c := range []struct {
		name  ComponentName
		value string
	}{
		{ComponentDatabase, database},
		{ComponentSchema, schema},
		{ComponentIdentifier, identifier},
	} {
		if c.value == "" || !p.include.enabled(c.name) {
			continue
		}
		parts = append(parts, p.Part(c.name, c.value))
	}
	return strings.Join(parts, p.delimiter)
}
