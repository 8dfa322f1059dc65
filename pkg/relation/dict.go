package relation

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// decode maps a loosely typed configuration mapping onto out.
func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func requireString(component string, dict map[string]any, key string) (string, error) {
	v, ok := dict[key]
	if !ok || v == nil {
		return "", missingKey(component, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConstructionError{Component: component, Key: key, Reason: fmt.Sprintf("expected a string, got %T", v)}
	}
	if s == "" {
		return "", &ConstructionError{Component: component, Key: key, Reason: "must not be empty"}
	}
	return s, nil
}

func optionalString(component string, dict map[string]any, key string) (string, error) {
	v, ok := dict[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConstructionError{Component: component, Key: key, Reason: fmt.Sprintf("expected a string, got %T", v)}
	}
	return s, nil
}

func requireDict(component string, dict map[string]any, key string) (map[string]any, error) {
	v, ok := dict[key]
	if !ok || v == nil {
		return nil, missingKey(component, key)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ConstructionError{Component: component, Key: key, Reason: fmt.Sprintf("expected a mapping, got %T", v)}
	}
	return m, nil
}

// requireRender accepts either a shared *RenderPolicy or a policy mapping.
func requireRender(component string, dict map[string]any) (*RenderPolicy, error) {
	v, ok := dict["render"]
	if !ok || v == nil {
		return nil, missingKey(component, "render")
	}
	switch r := v.(type) {
	case *RenderPolicy:
		if r == nil {
			return nil, missingKey(component, "render")
		}
		return r, nil
	case map[string]any:
		return RenderPolicyFromDict(r)
	default:
		return nil, &ConstructionError{Component: component, Key: "render", Reason: fmt.Sprintf("expected a render policy, got %T", v)}
	}
}

// withRender sets render on a relation mapping and on its nested schema and
// database mappings, leaving the input untouched.
func withRender(dict map[string]any, render *RenderPolicy) map[string]any {
	out := make(map[string]any, len(dict)+1)
	for k, v := range dict {
		out[k] = v
	}
	out["render"] = render
	for _, key := range []string{"schema", "database"} {
		if nested, ok := out[key].(map[string]any); ok {
			out[key] = withRender(nested, render)
		}
	}
	return out
}
