package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// JSON schema type names.
const (
	TypeObject = "object"
	TypeString = "string"
	TypeArray  = "array"
)

// Schema is the subset of JSON schema needed for strict structured output:
// closed objects, strings and arrays.
type Schema struct {
	// Name identifies the top-level schema in provider requests.
	Name       string
	Type       string
	Properties map[string]*Schema
	// Order lists property names in the order providers should emit them.
	Order     []string
	Required  []string
	Nullable  bool
	MinLength int
	Items     *Schema
}

// PropertyNames returns Order when set, otherwise the sorted property names.
func (s *Schema) PropertyNames() []string {
	if len(s.Order) > 0 {
		return s.Order
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSONSchema renders the schema as a JSON-schema document. Objects are closed
// (additionalProperties false) as strict mode requires.
func (s *Schema) JSONSchema() map[string]any {
	out := map[string]any{}

	if s.Nullable {
		out["type"] = []string{s.Type, "null"}
	} else {
		out["type"] = s.Type
	}

	switch s.Type {
	case TypeObject:
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.JSONSchema()
		}
		out["properties"] = props
		required := s.Required
		if required == nil {
			required = []string{}
		}
		out["required"] = required
		out["additionalProperties"] = false
	case TypeString:
		if s.MinLength > 0 {
			out["minLength"] = s.MinLength
		}
	case TypeArray:
		if s.Items != nil {
			out["items"] = s.Items.JSONSchema()
		}
	}

	return out
}

// Validate checks that raw is a JSON document conforming to the schema.
func (s *Schema) Validate(raw string) error {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("response is not valid JSON: %w", err)
	}
	return s.validateValue("$", doc)
}

func (s *Schema) validateValue(path string, v any) error {
	if v == nil {
		if s.Nullable {
			return nil
		}
		return fmt.Errorf("%s: null is not allowed", path)
	}

	switch s.Type {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, v)
		}
		for _, key := range s.Required {
			if _, ok := obj[key]; !ok {
				return fmt.Errorf("%s: missing required property %q", path, key)
			}
		}
		for key, value := range obj {
			prop, ok := s.Properties[key]
			if !ok {
				return fmt.Errorf("%s: unexpected property %q", path, key)
			}
			if err := prop.validateValue(path+"."+key, value); err != nil {
				return err
			}
		}
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s: expected string, got %T", path, v)
		}
		if utf8.RuneCountInString(str) < s.MinLength {
			return fmt.Errorf("%s: string shorter than %d", path, s.MinLength)
		}
	case TypeArray:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %T", path, v)
		}
		if s.Items == nil {
			return nil
		}
		for i, item := range items {
			if err := s.Items.validateValue(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%s: unsupported schema type %q", path, s.Type)
	}

	return nil
}
