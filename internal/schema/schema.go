// Package schema holds the declarative result specs the parser validates
// against: field names, primitive types, required flags, and a default
// value per field. Schemas are immutable per request and supplied by the
// dimension configuration.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// FieldType is the primitive type a field's runtime value must have after
// JSON decoding.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeArray  FieldType = "array"
	TypeObject FieldType = "object"
)

// Field describes one output field.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Default     any
	Description string
}

// Schema is a named, ordered set of fields.
type Schema struct {
	Name   string
	Fields []Field
}

// Validation reports schema conformance issues. Issues are recorded, never
// thrown; they lower confidence downstream but do not force a fallback.
type Validation struct {
	MissingFields []string `json:"missing_fields,omitempty"`
	InvalidFields []string `json:"invalid_fields,omitempty"`
}

// OK reports whether no issues were found.
func (v Validation) OK() bool {
	return len(v.MissingFields) == 0 && len(v.InvalidFields) == 0
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Required returns the required fields in declaration order.
func (s Schema) Required() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Defaults builds a fresh object with every field set to its declared
// default. This is the fallback payload: structurally complete regardless
// of parse success.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.DefaultValue()
	}
	return out
}

// DefaultValue returns the field's declared default, or the type's zero
// value when none was declared.
func (f Field) DefaultValue() any {
	if f.Default != nil {
		return f.Default
	}
	switch f.Type {
	case TypeString:
		return ""
	case TypeNumber:
		return 0.0
	case TypeBool:
		return false
	case TypeArray:
		return []any{}
	case TypeObject:
		return map[string]any{}
	default:
		return nil
	}
}

// Matches reports whether a decoded JSON value conforms to the field type.
func (t FieldType) Matches(v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int64, json.Number:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

// Validate checks every required field is present and every present field
// matches its declared type.
func (s Schema) Validate(obj map[string]any) Validation {
	var v Validation
	for _, f := range s.Fields {
		val, ok := obj[f.Name]
		if !ok || val == nil {
			if f.Required {
				v.MissingFields = append(v.MissingFields, f.Name)
			}
			continue
		}
		if !f.Type.Matches(val) {
			v.InvalidFields = append(v.InvalidFields, f.Name)
		}
	}
	return v
}

// Fingerprint is a stable identity over the schema's name and field
// layout, used in cache keys.
func (s Schema) Fingerprint() string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, fmt.Sprintf("%s:%s:%t", f.Name, f.Type, f.Required))
	}
	sort.Strings(names)
	h := sha256.New()
	h.Write([]byte(s.Name))
	for _, n := range names {
		h.Write([]byte{0})
		h.Write([]byte(n))
	}
	return hex.EncodeToString(h.Sum(nil))
}
