package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// TagOptions controls how struct fields map to schema fields.
type TagOptions struct {
	NameTag         string
	DescTag         string
	FacetTag        string
	RequiredDefault bool
}

// DefaultTagOptions returns the standard tag mapping: json for names,
// facet_desc for descriptions, facet for required/optional/omit markers.
func DefaultTagOptions() TagOptions {
	return TagOptions{
		NameTag:         "json",
		DescTag:         "facet_desc",
		FacetTag:        "facet",
		RequiredDefault: true,
	}
}

// FromStruct builds a Schema from a Go struct using tags. Field defaults
// come from the type's zero value unless the dimension config overrides
// them afterward.
func FromStruct(name string, v any, opts ...TagOptions) (Schema, error) {
	if v == nil {
		return Schema{}, fmt.Errorf("schema: struct is nil")
	}
	cfg := DefaultTagOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("schema: expected struct, got %s", t.Kind())
	}
	out := Schema{Name: name, Fields: make([]Field, 0, t.NumField())}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || tagHas(f, cfg.FacetTag, "-", "omit") {
			continue
		}
		fieldName := jsonName(f, cfg.NameTag)
		if fieldName == "" {
			continue
		}
		required := cfg.RequiredDefault
		if tagHas(f, cfg.FacetTag, "required") {
			required = true
		} else if tagHas(f, cfg.FacetTag, "optional") {
			required = false
		}
		out.Fields = append(out.Fields, Field{
			Name:        fieldName,
			Type:        fieldTypeOf(f.Type),
			Required:    required,
			Description: strings.TrimSpace(f.Tag.Get(cfg.DescTag)),
		})
	}
	if len(out.Fields) == 0 {
		return Schema{}, fmt.Errorf("schema: struct %s has no usable fields", t.Name())
	}
	return out, nil
}

// MustFromStruct panics on error; useful for dimension config literals.
func MustFromStruct(name string, v any, opts ...TagOptions) Schema {
	s, err := FromStruct(name, v, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func tagHas(f reflect.StructField, tag string, values ...string) bool {
	raw := strings.TrimSpace(f.Tag.Get(tag))
	if raw == "" {
		return false
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		for _, v := range values {
			if part == v {
				return true
			}
		}
	}
	return false
}

func jsonName(f reflect.StructField, nameTag string) string {
	tag := strings.TrimSpace(f.Tag.Get(nameTag))
	if tag != "" {
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return toSnake(f.Name)
}

func fieldTypeOf(t reflect.Type) FieldType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Slice, reflect.Array:
		return TypeArray
	case reflect.Map, reflect.Struct:
		return TypeObject
	default:
		return TypeString
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			var next rune
			if i+1 < len(s) {
				next = rune(s[i+1])
			}
			if prev >= 'a' && prev <= 'z' || (next >= 'a' && next <= 'z') {
				b.WriteByte('_')
			}
		}
		b.WriteRune(lower(r))
	}
	return b.String()
}

func lower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
