// Package schemautil reflects JSON Schema parameter objects from Go structs
// and validates call arguments against them. It backs the tool definitions
// exposed to model providers.
package schemautil

import (
	"fmt"
	"reflect"
	"strings"
)

// ArgumentError reports one argument failing schema validation.
type ArgumentError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Field, e.Reason)
}

// Reflect builds a JSON Schema object from a struct value (or pointer).
// Property names follow json tags, a `description` tag becomes the property
// description, and non-pointer fields without omitempty are required.
func Reflect(v any) map[string]any {
	properties := map[string]any{}
	var required []string

	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, omitEmpty := fieldName(f)
			if name == "" {
				continue
			}
			prop := map[string]any{"type": schemaType(f.Type)}
			if desc := f.Tag.Get("description"); desc != "" {
				prop["description"] = desc
			}
			properties[name] = prop
			if !omitEmpty && f.Type.Kind() != reflect.Ptr {
				required = append(required, name)
			}
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Validate checks args against a schema produced by Reflect: required fields
// must be present and values must match their declared type. Arguments absent
// from the schema pass through untouched.
func Validate(args map[string]any, schema map[string]any) error {
	for _, field := range requiredFields(schema) {
		if _, ok := args[field]; !ok {
			return &ArgumentError{Field: field, Reason: "required argument is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for field, value := range args {
		prop, ok := properties[field].(map[string]any)
		if !ok {
			continue
		}
		typ, _ := prop["type"].(string)
		if !matchesType(value, typ) {
			return &ArgumentError{
				Field:  field,
				Value:  value,
				Reason: fmt.Sprintf("expected %s, got %T", typ, value),
			}
		}
	}
	return nil
}

// fieldName resolves the JSON property name of a struct field. An empty name
// means the field is excluded.
func fieldName(f reflect.StructField) (name string, omitEmpty bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	name = f.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

func schemaType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Ptr:
		return schemaType(t.Elem())
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

// requiredFields tolerates both the []string Reflect emits and the []any a
// JSON round trip produces.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func matchesType(value any, typ string) bool {
	if value == nil {
		return true
	}
	switch typ {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // json numbers decode as float64
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}
