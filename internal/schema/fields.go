// Package schema describes the tabular resources the query engine can read.
//
// Every resource registers its fields once at startup. A field binds a logical
// name (what callers filter, group and sort on) to a physical column and a
// value type. Nothing is looked up by reflection at request time.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldType represents the value type of a field.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeJSONArray FieldType = "json[]"
)

// IsNumeric reports whether values of this type order numerically.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeInteger || t == FieldTypeFloat
}

// Field is a logical name bound to a physical column.
type Field struct {
	Name   string    // Logical name used by callers and in row-maps
	Column string    // Physical column; defaults to Name
	Type   FieldType // Value type
}

// Text declares a text field.
func Text(name string) Field { return Field{Name: name, Type: FieldTypeText} }

// Integer declares an integer field.
func Integer(name string) Field { return Field{Name: name, Type: FieldTypeInteger} }

// Float declares a floating point field.
func Float(name string) Field { return Field{Name: name, Type: FieldTypeFloat} }

// Bool declares a boolean field.
func Bool(name string) Field { return Field{Name: name, Type: FieldTypeBool} }

// JSONArray declares a field holding a JSON array.
func JSONArray(name string) Field { return Field{Name: name, Type: FieldTypeJSONArray} }

// As binds the field to a physical column whose name differs from the logical one.
func (f Field) As(column string) Field {
	f.Column = column
	return f
}

// ColumnName returns the physical column name.
func (f Field) ColumnName() string {
	if f.Column == "" {
		return f.Name
	}
	return f.Column
}

// Parse converts raw text (a query parameter, a CLI argument) into a value of
// the field's type.
func (f Field) Parse(raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	switch f.Type {
	case FieldTypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Integer columns are sometimes fed values like "2015.0".
			fl, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || fl != float64(int64(fl)) {
				return nil, fmt.Errorf("field %s: %q is not an integer", f.Name, raw)
			}
			return int64(fl), nil
		}
		return n, nil
	case FieldTypeFloat:
		fl, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %q is not a number", f.Name, raw)
		}
		return fl, nil
	case FieldTypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %q is not a boolean", f.Name, raw)
		}
		return b, nil
	default:
		// Text and JSON array members compare as text.
		return raw, nil
	}
}

// Coerce normalizes a Go value into the canonical representation for the
// field's type: int64 for integers, float64 for floats, bool, or string.
// Strings are parsed; nil passes through.
func (f Field) Coerce(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return f.Parse(s)
	}
	switch f.Type {
	case FieldTypeInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		case json.Number:
			return f.Parse(n.String())
		}
	case FieldTypeFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		case json.Number:
			return f.Parse(n.String())
		}
	case FieldTypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	default:
		switch v.(type) {
		case bool, int, int32, int64, float32, float64:
			return fmt.Sprint(v), nil
		}
	}
	return nil, fmt.Errorf("field %s: value %v (%T) is not a valid %s", f.Name, v, v, f.Type)
}
