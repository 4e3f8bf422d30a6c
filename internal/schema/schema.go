package schema

import (
	"fmt"
	"sort"
)

// Schema is the statically registered field table for one resource.
type Schema struct {
	Name       string // Resource name, e.g. "practices"
	Table      string // Physical table
	PrimaryKey string // Logical name of the primary key field

	fields []Field
	byName map[string]int
}

// UnknownFieldError is returned when a name is not registered for a schema.
type UnknownFieldError struct {
	Schema string
	Name   string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q for %s", e.Name, e.Schema)
}

// New builds a schema. Field names must be unique and the primary key must be
// one of the fields.
func New(name, table, primaryKey string, fields ...Field) (*Schema, error) {
	if name == "" || table == "" {
		return nil, fmt.Errorf("schema requires a name and a table")
	}
	s := &Schema{
		Name:       name,
		Table:      table,
		PrimaryKey: primaryKey,
		fields:     make([]Field, 0, len(fields)),
		byName:     make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field with empty name", name)
		}
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %q", name, f.Name)
		}
		if f.Type == "" {
			f.Type = FieldTypeText
		}
		s.byName[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	if _, ok := s.byName[primaryKey]; !ok {
		return nil, fmt.Errorf("schema %s: primary key %q is not a field", name, primaryKey)
	}
	return s, nil
}

// MustNew is New for package-level registrations; it panics on error.
func MustNew(name, table, primaryKey string, fields ...Field) *Schema {
	s, err := New(name, table, primaryKey, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Resolve maps a logical name to its field. Matching is exact and
// case-sensitive.
func (s *Schema) Resolve(name string) (Field, error) {
	if i, ok := s.byName[name]; ok {
		return s.fields[i], nil
	}
	return Field{}, &UnknownFieldError{Schema: s.Name, Name: name}
}

// Has reports whether name is registered.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns the logical names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Key returns the primary key field.
func (s *Schema) Key() Field {
	return s.fields[s.byName[s.PrimaryKey]]
}

// Registry holds the schemas known to a process.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry creates a registry holding the given schemas.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a schema. Registering the same name twice is an error.
func (r *Registry) Register(s *Schema) error {
	if s == nil {
		return fmt.Errorf("nil schema")
	}
	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("schema %q already registered", s.Name)
	}
	r.schemas[s.Name] = s
	return nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns registered schema names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
