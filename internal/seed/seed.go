// Package seed decodes YAML fixture files into rows for the resource tables.
//
// A fixture file is a mapping from resource name to a list of rows:
//
//	practices:
//	  - id: 1
//	    state: IA
//	    ancillary_benefits: [soil, habitat]
//	states:
//	  - state: IA
//
// Tables keep the order they appear in the file.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/store"
)

// Table is the decoded rows for one schema.
type Table struct {
	Schema *schema.Schema
	Rows   []query.Row
}

// Fixtures is a decoded fixture file.
type Fixtures struct {
	Tables []Table
}

// Count returns the total number of rows across tables.
func (f *Fixtures) Count() int {
	n := 0
	for _, t := range f.Tables {
		n += len(t.Rows)
	}
	return n
}

// Schemas returns the schemas named by the fixtures, in file order.
func (f *Fixtures) Schemas() []*schema.Schema {
	out := make([]*schema.Schema, 0, len(f.Tables))
	for _, t := range f.Tables {
		out = append(out, t.Schema)
	}
	return out
}

// LoadFile reads and decodes a fixture file.
func LoadFile(path string, reg *schema.Registry) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return Decode(bytes.NewReader(data), reg)
}

// Decode parses fixtures from r. Resource names must be registered in reg and
// row keys must be fields of that resource.
func Decode(r io.Reader, reg *schema.Registry) (*Fixtures, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return &Fixtures{}, nil
		}
		return nil, fmt.Errorf("failed to parse fixtures as YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return &Fixtures{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fixtures: line %d: expected a mapping of resource name to rows", root.Line)
	}

	out := &Fixtures{}
	index := make(map[string]int)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, rowsNode := root.Content[i], root.Content[i+1]
		name := keyNode.Value
		sc, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("fixtures: line %d: unknown resource %q", keyNode.Line, name)
		}

		var raw []map[string]interface{}
		if err := rowsNode.Decode(&raw); err != nil {
			return nil, fmt.Errorf("fixtures: %s: %w", name, err)
		}
		rows, err := convertRows(sc, raw)
		if err != nil {
			return nil, err
		}

		if at, seen := index[name]; seen {
			out.Tables[at].Rows = append(out.Tables[at].Rows, rows...)
			continue
		}
		index[name] = len(out.Tables)
		out.Tables = append(out.Tables, Table{Schema: sc, Rows: rows})
	}
	return out, nil
}

func convertRows(sc *schema.Schema, raw []map[string]interface{}) ([]query.Row, error) {
	rows := make([]query.Row, 0, len(raw))
	for i, r := range raw {
		row := make(query.Row, len(r))
		for key, v := range r {
			if !sc.Has(key) {
				return nil, fmt.Errorf("fixtures: %s row %d: %w", sc.Name, i+1, &schema.UnknownFieldError{Schema: sc.Name, Name: key})
			}
			row[key] = valueFromYAML(v)
		}
		if row[sc.PrimaryKey] == nil {
			return nil, fmt.Errorf("fixtures: %s row %d: missing %s", sc.Name, i+1, sc.PrimaryKey)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// valueFromYAML maps YAML scalars onto the values field coercion accepts.
// Dates decode as time.Time and are stored in their text form.
func valueFromYAML(v interface{}) interface{} {
	switch vv := v.(type) {
	case time.Time:
		if vv.Hour() == 0 && vv.Minute() == 0 && vv.Second() == 0 && vv.Nanosecond() == 0 {
			return vv.Format("2006-01-02")
		}
		return vv.Format(time.RFC3339)
	case []interface{}:
		items := make([]interface{}, len(vv))
		for i, item := range vv {
			items[i] = valueFromYAML(item)
		}
		return items
	}
	return v
}

// IntoSQL creates the fixture tables and inserts their rows. loaded, if not
// nil, is called after each table is written.
func IntoSQL(ctx context.Context, st *store.SQLStore, f *Fixtures, loaded func(Table)) error {
	if err := st.CreateTables(ctx, f.Schemas()...); err != nil {
		return err
	}
	for _, t := range f.Tables {
		if err := st.Insert(ctx, t.Schema, t.Rows); err != nil {
			return err
		}
		if loaded != nil {
			loaded(t)
		}
	}
	return nil
}

// IntoMemory loads the fixture rows into an in-memory store.
func IntoMemory(m *store.MemoryStore, f *Fixtures) error {
	for _, t := range f.Tables {
		if err := m.Load(t.Schema, t.Rows); err != nil {
			return err
		}
	}
	return nil
}
