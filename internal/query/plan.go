package query

import (
	"fmt"
	"strings"

	"github.com/gltg/bmp-api/internal/schema"
)

// Partition requests a "top N per group" window. Size <= 0 keeps every row.
type Partition struct {
	Fields []string
	Size   int
}

// Spec is the declarative description of a query against one schema, as
// assembled from caller input.
type Spec struct {
	Filter     Filter
	GroupBy    []string
	Aggregates []AggregateSpec
	Partition  Partition
	OrderBy    []OrderSpec
}

// Column is an output column of a plan.
type Column struct {
	Name string
	Type schema.FieldType
}

// Plan is a validated, immutable query over one schema. Plans are built per
// request and are safe to share between goroutines.
type Plan struct {
	schema     *schema.Schema
	where      condition
	groupBy    []schema.Field
	aggregates []aggregate
	partition  []string
	size       int
	order      []sortKey
	tieBreak   []sortKey
	columns    []Column
}

// Build validates spec against s and returns the composed plan. Every
// validation error is reported here, before any store is touched.
func Build(s *schema.Schema, spec Spec) (*Plan, error) {
	if s == nil {
		return nil, fmt.Errorf("build plan: nil schema")
	}
	p := &Plan{schema: s}

	where, err := compileFilter(s, spec.Filter)
	if err != nil {
		return nil, err
	}
	p.where = where

	if err := p.resolveGrouping(spec.GroupBy, spec.Aggregates); err != nil {
		return nil, err
	}
	if err := p.resolvePartition(spec.Partition); err != nil {
		return nil, err
	}
	if err := p.resolveOrder(spec.OrderBy); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plan) resolveGrouping(groupBy []string, aggs []AggregateSpec) error {
	seen := make(map[string]bool, len(groupBy)+len(aggs))
	for _, name := range groupBy {
		field, err := p.schema.Resolve(name)
		if err != nil {
			return err
		}
		if seen[field.Name] {
			continue
		}
		seen[field.Name] = true
		p.groupBy = append(p.groupBy, field)
		p.columns = append(p.columns, Column{Name: field.Name, Type: field.Type})
	}

	for _, spec := range aggs {
		agg, err := resolveAggregate(p.schema, spec)
		if err != nil {
			return err
		}
		if seen[agg.alias] {
			return &DuplicateAliasError{Alias: agg.alias}
		}
		seen[agg.alias] = true
		p.aggregates = append(p.aggregates, agg)
		p.columns = append(p.columns, Column{Name: agg.alias, Type: agg.fn.resultType(agg.field.Type)})
	}

	if !p.Grouped() {
		for _, f := range p.schema.Fields() {
			p.columns = append(p.columns, Column{Name: f.Name, Type: f.Type})
		}
	}
	return nil
}

func (p *Plan) resolvePartition(part Partition) error {
	if len(part.Fields) == 0 {
		return nil
	}
	for _, name := range part.Fields {
		if !p.schema.Has(name) {
			return &UnknownFieldError{Schema: p.schema.Name, Name: name}
		}
		if !p.hasColumn(name) {
			return &UnknownFieldError{Schema: p.schema.Name + " output (partition fields must be grouped)", Name: name}
		}
		p.partition = append(p.partition, name)
	}
	p.size = part.Size
	return nil
}

func (p *Plan) resolveOrder(specs []OrderSpec) error {
	used := make(map[string]bool, len(specs))
	for _, o := range specs {
		column, ok := p.resolveOrderKey(o.Key)
		if !ok {
			return &UnknownOrderKeyError{Key: o.String()}
		}
		used[column] = true
		p.order = append(p.order, sortKey{column: column, descending: o.Descending})
	}

	// Deterministic paging needs a total order: fall back to the primary key,
	// or to the group keys for grouped plans.
	switch {
	case len(p.groupBy) > 0:
		for _, f := range p.groupBy {
			if !used[f.Name] {
				p.tieBreak = append(p.tieBreak, sortKey{column: f.Name})
			}
		}
	case len(p.aggregates) == 0:
		if !used[p.schema.PrimaryKey] {
			p.tieBreak = append(p.tieBreak, sortKey{column: p.schema.PrimaryKey})
		}
	}
	return nil
}

// resolveOrderKey matches raw or group-by fields first, then aggregate aliases.
func (p *Plan) resolveOrderKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if p.schema.Has(key) {
		if !p.Grouped() {
			return key, true
		}
		for _, f := range p.groupBy {
			if f.Name == key {
				return key, true
			}
		}
	}
	for _, a := range p.aggregates {
		if a.alias == key {
			return key, true
		}
	}
	return "", false
}

func (p *Plan) hasColumn(name string) bool {
	for _, c := range p.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Schema returns the schema the plan targets.
func (p *Plan) Schema() *schema.Schema { return p.schema }

// Columns returns the output columns in order.
func (p *Plan) Columns() []Column {
	out := make([]Column, len(p.columns))
	copy(out, p.columns)
	return out
}

// ColumnNames returns the output column names in order.
func (p *Plan) ColumnNames() []string {
	names := make([]string, len(p.columns))
	for i, c := range p.columns {
		names[i] = c.Name
	}
	return names
}

// Grouped reports whether rows are grouped or aggregated.
func (p *Plan) Grouped() bool {
	return len(p.groupBy) > 0 || len(p.aggregates) > 0
}

// Partitioned reports whether the top-N-per-group stage is active.
func (p *Plan) Partitioned() bool {
	return len(p.partition) > 0
}

// sortKeys returns declared order keys followed by tie-breakers.
func (p *Plan) sortKeys() []sortKey {
	keys := make([]sortKey, 0, len(p.order)+len(p.tieBreak))
	keys = append(keys, p.order...)
	return append(keys, p.tieBreak...)
}

// String renders a compact description for logs.
func (p *Plan) String() string {
	var parts []string
	parts = append(parts, "from="+p.schema.Name)
	if p.where != nil {
		parts = append(parts, "where="+describeCondition(p.where))
	}
	if len(p.groupBy) > 0 {
		names := make([]string, len(p.groupBy))
		for i, f := range p.groupBy {
			names[i] = f.Name
		}
		parts = append(parts, "group="+strings.Join(names, ","))
	}
	if len(p.aggregates) > 0 {
		names := make([]string, len(p.aggregates))
		for i, a := range p.aggregates {
			names[i] = a.alias
		}
		parts = append(parts, "aggs="+strings.Join(names, ","))
	}
	if p.Partitioned() {
		parts = append(parts, fmt.Sprintf("partition=%s/%d", strings.Join(p.partition, ","), p.size))
	}
	if keys := p.sortKeys(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = OrderSpec{Key: k.column, Descending: k.descending}.String()
		}
		parts = append(parts, "order="+strings.Join(names, ","))
	}
	return strings.Join(parts, " ")
}

func describeCondition(c condition) string {
	switch n := c.(type) {
	case *leafCondition:
		switch {
		case n.op.IsNullCheck():
			return fmt.Sprintf("%s %s", n.field.Name, n.op)
		case n.values != nil:
			return fmt.Sprintf("%s %s %v", n.field.Name, n.op, n.values)
		default:
			return fmt.Sprintf("%s %s %v", n.field.Name, n.op, n.value)
		}
	case *branchCondition:
		parts := make([]string, len(n.children))
		for i, child := range n.children {
			parts[i] = describeCondition(child)
		}
		return "(" + strings.Join(parts, " "+n.kind.String()+" ") + ")"
	}
	return "?"
}
