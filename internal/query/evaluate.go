package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gltg/bmp-api/internal/schema"
)

// Evaluate runs p over rows held in memory and returns the complete ordered
// result, before paging. It is the reference semantics the SQL compilation
// must agree with.
func Evaluate(p *Plan, rows []Row) []Row {
	var matched []Row
	for _, r := range rows {
		if matchCondition(p.where, r) {
			matched = append(matched, r)
		}
	}

	var out []Row
	if p.Grouped() {
		out = p.groupRows(matched)
	} else {
		out = make([]Row, len(matched))
		for i, r := range matched {
			out[i] = p.project(r)
		}
	}

	keys := p.sortKeys()
	sort.SliceStable(out, func(i, j int) bool {
		return lessByKeys(out[i], out[j], keys)
	})

	if p.Partitioned() {
		out = p.applyPartition(out)
	}
	return out
}

// EvaluateOne returns the row whose primary key equals id.
func EvaluateOne(s *schema.Schema, rows []Row, id interface{}) (Row, bool) {
	key := s.Key()
	want, err := key.Coerce(id)
	if err != nil {
		return nil, false
	}
	for _, r := range rows {
		if v := r[key.Name]; v != nil && compareValues(v, want) == 0 {
			out := make(Row, len(r))
			for _, f := range s.Fields() {
				out[f.Name] = r[f.Name]
			}
			return out, true
		}
	}
	return nil, false
}

func (p *Plan) project(r Row) Row {
	out := make(Row, len(p.columns))
	for _, c := range p.columns {
		out[c.Name] = r[c.Name]
	}
	return out
}

func lessByKeys(a, b Row, keys []sortKey) bool {
	for _, k := range keys {
		cmp := compareValues(a[k.column], b[k.column])
		if cmp == 0 {
			continue
		}
		if k.descending {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

// Condition evaluation

func matchCondition(c condition, r Row) bool {
	switch n := c.(type) {
	case nil:
		return true
	case *branchCondition:
		if n.kind == Or {
			for _, child := range n.children {
				if matchCondition(child, r) {
					return true
				}
			}
			return false
		}
		for _, child := range n.children {
			if !matchCondition(child, r) {
				return false
			}
		}
		return true
	case *leafCondition:
		return matchLeaf(n, r[n.field.Name])
	}
	return false
}

func matchLeaf(l *leafCondition, v interface{}) bool {
	switch l.op {
	case OpIsNull:
		return isNullValue(v)
	case OpIsNotNull:
		return !isNullValue(v)
	}
	if isNullValue(v) {
		return false
	}

	switch l.op {
	case OpEq:
		return compareValues(v, l.value) == 0
	case OpGte:
		return compareValues(v, l.value) >= 0
	case OpLte:
		return compareValues(v, l.value) <= 0
	case OpIn:
		for _, want := range l.values {
			if compareValues(v, want) == 0 {
				return true
			}
		}
		return false
	case OpContains:
		members, ok := jsonArray(v)
		if !ok {
			return false
		}
		for _, m := range members {
			if m == nil {
				continue
			}
			got := formatScalar(m)
			for _, want := range l.values {
				if got == want {
					return true
				}
			}
		}
		return false
	}
	return false
}

func isNullValue(v interface{}) bool {
	if v == nil {
		return true
	}
	switch vv := v.(type) {
	case []interface{}:
		return vv == nil
	case json.RawMessage:
		return vv == nil || string(vv) == "null"
	}
	return false
}

// jsonArray decodes a JSON array column value.
func jsonArray(v interface{}) ([]interface{}, bool) {
	switch vv := v.(type) {
	case []interface{}:
		return vv, true
	case []string:
		out := make([]interface{}, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	case string:
		return decodeJSONArray([]byte(vv))
	case []byte:
		return decodeJSONArray(vv)
	case json.RawMessage:
		return decodeJSONArray(vv)
	}
	return nil, false
}

func decodeJSONArray(b []byte) ([]interface{}, bool) {
	var arr []interface{}
	if err := json.Unmarshal(b, &arr); err != nil || arr == nil {
		return nil, false
	}
	return arr, true
}

// Grouping and aggregation

type rowGroup struct {
	values Row
	rows   []Row
}

func (p *Plan) groupRows(rows []Row) []Row {
	if len(p.groupBy) == 0 {
		// Aggregates over the whole filtered set yield one row, even when empty.
		return []Row{p.aggregateGroup(&rowGroup{values: Row{}, rows: rows})}
	}

	groups := make(map[string]*rowGroup)
	var order []string
	for _, r := range rows {
		key, values := p.groupKey(r)
		g, ok := groups[key]
		if !ok {
			g = &rowGroup{values: values}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}

	out := make([]Row, 0, len(order))
	for _, key := range order {
		out = append(out, p.aggregateGroup(groups[key]))
	}
	return out
}

func (p *Plan) groupKey(r Row) (string, Row) {
	var b strings.Builder
	values := make(Row, len(p.groupBy))
	for i, f := range p.groupBy {
		if i > 0 {
			b.WriteString("\x00||\x00")
		}
		v := r[f.Name]
		b.WriteString(fmt.Sprintf("%#v", v))
		values[f.Name] = v
	}
	return b.String(), values
}

func (p *Plan) aggregateGroup(g *rowGroup) Row {
	out := make(Row, len(p.columns))
	for k, v := range g.values {
		out[k] = v
	}
	for _, a := range p.aggregates {
		out[a.alias] = evaluateAggregate(a, g.rows)
	}
	return out
}

func evaluateAggregate(a aggregate, rows []Row) interface{} {
	var present []interface{}
	for _, r := range rows {
		if v := r[a.field.Name]; !isNullValue(v) {
			present = append(present, v)
		}
	}

	switch a.fn {
	case AggCount:
		return int64(len(present))
	case AggCountDistinct:
		seen := make(map[string]bool, len(present))
		for _, v := range present {
			seen[fmt.Sprintf("%#v", v)] = true
		}
		return int64(len(seen))
	}

	if len(present) == 0 {
		return nil
	}

	switch a.fn {
	case AggSum, AggAvg:
		var total float64
		var itotal int64
		for _, v := range present {
			n, _ := toNumber(v)
			total += n
			itotal += int64(n)
		}
		if a.fn == AggAvg {
			return total / float64(len(present))
		}
		if a.field.Type == schema.FieldTypeInteger {
			return itotal
		}
		return total
	case AggMin, AggMax:
		best := present[0]
		for _, v := range present[1:] {
			cmp := compareValues(v, best)
			if (a.fn == AggMin && cmp < 0) || (a.fn == AggMax && cmp > 0) {
				best = v
			}
		}
		return best
	}
	return nil
}

// Partitioning

// applyPartition expects rows already sorted by the plan's sort keys, which
// makes first-seen order within a partition the rank order.
func (p *Plan) applyPartition(rows []Row) []Row {
	type ranked struct {
		row  Row
		rank int
	}
	counts := make(map[string]int)
	kept := make([]ranked, 0, len(rows))
	for _, r := range rows {
		key := p.partitionKey(r)
		counts[key]++
		rank := counts[key]
		if p.size > 0 && rank > p.size {
			continue
		}
		kept = append(kept, ranked{row: r, rank: rank})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		for _, name := range p.partition {
			if cmp := compareValues(kept[i].row[name], kept[j].row[name]); cmp != 0 {
				return cmp < 0
			}
		}
		return kept[i].rank < kept[j].rank
	})

	out := make([]Row, len(kept))
	for i, k := range kept {
		out[i] = k.row
	}
	return out
}

func (p *Plan) partitionKey(r Row) string {
	var b strings.Builder
	for i, name := range p.partition {
		if i > 0 {
			b.WriteString("\x00||\x00")
		}
		b.WriteString(fmt.Sprintf("%#v", r[name]))
	}
	return b.String()
}
