package query

import (
	"fmt"

	"github.com/gltg/bmp-api/internal/schema"
)

const maxFilterDepth = 64

// condition is a filter tree that has been checked against a schema. Leaves
// carry the resolved field and values coerced to the field's type.
type condition interface {
	conditionNode()
}

type leafCondition struct {
	field  schema.Field
	op     Operator
	value  interface{}   // eq, gte, lte
	values []interface{} // in, contains
}

func (*leafCondition) conditionNode() {}

type branchCondition struct {
	kind     CombinatorKind
	children []condition
}

func (*branchCondition) conditionNode() {}

// compileFilter validates f against s. A nil filter compiles to a nil
// condition, which matches every row.
func compileFilter(s *schema.Schema, f Filter) (condition, error) {
	if f == nil {
		return nil, nil
	}
	return compileNode(s, f, 0)
}

func compileNode(s *schema.Schema, f Filter, depth int) (condition, error) {
	if depth > maxFilterDepth {
		return nil, &MalformedFilterError{Reason: fmt.Sprintf("nesting deeper than %d levels", maxFilterDepth)}
	}

	switch n := f.(type) {
	case Comparison:
		return compileComparison(s, n)
	case *Comparison:
		if n == nil {
			return nil, &MalformedFilterError{Reason: "nil comparison"}
		}
		return compileComparison(s, *n)
	case Combinator:
		return compileCombinator(s, n, depth)
	case *Combinator:
		if n == nil {
			return nil, &MalformedFilterError{Reason: "nil combinator"}
		}
		return compileCombinator(s, *n, depth)
	case nil:
		return nil, &MalformedFilterError{Reason: "nil child filter"}
	default:
		return nil, &MalformedFilterError{Reason: fmt.Sprintf("unsupported filter node %T", f)}
	}
}

func compileCombinator(s *schema.Schema, c Combinator, depth int) (condition, error) {
	if c.Kind != And && c.Kind != Or {
		return nil, &MalformedFilterError{Reason: fmt.Sprintf("unknown combinator %s", c.Kind)}
	}
	if len(c.Children) == 0 {
		return nil, &MalformedFilterError{Reason: fmt.Sprintf("%s with no children", c.Kind)}
	}
	out := &branchCondition{kind: c.Kind, children: make([]condition, 0, len(c.Children))}
	for _, child := range c.Children {
		compiled, err := compileNode(s, child, depth+1)
		if err != nil {
			return nil, err
		}
		out.children = append(out.children, compiled)
	}
	return out, nil
}

func compileComparison(s *schema.Schema, c Comparison) (condition, error) {
	field, err := s.Resolve(c.Field)
	if err != nil {
		return nil, err
	}
	op, ok := ParseOperator(string(c.Op))
	if !ok {
		return nil, &UnsupportedOperatorError{Field: c.Field, Operator: c.Op}
	}
	if !op.Supports(field.Type) {
		return nil, &UnsupportedOperatorError{Field: c.Field, Operator: op, Type: field.Type}
	}

	leaf := &leafCondition{field: field, op: op}
	if op.IsNullCheck() {
		return leaf, nil
	}
	if c.Value == nil {
		return nil, &MalformedFilterError{Reason: fmt.Sprintf("%s %s requires a value", c.Field, op)}
	}

	switch op {
	case OpIn, OpContains:
		items, err := listValues(c.Value)
		if err != nil {
			return nil, &MalformedFilterError{Reason: fmt.Sprintf("%s %s: %v", c.Field, op, err)}
		}
		if op == OpContains && len(items) == 0 {
			return nil, &MalformedFilterError{Reason: fmt.Sprintf("%s contains requires at least one value", c.Field)}
		}
		member := field
		if op == OpContains {
			member = schema.Text(field.Name)
		}
		leaf.values = make([]interface{}, 0, len(items))
		for _, item := range items {
			if item == nil {
				return nil, &MalformedFilterError{Reason: fmt.Sprintf("%s %s: null list element", c.Field, op)}
			}
			v, err := member.Coerce(item)
			if err != nil {
				return nil, &MalformedFilterError{Reason: err.Error()}
			}
			leaf.values = append(leaf.values, v)
		}
	default:
		v, err := field.Coerce(c.Value)
		if err != nil {
			return nil, &MalformedFilterError{Reason: err.Error()}
		}
		leaf.value = v
	}
	return leaf, nil
}

// listValues accepts a scalar or a slice of scalars.
func listValues(v interface{}) ([]interface{}, error) {
	switch vv := v.(type) {
	case []interface{}:
		return vv, nil
	case []string:
		out := make([]interface{}, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]interface{}, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]interface{}, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, nil
	case string, bool, int, int32, int64, float32, float64:
		return []interface{}{vv}, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}
