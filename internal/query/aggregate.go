package query

import (
	"strings"

	"github.com/gltg/bmp-api/internal/schema"
)

// AggregateFunc is one of the fixed aggregate functions.
type AggregateFunc string

const (
	AggCount         AggregateFunc = "count"
	AggCountDistinct AggregateFunc = "count_distinct"
	AggSum           AggregateFunc = "sum"
	AggAvg           AggregateFunc = "avg"
	AggMin           AggregateFunc = "min"
	AggMax           AggregateFunc = "max"
)

// AggregateFuncs lists the supported functions.
var AggregateFuncs = []AggregateFunc{AggCount, AggCountDistinct, AggSum, AggAvg, AggMin, AggMax}

func lookupAggregateFunc(name string) (AggregateFunc, bool) {
	for _, fn := range AggregateFuncs {
		if string(fn) == name {
			return fn, true
		}
	}
	return "", false
}

// supports reports whether fn is defined over fields of type t.
func (fn AggregateFunc) supports(t schema.FieldType) bool {
	switch fn {
	case AggCount, AggCountDistinct:
		return true
	case AggSum, AggAvg:
		return t.IsNumeric()
	case AggMin, AggMax:
		return t != schema.FieldTypeJSONArray && t != schema.FieldTypeBool
	}
	return false
}

// resultType is the value type of the aggregate's output column.
func (fn AggregateFunc) resultType(in schema.FieldType) schema.FieldType {
	switch fn {
	case AggCount, AggCountDistinct:
		return schema.FieldTypeInteger
	case AggAvg:
		return schema.FieldTypeFloat
	}
	return in
}

// AggregateSpec requests fn over Field. Alias defaults to "<field>-<func>".
type AggregateSpec struct {
	Field string
	Func  string
	Alias string
}

// OutputName returns the alias, or the default "<field>-<func>".
func (a AggregateSpec) OutputName() string {
	if a.Alias != "" {
		return a.Alias
	}
	return a.Field + "-" + a.Func
}

// ParseAggregate parses "<field>-<function>". The function is everything after
// the last hyphen.
func ParseAggregate(s string) (AggregateSpec, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return AggregateSpec{}, &UnsupportedAggregateError{Spec: s, Reason: `expected "<field>-<function>"`}
	}
	return AggregateSpec{Field: s[:i], Func: s[i+1:]}, nil
}

// ParseAggregates parses a list of "<field>-<function>" strings.
func ParseAggregates(specs []string) ([]AggregateSpec, error) {
	out := make([]AggregateSpec, 0, len(specs))
	for _, s := range specs {
		a, err := ParseAggregate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// aggregate is a resolved AggregateSpec.
type aggregate struct {
	field schema.Field
	fn    AggregateFunc
	alias string
}

func resolveAggregate(s *schema.Schema, spec AggregateSpec) (aggregate, error) {
	field, err := s.Resolve(spec.Field)
	if err != nil {
		return aggregate{}, err
	}
	fn, ok := lookupAggregateFunc(spec.Func)
	if !ok {
		return aggregate{}, &UnsupportedAggregateError{Spec: spec.Field + "-" + spec.Func, Function: spec.Func}
	}
	if !fn.supports(field.Type) {
		return aggregate{}, &UnsupportedAggregateError{
			Spec:   spec.Field + "-" + spec.Func,
			Reason: string(fn) + " is not defined for " + string(field.Type) + " fields",
		}
	}
	return aggregate{field: field, fn: fn, alias: spec.OutputName()}, nil
}
