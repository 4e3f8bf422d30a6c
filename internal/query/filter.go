package query

import (
	"fmt"
	"strings"

	"github.com/gltg/bmp-api/internal/schema"
)

// Operator is a comparison operator in a filter leaf.
type Operator string

const (
	OpEq        Operator = "eq"
	OpIn        Operator = "in"
	OpGte       Operator = "gte"
	OpLte       Operator = "lte"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
	OpContains  Operator = "contains" // scalar is a member of a JSON array column
)

var operatorAliases = map[string]Operator{
	"eq": OpEq, "==": OpEq, "=": OpEq, "__eq__": OpEq,
	"in": OpIn, "in_": OpIn,
	"gte": OpGte, ">=": OpGte, "__ge__": OpGte,
	"lte": OpLte, "<=": OpLte, "__le__": OpLte,
	"is_null": OpIsNull, "is": OpIsNull, "is_": OpIsNull,
	"is_not_null": OpIsNotNull, "isnot": OpIsNotNull, "is_not": OpIsNotNull,
	"contains": OpContains, "__in__": OpContains,
}

// ParseOperator resolves an operator name or one of its spellings.
func ParseOperator(s string) (Operator, bool) {
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]
	return op, ok
}

// IsNullCheck reports whether the operator takes no value.
func (op Operator) IsNullCheck() bool {
	return op == OpIsNull || op == OpIsNotNull
}

// Supports reports whether op is legal for fields of type t.
func (op Operator) Supports(t schema.FieldType) bool {
	switch op {
	case OpIsNull, OpIsNotNull:
		return true
	case OpEq:
		return t != schema.FieldTypeJSONArray
	case OpIn:
		return t == schema.FieldTypeText || t.IsNumeric()
	case OpGte, OpLte:
		return t.IsNumeric()
	case OpContains:
		return t == schema.FieldTypeJSONArray
	}
	return false
}

// CombinatorKind selects how a Combinator folds its children.
type CombinatorKind int

const (
	And CombinatorKind = iota
	Or
)

func (k CombinatorKind) String() string {
	switch k {
	case And:
		return "AND"
	case Or:
		return "OR"
	}
	return fmt.Sprintf("CombinatorKind(%d)", int(k))
}

// Filter is a node in a filter expression tree: either a Comparison leaf or
// a Combinator over child filters.
type Filter interface {
	filterNode()
}

// Comparison is a (field, operator, value) leaf.
type Comparison struct {
	Field string
	Op    Operator
	Value interface{}
}

func (Comparison) filterNode() {}

// Combinator folds its children with AND or OR. Children must be non-empty.
type Combinator struct {
	Kind     CombinatorKind
	Children []Filter
}

func (Combinator) filterNode() {}

// Compare builds a comparison leaf.
func Compare(field string, op Operator, value interface{}) Comparison {
	return Comparison{Field: field, Op: op, Value: value}
}

// IsNull builds an is-null leaf.
func IsNull(field string) Comparison {
	return Comparison{Field: field, Op: OpIsNull}
}

// IsNotNull builds an is-not-null leaf.
func IsNotNull(field string) Comparison {
	return Comparison{Field: field, Op: OpIsNotNull}
}

// AllOf combines children with AND.
func AllOf(children ...Filter) Combinator {
	return Combinator{Kind: And, Children: children}
}

// AnyOf combines children with OR.
func AnyOf(children ...Filter) Combinator {
	return Combinator{Kind: Or, Children: children}
}
