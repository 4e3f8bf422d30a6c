package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

type cmpKind int

const (
	cmpNil cmpKind = iota
	cmpBool
	cmpNumber
	cmpString
)

type cmpVal struct {
	kind cmpKind
	num  float64
	s    string
}

func normalizeForCompare(v interface{}) cmpVal {
	if v == nil {
		return cmpVal{kind: cmpNil}
	}

	if b, ok := v.(bool); ok {
		if b {
			return cmpVal{kind: cmpBool, num: 1}
		}
		return cmpVal{kind: cmpBool}
	}
	if n, ok := toNumber(v); ok {
		return cmpVal{kind: cmpNumber, num: n}
	}
	if s, ok := v.(string); ok {
		return cmpVal{kind: cmpString, s: s}
	}

	return cmpVal{kind: cmpString, s: fmt.Sprint(v)}
}

// compareValues orders two row values. nil sorts before everything, numbers
// compare numerically, everything else compares as strings.
func compareValues(a, b interface{}) int {
	av := normalizeForCompare(a)
	bv := normalizeForCompare(b)

	if av.kind == cmpNil && bv.kind == cmpNil {
		return 0
	}
	if av.kind == cmpNil {
		return -1
	}
	if bv.kind == cmpNil {
		return 1
	}

	if (av.kind == cmpNumber || av.kind == cmpBool) && (bv.kind == cmpNumber || bv.kind == cmpBool) {
		switch {
		case av.num < bv.num:
			return -1
		case av.num > bv.num:
			return 1
		default:
			return 0
		}
	}

	as, bs := av.s, bv.s
	if av.kind != cmpString {
		as = formatScalar(a)
	}
	if bv.kind != cmpString {
		bs = formatScalar(b)
	}
	return strings.Compare(as, bs)
}

// formatScalar renders a value the way a JSON array member is compared.
func formatScalar(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}
