package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
)

// normalizeRow converts driver values into the engine's canonical
// representation so that every store returns identical rows: int64 for
// integers, float64 for floats, bool, string, and decoded JSON.
func normalizeRow(raw map[string]interface{}, columns []query.Column) query.Row {
	out := make(query.Row, len(columns))
	for _, c := range columns {
		out[c.Name] = normalizeValue(c.Type, raw[c.Name])
	}
	return out
}

func normalizeValue(t schema.FieldType, v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}

	switch t {
	case schema.FieldTypeInteger:
		switch n := v.(type) {
		case int64:
			return n
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case float64:
			if n == float64(int64(n)) {
				return int64(n)
			}
			return n
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil && f == float64(int64(f)) {
				return int64(f)
			}
		}
	case schema.FieldTypeFloat:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int64:
			return float64(n)
		case int:
			return float64(n)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
	case schema.FieldTypeBool:
		switch b := v.(type) {
		case bool:
			return b
		case int64:
			return b != 0
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	case schema.FieldTypeJSONArray:
		if s, ok := v.(string); ok {
			var decoded interface{}
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return decoded
			}
		}
	case schema.FieldTypeText:
		switch s := v.(type) {
		case string:
			return s
		case fmt.Stringer:
			return s.String()
		}
	}
	return v
}
