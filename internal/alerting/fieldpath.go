package alerting

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Resolve walks a dot-separated path through nested maps. The second return
// is false when any segment is missing or an intermediate value is not a
// map; a present nil value resolves to (nil, true).
func Resolve(event map[string]any, path string) (any, bool) {
	if event == nil || path == "" {
		return nil, false
	}
	var current any = event
	for segment := range strings.SplitSeq(path, fieldPathSeparator) {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// Compare orders a against b and returns -1, 0 or 1. Two strings compare
// lexically, two numbers numerically and two booleans with false < true.
// Any other pairing compares the string forms of both operands. When
// caseSensitive is false, string comparisons use Unicode case folding.
func Compare(a, b any, caseSensitive bool) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return compareStrings(as, bs, caseSensitive)
		}
	}
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return compareStrings(stringify(a), stringify(b), caseSensitive)
}

func compareStrings(a, b string, caseSensitive bool) int {
	if !caseSensitive {
		a, b = fold(a), fold(b)
	}
	return strings.Compare(a, b)
}

// fold applies Unicode case folding. A Caser keeps state, so each call gets
// its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// toFloat64 converts numeric kinds only; strings are not parsed, so "10"
// and 10 are compared through their string forms.
func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// stringify renders a value for string comparison and templates. Whole
// floats print without an exponent or trailing zeros, composites as JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", t)
	}
}
