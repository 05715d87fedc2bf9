package memory

import "fmt"

// Metadata is the caller-supplied side payload attached to an upserted
// record. Values may be string, int, float64, bool, or []string; anything
// else is stringified via fmt.Sprintf("%v"), and nil values are dropped
// entirely.
type Metadata map[string]any

// clean returns a copy of m with nil entries removed and every remaining
// value coerced to a primitive, a []string, or a string.
func (m Metadata) clean() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		switch val := v.(type) {
		case string, int, int64, float32, float64, bool:
			out[k] = val
		case []string:
			out[k] = val
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// stringValue returns m[key] as a string, or "" if absent or not a string.
func stringValue(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// floatValue returns m[key] as a float64, defaulting to def when absent,
// nil, zero, or not numeric — mirroring Python's `float(md.get(k, def) or
// def)` pattern that treats a stored zero the same as "missing".
func floatValue(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return def
	}
	if f == 0 {
		return def
	}
	return f
}
