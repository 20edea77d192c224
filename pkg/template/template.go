// Package template resolves {{a.b.c}} placeholders against a message payload.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolve walks a dotted path through nested maps (and slices, by index).
// The boolean is false when any segment is missing.
func Resolve(path string, data map[string]any) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}

			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}

			current = v[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

// Substitute replaces every placeholder in s whose path resolves against data.
// Unresolved placeholders are left as written.
func Substitute(s string, data map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholder.FindStringSubmatch(match)[1]

		value, ok := Resolve(path, data)
		if !ok {
			return match
		}

		return Stringify(value)
	})
}

// SubstituteValue applies Substitute to every string reachable from v,
// descending into maps and slices. Other scalars are returned unchanged.
func SubstituteValue(v any, data map[string]any) any {
	switch val := v.(type) {
	case string:
		return Substitute(val, data)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = SubstituteValue(item, data)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SubstituteValue(item, data)
		}

		return out
	default:
		return v
	}
}

// SubstituteParams returns a copy of params with all placeholders resolved.
func SubstituteParams(params map[string]any, data map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}

	out, _ := SubstituteValue(params, data).(map[string]any)

	return out
}

// Stringify renders a resolved value the way it appears inside a string.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}

		return string(b)
	}
}
