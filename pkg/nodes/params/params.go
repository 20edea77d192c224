// Package params reads typed values out of node construction params.
package params

import (
	"fmt"
	"strconv"
	"strings"
)

// String returns params[key] as a string, or def when absent or empty.
func String(params map[string]any, key, def string) string {
	switch v := params[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case fmt.Stringer:
		return v.String()
	case nil:
	default:
		return fmt.Sprint(v)
	}

	return def
}

// RequiredString returns params[key] or an error when it is missing or blank.
func RequiredString(params map[string]any, key string) (string, error) {
	v := strings.TrimSpace(String(params, key, ""))
	if v == "" {
		return "", fmt.Errorf("missing required param %q", key)
	}

	return v, nil
}

// Int accepts JSON numbers and numeric strings, since substituted params
// arrive as strings.
func Int(params map[string]any, key string, def int) (int, error) {
	switch v := params[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("param %q: unsupported type %T", key, v)
	}
}

func Bool(params map[string]any, key string, def bool) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}

		return b
	default:
		return def
	}
}

// StringMap keeps only the string-valued entries of a nested object param.
func StringMap(params map[string]any, key string) map[string]string {
	out := map[string]string{}

	switch v := params[key].(type) {
	case map[string]any:
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
	case map[string]string:
		for k, val := range v {
			out[k] = val
		}
	}

	return out
}

// Strings accepts a JSON array of strings or a comma separated string.
func Strings(params map[string]any, key string) []string {
	var out []string

	switch v := params[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}

	return out
}
