package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	p := map[string]any{"a": "x", "empty": "", "n": 3.5}

	assert.Equal(t, "x", String(p, "a", "d"))
	assert.Equal(t, "d", String(p, "empty", "d"))
	assert.Equal(t, "d", String(p, "missing", "d"))
	assert.Equal(t, "3.5", String(p, "n", "d"))
}

func TestRequiredString(t *testing.T) {
	_, err := RequiredString(map[string]any{"url": "  "}, "url")
	require.Error(t, err)

	v, err := RequiredString(map[string]any{"url": "http://x"}, "url")
	require.NoError(t, err)
	assert.Equal(t, "http://x", v)
}

func TestInt(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"missing", nil, 9, false},
		{"float", 30.0, 30, false},
		{"string", " 12 ", 12, false},
		{"blank string", "", 9, false},
		{"bad string", "abc", 0, true},
		{"bad type", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Int(map[string]any{"k": tt.value}, "k", 9)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoolStringMapStrings(t *testing.T) {
	p := map[string]any{
		"b":       "true",
		"headers": map[string]any{"A": "1", "B": 2},
		"list":    []any{"x", "", "y", 3},
		"csv":     "a, b,,c",
	}

	assert.True(t, Bool(p, "b", false))
	assert.True(t, Bool(p, "missing", true))
	assert.Equal(t, map[string]string{"A": "1"}, StringMap(p, "headers"))
	assert.Equal(t, []string{"x", "y"}, Strings(p, "list"))
	assert.Equal(t, []string{"a", "b", "c"}, Strings(p, "csv"))
}
