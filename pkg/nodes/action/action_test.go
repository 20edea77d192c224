package action

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

func TestEchoAction(t *testing.T) {
	node, err := NewEchoAction(nil)
	require.NoError(t, err)

	action, ok := node.(protocol.ActionNode)
	require.True(t, ok)

	in := models.NewMessage(map[string]any{"value": 7}, map[string]any{"triggerId": "t"})
	out, err := action.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, in.Payload, out.Payload)
	assert.Equal(t, in.Metadata, out.Metadata)

	out, err = action.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Payload)
}

func TestHTTPRequestAction_Success(t *testing.T) {
	var gotBody, gotHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Get("X-Api-Key")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	action, err := NewHTTPRequestAction(server.Client(), map[string]any{
		"url":       server.URL,
		"method":    "post",
		"headers":   map[string]any{"X-Api-Key": "secret"},
		"body":      map[string]any{"amount": 42.0},
		"resultKey": "api",
	})
	require.NoError(t, err)

	out, err := action.Execute(context.Background(), models.NewMessage(map[string]any{"keep": true}, nil))
	require.NoError(t, err)

	assert.JSONEq(t, `{"amount":42}`, gotBody)
	assert.Equal(t, "secret", gotHeader)
	assert.Equal(t, true, out.Payload["keep"])

	result, ok := out.Payload["api"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, result["statusCode"])
	assert.Equal(t, map[string]any{"status": "ok"}, result["json"])
}

func TestHTTPRequestAction_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	action, err := NewHTTPRequestAction(server.Client(), map[string]any{"url": server.URL, "retries": 3.0})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.NewMessage(nil, nil))
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPRequestAction_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte("done"))
	}))
	defer server.Close()

	action, err := NewHTTPRequestAction(server.Client(), map[string]any{"url": server.URL, "retries": "3"})
	require.NoError(t, err)

	out, err := action.Execute(context.Background(), models.NewMessage(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "done", out.Payload[defaultResultKey].(map[string]any)["body"])
}

func TestHTTPRequestAction_ResponseSizeLimit(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadRequest)
		}

		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	action, err := NewHTTPRequestAction(server.Client(), map[string]any{
		"url": server.URL, "retries": 3, "maxResponseBytes": 16,
	})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.NewMessage(nil, nil))
	require.ErrorIs(t, err, ErrResponseTooLarge)
	assert.Equal(t, int32(1), calls.Load(), "oversized responses are not retried")

	action, err = NewHTTPRequestAction(server.Client(), map[string]any{
		"url": server.URL + "/fail", "maxResponseBytes": 16,
	})
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), models.NewMessage(nil, nil))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, strings.Repeat("x", 16), httpErr.Body)

	action, err = NewHTTPRequestAction(server.Client(), map[string]any{"url": server.URL, "maxResponseBytes": 64})
	require.NoError(t, err)

	out, err := action.Execute(context.Background(), models.NewMessage(nil, nil))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 64), out.Payload[defaultResultKey].(map[string]any)["body"])

	_, err = NewHTTPRequestAction(nil, map[string]any{"url": server.URL, "maxResponseBytes": 0})
	require.Error(t, err)
}

func TestHTTPRequestAction_RequiresURL(t *testing.T) {
	_, err := NewHTTPRequestActionConstructor(nil)(map[string]any{})
	require.Error(t, err)
}

func TestTransformAction(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		payload map[string]any
		want    map[string]any
	}{
		{
			name:    "object replaces payload",
			params:  map[string]any{"expression": "{total: (.a + .b)}"},
			payload: map[string]any{"a": 1, "b": 2},
			want:    map[string]any{"total": 3.0},
		},
		{
			name:    "scalar stored under result",
			params:  map[string]any{"expression": ".items | length"},
			payload: map[string]any{"items": []any{1, 2, 3}},
			want:    map[string]any{"items": []any{1, 2, 3}, "result": 3},
		},
		{
			name:    "target key",
			params:  map[string]any{"expression": "[.items[] | select(. > 1)]", "target": "big"},
			payload: map[string]any{"items": []any{1, 2, 3}},
			want:    map[string]any{"items": []any{1, 2, 3}, "big": []any{2.0, 3.0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewTransformAction(tt.params)
			require.NoError(t, err)

			out, err := node.(protocol.ActionNode).Execute(context.Background(), models.NewMessage(tt.payload, nil))
			require.NoError(t, err)

			want, _ := json.Marshal(tt.want)
			got, _ := json.Marshal(out.Payload)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

func TestTransformAction_Errors(t *testing.T) {
	_, err := NewTransformAction(map[string]any{})
	require.Error(t, err)

	_, err = NewTransformAction(map[string]any{"expression": ".a |"})
	require.Error(t, err)

	node, err := NewTransformAction(map[string]any{"expression": `error("boom")`})
	require.NoError(t, err)

	_, err = node.(protocol.ActionNode).Execute(context.Background(), models.NewMessage(nil, nil))
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestConditionAction(t *testing.T) {
	payload := map[string]any{"status": "active", "count": 3, "tags": []any{}, "label": ""}

	tests := []struct {
		name      string
		condition string
		holds     bool
	}{
		{"equality holds", `.status == "active"`, true},
		{"equality fails", `.status == "paused"`, false},
		{"positive number is true", ".count", true},
		{"zero is false", ".count - 3", false},
		{"non-empty string is true", ".status", true},
		{"empty string is false", ".label", false},
		{"empty array is false", ".tags", false},
		{"missing key is false", ".missing", false},
		{"string boolean", `"false"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewConditionAction(map[string]any{"condition": tt.condition})
			require.NoError(t, err)

			out, err := node.(protocol.ActionNode).Execute(context.Background(), models.NewMessage(payload, nil))
			if !tt.holds {
				require.ErrorIs(t, err, ErrConditionFalse)
				assert.Nil(t, out)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, true, out.Payload["conditionResult"])
			assert.Equal(t, "active", out.Payload["status"])
		})
	}
}

func TestConditionAction_InvalidConfig(t *testing.T) {
	_, err := NewConditionAction(map[string]any{})
	require.Error(t, err)

	_, err = NewConditionAction(map[string]any{"condition": ".a |"})
	require.Error(t, err)

	node, err := NewConditionAction(map[string]any{"condition": ".a.b"})
	require.NoError(t, err)

	_, err = node.(protocol.ActionNode).Execute(context.Background(), models.NewMessage(map[string]any{"a": "text"}, nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConditionFalse)
}
