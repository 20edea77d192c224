package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
)

const (
	HTTPRequestActionName = "HTTPRequestAction"
	defaultResultKey      = "response"
	defaultTimeoutSeconds = 30

	// defaultMaxResponseBytes caps how much of a response body is read into
	// the payload unless the node sets maxResponseBytes.
	defaultMaxResponseBytes = 10 << 20
)

var ErrResponseTooLarge = errors.New("response body exceeds the size limit")

// HTTPError is returned for responses outside the 2xx range.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

type httpRequestConfig struct {
	URL        string
	Method     string
	Headers    map[string]string
	Body       string
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
	ResultKey  string
	MaxBytes   int64
}

// HTTPRequestAction calls an external endpoint and stores the response under
// the configured result key of the payload.
type HTTPRequestAction struct {
	config httpRequestConfig
	client *http.Client
}

func NewHTTPRequestActionConstructor(client *http.Client) protocol.Constructor {
	return func(p map[string]any) (protocol.Node, error) {
		return NewHTTPRequestAction(client, p)
	}
}

func NewHTTPRequestAction(client *http.Client, p map[string]any) (*HTTPRequestAction, error) {
	url, err := params.RequiredString(p, "url")
	if err != nil {
		return nil, err
	}

	timeout, err := params.Int(p, "timeout", defaultTimeoutSeconds)
	if err != nil {
		return nil, err
	}

	attempts, err := params.Int(p, "retries", 1)
	if err != nil {
		return nil, err
	}

	delay, err := params.Int(p, "retryDelay", 0)
	if err != nil {
		return nil, err
	}

	maxBytes, err := params.Int(p, "maxResponseBytes", defaultMaxResponseBytes)
	if err != nil {
		return nil, err
	}

	if maxBytes <= 0 {
		return nil, fmt.Errorf("maxResponseBytes must be positive, got %d", maxBytes)
	}

	config := httpRequestConfig{
		URL:        url,
		Method:     strings.ToUpper(params.String(p, "method", http.MethodGet)),
		Headers:    params.StringMap(p, "headers"),
		Body:       bodyParam(p["body"]),
		Timeout:    time.Duration(timeout) * time.Second,
		Attempts:   max(attempts, 1),
		RetryDelay: time.Duration(delay) * time.Millisecond,
		ResultKey:  params.String(p, "resultKey", defaultResultKey),
		MaxBytes:   int64(maxBytes),
	}

	if client == nil {
		client = &http.Client{}
	}

	return &HTTPRequestAction{config: config, client: client}, nil
}

// bodyParam accepts a raw string or an object that is sent as JSON.
func bodyParam(v any) string {
	switch body := v.(type) {
	case nil:
		return ""
	case string:
		return body
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Sprint(body)
		}

		return string(b)
	}
}

func (a *HTTPRequestAction) Name() string { return HTTPRequestActionName }

func (a *HTTPRequestAction) Description() string {
	return "Performs an HTTP request and stores the response in the payload"
}

// Execute retries network errors and 5xx responses; 4xx responses fail at once.
func (a *HTTPRequestAction) Execute(ctx context.Context, msg *models.Message) (*models.Message, error) {
	var lastErr error

	for attempt := 1; attempt <= a.config.Attempts; attempt++ {
		if attempt > 1 && a.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.config.RetryDelay):
			}
		}

		result, err := a.perform(ctx)
		if err == nil {
			out := msg.Clone()
			if out == nil {
				out = models.NewMessage(nil, nil)
			}

			out.Payload[a.config.ResultKey] = result

			return out, nil
		}

		lastErr = err

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
			break
		}

		if errors.Is(err, ErrResponseTooLarge) {
			break
		}
	}

	return nil, fmt.Errorf("%s %s failed: %w", a.config.Method, a.config.URL, lastErr)
}

func (a *HTTPRequestAction) perform(ctx context.Context) (map[string]any, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if a.config.Body != "" {
		reqBody = strings.NewReader(a.config.Body)
	}

	req, err := http.NewRequestWithContext(ctx, a.config.Method, a.config.URL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range a.config.Headers {
		req.Header.Set(key, value)
	}

	if a.config.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, a.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	tooLarge := int64(len(respBody)) > a.config.MaxBytes
	if tooLarge {
		respBody = respBody[:a.config.MaxBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if tooLarge {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, a.config.MaxBytes)
	}

	headers := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	result := map[string]any{
		"statusCode": resp.StatusCode,
		"headers":    headers,
		"body":       string(respBody),
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err == nil {
		result["json"] = decoded
	}

	return result, nil
}
