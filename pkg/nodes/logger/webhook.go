package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
)

const WebhookLoggerName = "WebhookLogger"

// WebhookLogger POSTs the envelope as JSON to a URL.
type WebhookLogger struct {
	client  *http.Client
	url     string
	headers map[string]string
	timeout time.Duration
}

func NewWebhookLoggerConstructor(client *http.Client) protocol.Constructor {
	if client == nil {
		client = &http.Client{}
	}

	return func(p map[string]any) (protocol.Node, error) {
		url, err := params.RequiredString(p, "url")
		if err != nil {
			return nil, err
		}

		timeout, err := params.Int(p, "timeout", 10)
		if err != nil {
			return nil, err
		}

		return &WebhookLogger{
			client:  client,
			url:     url,
			headers: params.StringMap(p, "headers"),
			timeout: time.Duration(timeout) * time.Second,
		}, nil
	}
}

func (l *WebhookLogger) Name() string        { return WebhookLoggerName }
func (l *WebhookLogger) Description() string { return "Posts the payload to a webhook URL" }

func (l *WebhookLogger) Execute(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return nil, nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range l.headers {
		req.Header.Set(key, value)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, respBody)
	}

	return msg, nil
}
