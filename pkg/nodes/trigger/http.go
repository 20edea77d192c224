// Package trigger provides the built-in trigger nodes.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
)

const (
	HTTPTriggerName    = "HTTPTrigger"
	HTTPTriggerID      = "http-trigger"
	HTTPTriggerType    = "http"
	ParamRequireFields = "requiredFields"
)

// HTTPTrigger starts a flow from an inbound API call. The request body becomes
// the envelope payload.
type HTTPTrigger struct {
	requiredFields []string
}

func NewHTTPTrigger(p map[string]any) (protocol.Node, error) {
	return &HTTPTrigger{requiredFields: params.Strings(p, ParamRequireFields)}, nil
}

func (t *HTTPTrigger) Name() string { return HTTPTriggerName }

func (t *HTTPTrigger) Description() string {
	return "Starts the flow when its trigger endpoint is called"
}

// ValidatePayload rejects payloads missing any of the configured required fields.
func (t *HTTPTrigger) ValidatePayload(_ context.Context, raw map[string]any) (*models.Message, error) {
	for _, field := range t.requiredFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("payload is missing required field %q", field)
		}
	}

	payload := make(map[string]any, len(raw))
	for k, v := range raw {
		payload[k] = v
	}

	return models.NewMessage(payload, triggerMetadata(HTTPTriggerID, HTTPTriggerType)), nil
}

func triggerMetadata(id, kind string) map[string]any {
	return map[string]any{
		"triggerId":   id,
		"triggerType": kind,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	}
}
