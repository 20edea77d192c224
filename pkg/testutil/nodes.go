package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

// PassthroughTrigger copies the raw payload into the envelope.
type PassthroughTrigger struct {
	NodeName string
}

func (t *PassthroughTrigger) Name() string        { return t.NodeName }
func (t *PassthroughTrigger) Description() string { return "test trigger" }

func (t *PassthroughTrigger) ValidatePayload(_ context.Context, raw map[string]any) (*models.Message, error) {
	payload := make(map[string]any, len(raw))
	for k, v := range raw {
		payload[k] = v
	}

	return models.NewMessage(payload, map[string]any{
		"triggerId": t.NodeName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}), nil
}

// RejectingTrigger fails every payload.
type RejectingTrigger struct{}

func (RejectingTrigger) Name() string        { return "RejectingTrigger" }
func (RejectingTrigger) Description() string { return "always rejects" }

func (RejectingTrigger) ValidatePayload(context.Context, map[string]any) (*models.Message, error) {
	return nil, errors.New("payload rejected")
}

// FuncAction runs Fn on every Execute.
type FuncAction struct {
	NodeName string
	Fn       func(ctx context.Context, msg *models.Message) (*models.Message, error)
}

func (a *FuncAction) Name() string        { return a.NodeName }
func (a *FuncAction) Description() string { return "test action" }

func (a *FuncAction) Execute(ctx context.Context, msg *models.Message) (*models.Message, error) {
	return a.Fn(ctx, msg)
}

// FailingAction always returns Err.
func FailingAction(name string, err error) *FuncAction {
	return &FuncAction{
		NodeName: name,
		Fn: func(context.Context, *models.Message) (*models.Message, error) {
			return nil, err
		},
	}
}

// CaptureLogger records a clone of every message it receives.
type CaptureLogger struct {
	NodeName string
	Err      error

	mu       sync.Mutex
	messages []*models.Message
}

func (l *CaptureLogger) Name() string        { return l.NodeName }
func (l *CaptureLogger) Description() string { return "captures messages" }

func (l *CaptureLogger) Execute(_ context.Context, msg *models.Message) (*models.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg.Clone())

	return msg, l.Err
}

func (l *CaptureLogger) Messages() []*models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*models.Message, len(l.messages))
	copy(out, l.messages)

	return out
}

// Constructor returns a constructor that always yields node.
func Constructor(node protocol.Node) protocol.Constructor {
	return func(map[string]any) (protocol.Node, error) {
		return node, nil
	}
}

// ParamsRecorder wraps a constructor and records the params it is called with.
type ParamsRecorder struct {
	mu     sync.Mutex
	params []map[string]any
}

func (r *ParamsRecorder) Wrap(ctor protocol.Constructor) protocol.Constructor {
	return func(params map[string]any) (protocol.Node, error) {
		r.mu.Lock()
		r.params = append(r.params, params)
		r.mu.Unlock()

		return ctor(params)
	}
}

func (r *ParamsRecorder) Params() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]map[string]any, len(r.params))
	copy(out, r.params)

	return out
}
