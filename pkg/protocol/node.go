// Package protocol defines the capability contracts every node implements.
package protocol

import (
	"context"

	"github.com/deflow/deflow/pkg/models"
)

// Node is the common surface of every node instance.
type Node interface {
	Name() string
	Description() string
}

// Constructor builds a node instance from its (already substituted) params.
type Constructor func(params map[string]any) (Node, error)

// TriggerNode turns a raw external payload into the initial envelope of a run.
type TriggerNode interface {
	Node
	ValidatePayload(ctx context.Context, raw map[string]any) (*models.Message, error)
}

// ActionNode transforms the envelope. A returned error routes the run to the
// node's error flow.
type ActionNode interface {
	Node
	Execute(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// LoggerNode is a terminal sink. Its return value is ignored by the interpreter.
type LoggerNode interface {
	Node
	Execute(ctx context.Context, msg *models.Message) (*models.Message, error)
}
