// Package action provides the built-in action nodes.
package action

import (
	"context"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

const EchoActionName = "EchoAction"

// EchoAction returns the envelope unchanged.
type EchoAction struct{}

func NewEchoAction(map[string]any) (protocol.Node, error) {
	return &EchoAction{}, nil
}

func (a *EchoAction) Name() string        { return EchoActionName }
func (a *EchoAction) Description() string { return "Passes the payload through unchanged" }

func (a *EchoAction) Execute(_ context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return models.NewMessage(nil, nil), nil
	}

	return msg.Clone(), nil
}
