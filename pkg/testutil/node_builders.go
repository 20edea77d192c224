// Package testutil provides test data builders and stub nodes for testing.
package testutil

import (
	"github.com/deflow/deflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates an Action FlowNode with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.FlowNode)) *models.FlowNode {
	node := &models.FlowNode{
		ID:          uuid.New().String(),
		FlowID:      "flow-1",
		Category:    models.CategoryTypeAction,
		Name:        "EchoAction",
		Description: "Test Node",
		X:           100,
		Y:           200,
		Params:      map[string]any{},
		SuccessFlow: []string{},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

func WithID(id string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.ID = id
	}
}

func WithFlow(flowID string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.FlowID = flowID
	}
}

// WithTrigger configures the node as a trigger node with the given registry name.
func WithTrigger(name string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Category = models.CategoryTypeTrigger
		n.Name = name
	}
}

func WithAction(name string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Category = models.CategoryTypeAction
		n.Name = name
	}
}

func WithLogger(name string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Category = models.CategoryTypeLogger
		n.Name = name
	}
}

func WithParams(params map[string]any) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Params = params
	}
}

func WithVariables(vars map[string]string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Variables = vars
	}
}

func WithSuccess(ids ...string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.SuccessFlow = ids
	}
}

func WithErrorFlow(ids ...string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.ErrorFlow = ids
	}
}
