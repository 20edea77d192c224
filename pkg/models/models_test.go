package models_test

import (
	"testing"

	"github.com/deflow/deflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_SetVariableCreatesContainers(t *testing.T) {
	t.Parallel()

	msg := &models.Message{}
	msg.SetVariable("user", "ana")

	require.NotNil(t, msg.Payload)
	assert.Equal(t, map[string]any{"user": "ana"}, msg.Variables())

	msg.SetVariable("id", "7")
	assert.Equal(t, map[string]any{"user": "ana", "id": "7"}, msg.Variables())
}

func TestMessage_SetVariableReplacesNonMapValue(t *testing.T) {
	t.Parallel()

	msg := models.NewMessage(map[string]any{"variables": "oops"}, nil)
	msg.SetVariable("a", "b")

	assert.Equal(t, map[string]any{"a": "b"}, msg.Variables())
}

func TestMessage_WithErrorKeepsPriorContent(t *testing.T) {
	t.Parallel()

	msg := models.NewMessage(map[string]any{"value": 7}, map[string]any{"triggerId": "http-trigger"})
	out := msg.WithError("EchoActionError", "boom")

	assert.Equal(t, 7, out.Payload["value"])
	assert.Equal(t, "boom", out.Payload["EchoActionError"])
	assert.Equal(t, "http-trigger", out.Metadata["triggerId"])
	assert.NotContains(t, msg.Payload, "EchoActionError", "original message untouched")
}

func TestMessage_CloneNil(t *testing.T) {
	t.Parallel()

	var msg *models.Message
	assert.Nil(t, msg.Clone())
	assert.Equal(t, "x", msg.WithError("k", "x").Payload["k"])
}

func TestFlowNode_RemoveSuccessor(t *testing.T) {
	t.Parallel()

	node := &models.FlowNode{
		SuccessFlow: []string{"a", "b", "a"},
		ErrorFlow:   []string{"b"},
	}

	assert.True(t, node.RemoveSuccessor("a"))
	assert.Equal(t, []string{"b"}, node.SuccessFlow)
	assert.Equal(t, []string{"b"}, node.ErrorFlow)

	assert.True(t, node.RemoveSuccessor("b"))
	assert.Empty(t, node.SuccessFlow)
	assert.Empty(t, node.ErrorFlow)

	assert.False(t, node.RemoveSuccessor("zzz"))
}

func TestCategoryType_IsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, models.CategoryTypeTrigger.IsValid())
	assert.True(t, models.CategoryTypeAction.IsValid())
	assert.True(t, models.CategoryTypeLogger.IsValid())
	assert.False(t, models.CategoryType("action").IsValid())
}

func TestPredefinedNode_ParamsSchema(t *testing.T) {
	t.Parallel()

	node := &models.PredefinedNode{
		RequiredParams: map[string]string{"url": "string", "retries": "number"},
	}

	schema := node.ParamsSchema()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"retries", "url"}, schema["required"])
	assert.Equal(t, map[string]any{"type": "string"}, schema["properties"].(map[string]any)["url"])
}

func TestTriggerConfig_TargetNodeID(t *testing.T) {
	t.Parallel()

	cfg := &models.TriggerConfig{TriggerID: "cron-1"}
	assert.Equal(t, "cron-1", cfg.TargetNodeID())

	cfg.NodeID = "node-9"
	assert.Equal(t, "node-9", cfg.TargetNodeID())
}

func TestPredefinedNode_ParamsSchemaUnknownType(t *testing.T) {
	t.Parallel()

	node := &models.PredefinedNode{RequiredParams: map[string]string{"payload": "any"}}

	schema := node.ParamsSchema()
	assert.Equal(t, map[string]any{}, schema["properties"].(map[string]any)["payload"])
	assert.Equal(t, []string{"payload"}, schema["required"])
}
