// Package events defines the flow execution and trigger lifecycle events.
package events

import (
	"time"
)

type EventType string

// Topic is the watermill topic all deflow events are published to.
const Topic = "deflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	FlowExecutionStartedEvent   EventType = "flow.execution.started"
	FlowExecutionCompletedEvent EventType = "flow.execution.completed"
	FlowExecutionFailedEvent    EventType = "flow.execution.failed"

	NodeExecutedEvent EventType = "node.executed"
	NodeFailedEvent   EventType = "node.failed"

	TriggerDeployedEvent   EventType = "trigger.deployed"
	TriggerUndeployedEvent EventType = "trigger.undeployed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	FlowID    string    `json:"flowId"`
}

func NewBaseEvent(id string, eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
	}
}

type FlowExecutionStarted struct {
	BaseEvent

	ExecutionID   string `json:"executionId"`
	TriggerNodeID string `json:"triggerNodeId"`
}

func (e FlowExecutionStarted) GetType() EventType {
	return FlowExecutionStartedEvent
}

type FlowExecutionCompleted struct {
	BaseEvent

	ExecutionID   string        `json:"executionId"`
	NodesExecuted int           `json:"nodesExecuted"`
	Duration      time.Duration `json:"duration"`
}

func (e FlowExecutionCompleted) GetType() EventType {
	return FlowExecutionCompletedEvent
}

type FlowExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"executionId"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e FlowExecutionFailed) GetType() EventType {
	return FlowExecutionFailedEvent
}

type NodeExecuted struct {
	BaseEvent

	ExecutionID string `json:"executionId"`
	NodeID      string `json:"nodeId"`
	NodeName    string `json:"nodeName"`
	Category    string `json:"category"`
	DurationMs  int64  `json:"durationMs"`
}

func (e NodeExecuted) GetType() EventType {
	return NodeExecutedEvent
}

// NodeFailed is emitted when an action fails and the run branches to the
// node's error flow.
type NodeFailed struct {
	BaseEvent

	ExecutionID string `json:"executionId"`
	NodeID      string `json:"nodeId"`
	NodeName    string `json:"nodeName"`
	Error       string `json:"error"`
	ErrorKey    string `json:"errorKey"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type TriggerDeployed struct {
	BaseEvent

	TriggerID string `json:"triggerId"`
	NodeID    string `json:"nodeId,omitempty"`
	JobName   string `json:"jobName"`
}

func (e TriggerDeployed) GetType() EventType {
	return TriggerDeployedEvent
}

type TriggerUndeployed struct {
	BaseEvent

	TriggerID string `json:"triggerId"`
	NodeID    string `json:"nodeId,omitempty"`
	JobName   string `json:"jobName"`
}

func (e TriggerUndeployed) GetType() EventType {
	return TriggerUndeployedEvent
}
