package models

import "time"

// TriggerConfig binds a trigger to a flow. TriggerID is unique;
// ActiveJobName records the scheduler job currently running for it.
type TriggerConfig struct {
	TriggerID     string         `json:"triggerId"               validate:"required"`
	FlowID        string         `json:"flowId"                  validate:"required"`
	NodeID        string         `json:"nodeId,omitempty"`
	Params        map[string]any `json:"params"`
	Active        bool           `json:"active"`
	ActiveJobName string         `json:"activeJobName,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// TargetNodeID is the node the trigger's job should run the flow from,
// falling back to the trigger ID itself.
func (c *TriggerConfig) TargetNodeID() string {
	if c.NodeID != "" {
		return c.NodeID
	}

	return c.TriggerID
}
