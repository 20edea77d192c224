// Package models holds the persisted and in-flight data types of a flow.
package models

import "time"

type CategoryType string

const (
	CategoryTypeTrigger CategoryType = "Trigger"
	CategoryTypeAction  CategoryType = "Action"
	CategoryTypeLogger  CategoryType = "Logger"
)

func (c CategoryType) IsValid() bool {
	switch c {
	case CategoryTypeTrigger, CategoryTypeAction, CategoryTypeLogger:
		return true
	default:
		return false
	}
}

// Flow is a named container of nodes. Flows are created once and never
// updated or deleted.
type Flow struct {
	ID          string    `json:"id"          validate:"required"`
	Name        string    `json:"name"        validate:"required,min=1,max=255"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FlowNode is a node placed on a flow's canvas. SuccessFlow and ErrorFlow
// are ordered lists of successor node IDs in the same flow.
type FlowNode struct {
	ID               string            `json:"id"                         validate:"required"`
	FlowID           string            `json:"flowId"                     validate:"required"`
	PredefinedNodeID string            `json:"predefinedNodeId,omitempty"`
	Category         CategoryType      `json:"type"                       validate:"required"`
	Name             string            `json:"name"                       validate:"required"`
	Description      string            `json:"description"`
	X                float64           `json:"x"`
	Y                float64           `json:"y"`
	Params           map[string]any    `json:"params"`
	Variables        map[string]string `json:"variables,omitempty"`
	SuccessFlow      []string          `json:"successFlow"`
	ErrorFlow        []string          `json:"errorFlow,omitempty"`
}

func (n *FlowNode) IsTrigger() bool {
	return n.Category == CategoryTypeTrigger
}

// RemoveSuccessor drops id from both successor lists and reports whether
// anything changed.
func (n *FlowNode) RemoveSuccessor(id string) bool {
	var changed bool

	n.SuccessFlow, changed = removeID(n.SuccessFlow, id)

	var errChanged bool

	n.ErrorFlow, errChanged = removeID(n.ErrorFlow, id)

	return changed || errChanged
}

func removeID(ids []string, id string) ([]string, bool) {
	if len(ids) == 0 {
		return ids, false
	}

	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}

	return out, len(out) != len(ids)
}
