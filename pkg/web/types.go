// Package web provides HTTP handlers and REST API endpoints for flow management.
package web

import (
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/services"
)

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

// AddNodeRequest represents the request body for placing a catalog node on a flow.
type AddNodeRequest struct {
	PredefinedNodeID string            `json:"predefinedNodeId" validate:"required"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Type             string            `json:"type"             validate:"omitempty,oneof=Trigger Action Logger"`
	X                float64           `json:"x"`
	Y                float64           `json:"y"`
	Params           map[string]any    `json:"params,omitempty"`
	Variables        map[string]string `json:"variables,omitempty"`
}

func (r *AddNodeRequest) toService() *services.AddNodeRequest {
	return &services.AddNodeRequest{
		PredefinedNodeID: r.PredefinedNodeID,
		Name:             r.Name,
		Description:      r.Description,
		Category:         models.CategoryType(r.Type),
		X:                r.X,
		Y:                r.Y,
		Params:           r.Params,
		Variables:        r.Variables,
	}
}

// UpdateNodeRequest represents the request body for updating a flow node.
// All fields are optional to support partial updates.
type UpdateNodeRequest struct {
	Name        *string           `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description *string           `json:"description,omitempty"`
	Params      map[string]any    `json:"params,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
	X           *float64          `json:"x,omitempty"`
	Y           *float64          `json:"y,omitempty"`
}

func (r *UpdateNodeRequest) toService() *services.UpdateNodeRequest {
	return &services.UpdateNodeRequest{
		Name:        r.Name,
		Description: r.Description,
		Params:      r.Params,
		Variables:   r.Variables,
		X:           r.X,
		Y:           r.Y,
	}
}

// LinkNodesRequest represents the request body for linking or unlinking nodes.
type LinkNodesRequest struct {
	FromNodeID     string `json:"fromNodeId"     validate:"required"`
	ToNodeID       string `json:"toNodeId"       validate:"required,nefield=FromNodeID"`
	IsForErrorFlow bool   `json:"isForErrorFlow"`
}

func (r *LinkNodesRequest) toService() *services.LinkRequest {
	return &services.LinkRequest{
		FromNodeID: r.FromNodeID,
		ToNodeID:   r.ToNodeID,
		ErrorFlow:  r.IsForErrorFlow,
	}
}

// CreatePredefinedNodeRequest represents the request body for a new catalog entry.
type CreatePredefinedNodeRequest struct {
	ID             string            `json:"id,omitempty"`
	Name           string            `json:"name"           validate:"required,min=1"`
	Description    string            `json:"description"`
	Type           string            `json:"type"           validate:"required,oneof=Trigger Action Logger"`
	RequiredParams map[string]string `json:"requiredParams"`
	Outputs        map[string]string `json:"outputs"`
}

func (r *CreatePredefinedNodeRequest) toModel() *models.PredefinedNode {
	return &models.PredefinedNode{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Category:       models.CategoryType(r.Type),
		RequiredParams: r.RequiredParams,
		Outputs:        r.Outputs,
	}
}

// ExecuteFlowResponse is returned once a flow run finished. Failures of
// individual actions are reported through the flow's own logger nodes.
type ExecuteFlowResponse struct {
	Status    string `json:"status"`
	FlowID    string `json:"flowId"`
	TriggerID string `json:"triggerId"`
}

// FlowJobsResponse lists the scheduler jobs touched by a flow deploy or undeploy.
type FlowJobsResponse struct {
	Status string   `json:"status"`
	FlowID string   `json:"flowId"`
	Jobs   []string `json:"jobs"`
}

// RegistryNodesResponse lists the registered node identifiers.
type RegistryNodesResponse struct {
	Category string   `json:"category,omitempty"`
	Nodes    []string `json:"nodes"`
}
