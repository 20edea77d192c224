package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// AddNodeRequest represents the request to place a catalog node on a flow.
type AddNodeRequest struct {
	PredefinedNodeID string
	Name             string
	Description      string
	Category         models.CategoryType
	X                float64
	Y                float64
	Params           map[string]any
	Variables        map[string]string
}

// UpdateNodeRequest is a partial update. Nil fields are left unchanged.
type UpdateNodeRequest struct {
	Name        *string
	Description *string
	Params      map[string]any
	Variables   map[string]string
	X           *float64
	Y           *float64
}

// LinkRequest names an edge between two nodes of the same flow.
type LinkRequest struct {
	FromNodeID string
	ToNodeID   string
	ErrorFlow  bool
}

// Node handles node-related business operations.
type Node struct {
	persistence persistence.Persistence
}

// NewNode creates a new node service.
func NewNode(persistence persistence.Persistence) *Node {
	return &Node{
		persistence: persistence,
	}
}

// AddNodeToFlow creates a node in flowID from a catalog entry. Params, when
// given, must satisfy the entry's required params.
func (n *Node) AddNodeToFlow(ctx context.Context, flowID string, req *AddNodeRequest) (*models.FlowNode, error) {
	if req == nil || req.PredefinedNodeID == "" {
		return nil, NewValidationError("AddNodeToFlow", "INVALID_REQUEST", "predefined node ID is required", ErrInvalidRequest)
	}

	flow, err := n.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	if flow == nil {
		return nil, persistence.ErrFlowNotFound
	}

	predefined, err := n.predefinedNode(ctx, req.PredefinedNodeID)
	if err != nil {
		return nil, err
	}

	category := req.Category
	if category == "" {
		category = predefined.Category
	}

	if !category.IsValid() {
		return nil, NewValidationError("AddNodeToFlow", "INVALID_CATEGORY",
			fmt.Sprintf("unknown category %q", category), ErrInvalidCategory)
	}

	if category != predefined.Category {
		return nil, NewValidationError("AddNodeToFlow", "CATEGORY_MISMATCH",
			fmt.Sprintf("predefined node %s is a %s, not a %s", predefined.ID, predefined.Category, category),
			ErrCategoryMismatch)
	}

	params := req.Params
	if params != nil {
		err = validateParams("AddNodeToFlow", predefined, params)
		if err != nil {
			return nil, err
		}
	} else {
		params = make(map[string]any)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = predefined.Name
	}

	node := &models.FlowNode{
		ID:               uuid.New().String(),
		FlowID:           flowID,
		PredefinedNodeID: predefined.ID,
		Category:         category,
		Name:             name,
		Description:      req.Description,
		X:                req.X,
		Y:                req.Y,
		Params:           params,
		Variables:        req.Variables,
		SuccessFlow:      []string{},
	}

	err = n.persistence.FlowNodeRepository().Save(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return node, nil
}

// GetNode returns a node of flowID or persistence.ErrNodeNotFound.
func (n *Node) GetNode(ctx context.Context, flowID, nodeID string) (*models.FlowNode, error) {
	node, err := n.persistence.FlowNodeRepository().GetByID(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	if node == nil || node.FlowID != flowID {
		return nil, persistence.NewNodeError("GetNode", flowID, nodeID, persistence.ErrNodeNotFound)
	}

	return node, nil
}

// UpdateNode applies a partial update. New params are validated against the
// node's catalog entry.
func (n *Node) UpdateNode(ctx context.Context, flowID, nodeID string, req *UpdateNodeRequest) (*models.FlowNode, error) {
	if req == nil {
		return nil, NewValidationError("UpdateNode", "INVALID_REQUEST", "request is required", ErrInvalidRequest)
	}

	node, err := n.GetNode(ctx, flowID, nodeID)
	if err != nil {
		return nil, err
	}

	if req.Params != nil {
		if node.PredefinedNodeID != "" {
			predefined, err := n.predefinedNode(ctx, node.PredefinedNodeID)
			if err != nil {
				return nil, err
			}

			err = validateParams("UpdateNode", predefined, req.Params)
			if err != nil {
				return nil, err
			}
		}

		node.Params = req.Params
	}

	if req.Variables != nil {
		node.Variables = req.Variables
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		node.Name = strings.TrimSpace(*req.Name)
	}

	if req.Description != nil {
		node.Description = *req.Description
	}

	if req.X != nil {
		node.X = *req.X
	}

	if req.Y != nil {
		node.Y = *req.Y
	}

	err = n.persistence.FlowNodeRepository().Save(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return node, nil
}

// DeleteNode removes the node and every reference to it from the flow.
func (n *Node) DeleteNode(ctx context.Context, flowID, nodeID string) error {
	err := n.persistence.FlowNodeRepository().Delete(ctx, flowID, nodeID)
	if err != nil {
		if persistence.IsNodeNotFound(err) {
			return err
		}

		return fmt.Errorf("failed to delete node: %w", err)
	}

	return nil
}

// LinkNodes appends ToNodeID to the source's success or error list. Linking
// an existing edge is a no-op.
func (n *Node) LinkNodes(ctx context.Context, req *LinkRequest) (*models.FlowNode, error) {
	from, to, err := n.edge(ctx, "LinkNodes", req)
	if err != nil {
		return nil, err
	}

	if from.Category == models.CategoryTypeLogger {
		return nil, NewValidationError("LinkNodes", "LOGGER_SUCCESSOR",
			"logger nodes are terminal", ErrLoggerSuccessor)
	}

	if req.ErrorFlow {
		if from.Category != models.CategoryTypeAction {
			return nil, NewValidationError("LinkNodes", "ERROR_FLOW_NOT_ACTION",
				fmt.Sprintf("node %s is a %s", from.ID, from.Category), ErrErrorFlowNotAction)
		}

		if slices.Contains(from.ErrorFlow, to.ID) {
			return from, nil
		}

		from.ErrorFlow = append(from.ErrorFlow, to.ID)
	} else {
		if slices.Contains(from.SuccessFlow, to.ID) {
			return from, nil
		}

		from.SuccessFlow = append(from.SuccessFlow, to.ID)
	}

	err = n.persistence.FlowNodeRepository().Save(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return from, nil
}

// UnlinkNodes removes ToNodeID from the selected list of the source node.
func (n *Node) UnlinkNodes(ctx context.Context, req *LinkRequest) (*models.FlowNode, error) {
	from, to, err := n.edge(ctx, "UnlinkNodes", req)
	if err != nil {
		return nil, err
	}

	list := &from.SuccessFlow
	if req.ErrorFlow {
		list = &from.ErrorFlow
	}

	kept := slices.DeleteFunc(slices.Clone(*list), func(id string) bool { return id == to.ID })
	if len(kept) == len(*list) {
		return from, nil
	}

	*list = kept

	err = n.persistence.FlowNodeRepository().Save(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to save node: %w", err)
	}

	return from, nil
}

func (n *Node) edge(ctx context.Context, op string, req *LinkRequest) (*models.FlowNode, *models.FlowNode, error) {
	if req == nil || req.FromNodeID == "" || req.ToNodeID == "" {
		return nil, nil, NewValidationError(op, "INVALID_REQUEST", "both node IDs are required", ErrInvalidRequest)
	}

	if req.FromNodeID == req.ToNodeID {
		return nil, nil, NewValidationError(op, "SELF_LINK", "a node cannot link to itself", ErrSelfLink)
	}

	repo := n.persistence.FlowNodeRepository()

	from, err := repo.GetByID(ctx, req.FromNodeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get node: %w", err)
	}

	if from == nil {
		return nil, nil, persistence.NewNodeError(op, "", req.FromNodeID, persistence.ErrNodeNotFound)
	}

	to, err := repo.GetByID(ctx, req.ToNodeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get node: %w", err)
	}

	if to == nil {
		return nil, nil, persistence.NewNodeError(op, from.FlowID, req.ToNodeID, persistence.ErrNodeNotFound)
	}

	if from.FlowID != to.FlowID {
		return nil, nil, NewValidationError(op, "CROSS_FLOW_LINK",
			fmt.Sprintf("node %s is in flow %s, node %s is in flow %s", from.ID, from.FlowID, to.ID, to.FlowID),
			ErrCrossFlowLink)
	}

	return from, to, nil
}

func (n *Node) predefinedNode(ctx context.Context, id string) (*models.PredefinedNode, error) {
	predefined, err := n.persistence.PredefinedNodeRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get predefined node: %w", err)
	}

	if predefined == nil {
		return nil, persistence.ErrPredefinedNodeNotFound
	}

	return predefined, nil
}

// validateParams validates params against the catalog entry's JSON schema.
func validateParams(op string, predefined *models.PredefinedNode, params map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(predefined.ParamsSchema())
	dataLoader := gojsonschema.NewGoLoader(params)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return NewValidationError(op, "INVALID_PARAMS", err.Error(), ErrInvalidParams)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return NewValidationError(op, "INVALID_PARAMS", strings.Join(problems, "; "), ErrInvalidParams)
	}

	return nil
}
