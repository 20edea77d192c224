package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
	"github.com/google/uuid"
)

// CreateFlowRequest carries the user-supplied fields of a new flow.
type CreateFlowRequest struct {
	Name        string
	Description string
}

// Flow handles flow-related business operations.
type Flow struct {
	persistence persistence.Persistence
	now         func() time.Time
}

// NewFlow creates a new flow service.
func NewFlow(persistence persistence.Persistence) *Flow {
	return &Flow{
		persistence: persistence,
		now:         time.Now,
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateFlow stores a new flow with a generated ID.
func (f *Flow) CreateFlow(ctx context.Context, req *CreateFlowRequest) (*models.Flow, error) {
	if req == nil {
		return nil, NewValidationError("CreateFlow", "INVALID_REQUEST", "request is required", ErrInvalidRequest)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("CreateFlow", "FLOW_NAME_REQUIRED", "flow name is required", ErrFlowNameRequired)
	}

	flow := &models.Flow{
		ID:          uuid.New().String(),
		Name:        name,
		Description: req.Description,
		CreatedAt:   f.now().UTC(),
	}

	err := f.persistence.FlowRepository().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

// FetchByID returns the flow or persistence.ErrFlowNotFound.
func (f *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	if flow == nil {
		return nil, persistence.ErrFlowNotFound
	}

	return flow, nil
}

// ListFlows returns every flow, newest first.
func (f *Flow) ListFlows(ctx context.Context) ([]*models.Flow, error) {
	flows, err := f.persistence.FlowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})

	return flows, nil
}

// FlowNodes returns the nodes of an existing flow.
func (f *Flow) FlowNodes(ctx context.Context, flowID string) ([]*models.FlowNode, error) {
	_, err := f.FetchByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	nodes, err := f.persistence.FlowNodeRepository().GetByFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get flow nodes: %w", err)
	}

	return nodes, nil
}
