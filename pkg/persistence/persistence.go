// Package persistence provides the storage abstraction for flows, nodes,
// catalog entries and trigger configs.
package persistence

import (
	"context"

	"github.com/deflow/deflow/pkg/models"
)

// GetByID methods across repositories return (nil, nil) when the record does
// not exist.

type FlowRepository interface {
	Save(ctx context.Context, flow *models.Flow) error
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	GetAll(ctx context.Context) ([]*models.Flow, error)
}

type FlowNodeRepository interface {
	Save(ctx context.Context, node *models.FlowNode) error
	GetByID(ctx context.Context, id string) (*models.FlowNode, error)
	GetByFlow(ctx context.Context, flowID string) ([]*models.FlowNode, error)
	GetByFlowAndCategory(ctx context.Context, flowID string, category models.CategoryType) ([]*models.FlowNode, error)
	// Delete removes the node and prunes its ID from the success and error
	// lists of every other node in the same flow.
	Delete(ctx context.Context, flowID, nodeID string) error
}

type PredefinedNodeRepository interface {
	Save(ctx context.Context, node *models.PredefinedNode) error
	GetByID(ctx context.Context, id string) (*models.PredefinedNode, error)
	GetAll(ctx context.Context) ([]*models.PredefinedNode, error)
	Delete(ctx context.Context, id string) error
}

type TriggerConfigRepository interface {
	// Save inserts or replaces the config keyed by TriggerID.
	Save(ctx context.Context, config *models.TriggerConfig) error
	GetByTriggerID(ctx context.Context, triggerID string) (*models.TriggerConfig, error)
	GetAll(ctx context.Context) ([]*models.TriggerConfig, error)
}

type Persistence interface {
	FlowRepository() FlowRepository
	FlowNodeRepository() FlowNodeRepository
	PredefinedNodeRepository() PredefinedNodeRepository
	TriggerConfigRepository() TriggerConfigRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
