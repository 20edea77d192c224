package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
	"github.com/google/uuid"
)

// PredefinedNodes manages the node catalog.
type PredefinedNodes struct {
	logger      *slog.Logger
	persistence persistence.Persistence
}

func NewPredefinedNodes(logger *slog.Logger, persistence persistence.Persistence) *PredefinedNodes {
	return &PredefinedNodes{
		logger:      logger.With("module", "predefined_nodes"),
		persistence: persistence,
	}
}

// Create stores a new catalog entry. An empty ID is generated.
func (p *PredefinedNodes) Create(ctx context.Context, node *models.PredefinedNode) (*models.PredefinedNode, error) {
	if node == nil || strings.TrimSpace(node.Name) == "" {
		return nil, NewValidationError("CreatePredefinedNode", "INVALID_REQUEST", "name is required", ErrInvalidRequest)
	}

	if !node.Category.IsValid() {
		return nil, NewValidationError("CreatePredefinedNode", "INVALID_CATEGORY",
			fmt.Sprintf("unknown category %q", node.Category), ErrInvalidCategory)
	}

	repo := p.persistence.PredefinedNodeRepository()

	if node.ID == "" {
		node.ID = uuid.New().String()
	} else {
		existing, err := repo.GetByID(ctx, node.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get predefined node: %w", err)
		}

		if existing != nil {
			return nil, &ServiceError{Op: "CreatePredefinedNode", Code: "PREDEFINED_NODE_EXISTS",
				Message: fmt.Sprintf("predefined node %s already exists", node.ID), Err: ErrPredefinedNodeExists}
		}
	}

	if node.RequiredParams == nil {
		node.RequiredParams = map[string]string{}
	}

	err := repo.Save(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to save predefined node: %w", err)
	}

	return node, nil
}

// List returns the catalog sorted by category, then name.
func (p *PredefinedNodes) List(ctx context.Context) ([]*models.PredefinedNode, error) {
	nodes, err := p.persistence.PredefinedNodeRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list predefined nodes: %w", err)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Category != nodes[j].Category {
			return nodes[i].Category < nodes[j].Category
		}

		return nodes[i].Name < nodes[j].Name
	})

	return nodes, nil
}

func (p *PredefinedNodes) Get(ctx context.Context, id string) (*models.PredefinedNode, error) {
	node, err := p.persistence.PredefinedNodeRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get predefined node: %w", err)
	}

	if node == nil {
		return nil, persistence.ErrPredefinedNodeNotFound
	}

	return node, nil
}

// Delete removes a catalog entry that no flow node references.
func (p *PredefinedNodes) Delete(ctx context.Context, id string) error {
	_, err := p.Get(ctx, id)
	if err != nil {
		return err
	}

	flows, err := p.persistence.FlowRepository().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list flows: %w", err)
	}

	for _, flow := range flows {
		nodes, err := p.persistence.FlowNodeRepository().GetByFlow(ctx, flow.ID)
		if err != nil {
			return fmt.Errorf("failed to get flow nodes: %w", err)
		}

		for _, node := range nodes {
			if node.PredefinedNodeID == id {
				return &ServiceError{Op: "DeletePredefinedNode", Code: "PREDEFINED_NODE_IN_USE",
					Message: fmt.Sprintf("predefined node %s is used by node %s in flow %s", id, node.ID, flow.ID),
					Err:     ErrPredefinedNodeInUse}
			}
		}
	}

	return p.persistence.PredefinedNodeRepository().Delete(ctx, id)
}

// Seed upserts the given catalog entries and returns how many were written.
func (p *PredefinedNodes) Seed(ctx context.Context, catalog []*models.PredefinedNode) (int, error) {
	repo := p.persistence.PredefinedNodeRepository()

	for i, node := range catalog {
		err := repo.Save(ctx, node)
		if err != nil {
			return i, fmt.Errorf("failed to seed predefined node %s: %w", node.ID, err)
		}
	}

	p.logger.InfoContext(ctx, "Seeded node catalog", "count", len(catalog))

	return len(catalog), nil
}
