package file

import (
	"context"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
)

// FlowNodeRepository handles flow node file operations.
type FlowNodeRepository struct {
	store *Persistence
}

func (r *FlowNodeRepository) Save(_ context.Context, node *models.FlowNode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(flowNodesDir, node.ID, node)
}

func (r *FlowNodeRepository) GetByID(_ context.Context, id string) (*models.FlowNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var node models.FlowNode

	found, err := r.store.read(flowNodesDir, id, &node)
	if err != nil || !found {
		return nil, err
	}

	return &node, nil
}

func (r *FlowNodeRepository) GetByFlow(_ context.Context, flowID string) ([]*models.FlowNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.byFlow(flowID, "")
}

func (r *FlowNodeRepository) GetByFlowAndCategory(
	_ context.Context,
	flowID string,
	category models.CategoryType,
) ([]*models.FlowNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.byFlow(flowID, category)
}

func (r *FlowNodeRepository) byFlow(flowID string, category models.CategoryType) ([]*models.FlowNode, error) {
	all, err := readAll[models.FlowNode](r.store, flowNodesDir)
	if err != nil {
		return nil, err
	}

	nodes := make([]*models.FlowNode, 0)

	for _, node := range all {
		if node.FlowID != flowID {
			continue
		}

		if category != "" && node.Category != category {
			continue
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

func (r *FlowNodeRepository) Delete(_ context.Context, flowID, nodeID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var node models.FlowNode

	found, err := r.store.read(flowNodesDir, nodeID, &node)
	if err != nil {
		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	if !found || node.FlowID != flowID {
		return persistence.NewNodeError("Delete", flowID, nodeID, persistence.ErrNodeNotFound)
	}

	siblings, err := r.byFlow(flowID, "")
	if err != nil {
		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	for _, sibling := range siblings {
		if sibling.ID == nodeID || !sibling.RemoveSuccessor(nodeID) {
			continue
		}

		err = r.store.write(flowNodesDir, sibling.ID, sibling)
		if err != nil {
			return persistence.NewNodeError("Delete", flowID, nodeID, err)
		}
	}

	_, err = r.store.remove(flowNodesDir, nodeID)
	if err != nil {
		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	return nil
}
