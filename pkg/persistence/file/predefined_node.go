package file

import (
	"context"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
)

type PredefinedNodeRepository struct {
	store *Persistence
}

func (r *PredefinedNodeRepository) Save(_ context.Context, node *models.PredefinedNode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(predefinedNodesDir, node.ID, node)
}

func (r *PredefinedNodeRepository) GetByID(_ context.Context, id string) (*models.PredefinedNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var node models.PredefinedNode

	found, err := r.store.read(predefinedNodesDir, id, &node)
	if err != nil || !found {
		return nil, err
	}

	return &node, nil
}

func (r *PredefinedNodeRepository) GetAll(_ context.Context) ([]*models.PredefinedNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return readAll[models.PredefinedNode](r.store, predefinedNodesDir)
}

func (r *PredefinedNodeRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	found, err := r.store.remove(predefinedNodesDir, id)
	if err != nil {
		return err
	}

	if !found {
		return persistence.ErrPredefinedNodeNotFound
	}

	return nil
}
