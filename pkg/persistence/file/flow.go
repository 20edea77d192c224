package file

import (
	"context"
	"time"

	"github.com/deflow/deflow/pkg/models"
)

// FlowRepository handles flow-related file operations.
type FlowRepository struct {
	store *Persistence
}

func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}

	return r.store.write(flowsDir, flow.ID, flow)
}

func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var flow models.Flow

	found, err := r.store.read(flowsDir, id, &flow)
	if err != nil || !found {
		return nil, err
	}

	return &flow, nil
}

func (r *FlowRepository) GetAll(_ context.Context) ([]*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return readAll[models.Flow](r.store, flowsDir)
}
