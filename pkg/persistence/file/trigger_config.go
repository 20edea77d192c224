package file

import (
	"context"
	"time"

	"github.com/deflow/deflow/pkg/models"
)

type TriggerConfigRepository struct {
	store *Persistence
}

func (r *TriggerConfigRepository) Save(_ context.Context, config *models.TriggerConfig) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()

	var existing models.TriggerConfig

	found, err := r.store.read(triggerConfigsDir, config.TriggerID, &existing)
	if err != nil {
		return err
	}

	switch {
	case found:
		config.CreatedAt = existing.CreatedAt
	case config.CreatedAt.IsZero():
		config.CreatedAt = now
	}

	config.UpdatedAt = now

	return r.store.write(triggerConfigsDir, config.TriggerID, config)
}

func (r *TriggerConfigRepository) GetByTriggerID(_ context.Context, triggerID string) (*models.TriggerConfig, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var config models.TriggerConfig

	found, err := r.store.read(triggerConfigsDir, triggerID, &config)
	if err != nil || !found {
		return nil, err
	}

	return &config, nil
}

func (r *TriggerConfigRepository) GetAll(_ context.Context) ([]*models.TriggerConfig, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return readAll[models.TriggerConfig](r.store, triggerConfigsDir)
}
