package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deflow/deflow/pkg/models"
)

const triggerConfigColumns = `
	trigger_id
  , flow_id
  , node_id
  , params
  , active
  , active_job_name
  , created_at
  , updated_at
`

type TriggerConfigRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Save upserts the config keyed by TriggerID, keeping the original created_at.
func (r *TriggerConfigRepository) Save(ctx context.Context, config *models.TriggerConfig) error {
	params, err := marshalJSON(config.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	now := time.Now().UTC()
	if config.CreatedAt.IsZero() {
		config.CreatedAt = now
	}

	config.UpdatedAt = now

	query := `
		INSERT INTO trigger_configs (` + triggerConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trigger_id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id
		  , node_id = EXCLUDED.node_id
		  , params = EXCLUDED.params
		  , active = EXCLUDED.active
		  , active_job_name = EXCLUDED.active_job_name
		  , updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	var createdAt time.Time

	err = r.db.QueryRowContext(ctx, query,
		config.TriggerID,
		config.FlowID,
		config.NodeID,
		params,
		config.Active,
		config.ActiveJobName,
		config.CreatedAt,
		config.UpdatedAt,
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("failed to save trigger config %s: %w", config.TriggerID, err)
	}

	config.CreatedAt = createdAt.UTC()

	return nil
}

func (r *TriggerConfigRepository) GetByTriggerID(ctx context.Context, triggerID string) (*models.TriggerConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+triggerConfigColumns+` FROM trigger_configs WHERE trigger_id = $1`, triggerID)

	config, err := scanTriggerConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan trigger config: %w", err)
	}

	return config, nil
}

func (r *TriggerConfigRepository) GetAll(ctx context.Context) ([]*models.TriggerConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+triggerConfigColumns+` FROM trigger_configs ORDER BY trigger_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trigger configs: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	configs := make([]*models.TriggerConfig, 0)

	for rows.Next() {
		config, err := scanTriggerConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger config: %w", err)
		}

		configs = append(configs, config)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating trigger configs: %w", err)
	}

	return configs, nil
}

func scanTriggerConfig(row scanner) (*models.TriggerConfig, error) {
	var (
		config models.TriggerConfig
		params []byte
	)

	err := row.Scan(
		&config.TriggerID,
		&config.FlowID,
		&config.NodeID,
		&params,
		&config.Active,
		&config.ActiveJobName,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	config.CreatedAt = config.CreatedAt.UTC()
	config.UpdatedAt = config.UpdatedAt.UTC()

	err = unmarshalJSON(params, &config.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return &config, nil
}
