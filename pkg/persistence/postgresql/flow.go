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

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO flows (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
	`

	_, err := r.db.ExecContext(ctx, query, flow.ID, flow.Name, flow.Description, flow.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, description, created_at FROM flows WHERE id = $1`, id)

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

func (r *FlowRepository) GetAll(ctx context.Context) ([]*models.Flow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM flows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func scanFlow(row scanner) (*models.Flow, error) {
	var flow models.Flow

	err := row.Scan(&flow.ID, &flow.Name, &flow.Description, &flow.CreatedAt)
	if err != nil {
		return nil, err
	}

	flow.CreatedAt = flow.CreatedAt.UTC()

	return &flow, nil
}
