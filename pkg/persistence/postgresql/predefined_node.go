package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
)

type PredefinedNodeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *PredefinedNodeRepository) Save(ctx context.Context, node *models.PredefinedNode) error {
	required, err := marshalJSON(node.RequiredParams)
	if err != nil {
		return fmt.Errorf("failed to marshal required params: %w", err)
	}

	outputs, err := marshalJSON(node.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}

	query := `
		INSERT INTO predefined_nodes (id, name, description, category, required_params, outputs)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , category = EXCLUDED.category
		  , required_params = EXCLUDED.required_params
		  , outputs = EXCLUDED.outputs
	`

	_, err = r.db.ExecContext(ctx, query,
		node.ID, node.Name, node.Description, string(node.Category), required, outputs,
	)
	if err != nil {
		return fmt.Errorf("failed to save predefined node %s: %w", node.ID, err)
	}

	return nil
}

func (r *PredefinedNodeRepository) GetByID(ctx context.Context, id string) (*models.PredefinedNode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, required_params, outputs
		FROM predefined_nodes WHERE id = $1
	`, id)

	node, err := scanPredefinedNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan predefined node: %w", err)
	}

	return node, nil
}

func (r *PredefinedNodeRepository) GetAll(ctx context.Context) ([]*models.PredefinedNode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, category, required_params, outputs
		FROM predefined_nodes ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query predefined nodes: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	nodes := make([]*models.PredefinedNode, 0)

	for rows.Next() {
		node, err := scanPredefinedNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan predefined node: %w", err)
		}

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating predefined nodes: %w", err)
	}

	return nodes, nil
}

func (r *PredefinedNodeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM predefined_nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete predefined node %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete predefined node %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.ErrPredefinedNodeNotFound
	}

	return nil
}

func scanPredefinedNode(row scanner) (*models.PredefinedNode, error) {
	var (
		node     models.PredefinedNode
		category string
		required []byte
		outputs  []byte
	)

	err := row.Scan(&node.ID, &node.Name, &node.Description, &category, &required, &outputs)
	if err != nil {
		return nil, err
	}

	node.Category = models.CategoryType(category)

	err = unmarshalJSON(required, &node.RequiredParams)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal required params: %w", err)
	}

	err = unmarshalJSON(outputs, &node.Outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal outputs: %w", err)
	}

	return &node, nil
}
