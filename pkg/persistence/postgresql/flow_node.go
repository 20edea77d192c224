package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence"
	"github.com/lib/pq"
)

const flowNodeColumns = `
	id
  , flow_id
  , predefined_node_id
  , category
  , name
  , description
  , x
  , y
  , params
  , variables
  , success_flow
  , error_flow
`

// FlowNodeRepository handles flow node database operations.
type FlowNodeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *FlowNodeRepository) Save(ctx context.Context, node *models.FlowNode) error {
	params, err := marshalJSON(node.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	var variables any
	if node.Variables != nil {
		variables, err = marshalJSON(node.Variables)
		if err != nil {
			return fmt.Errorf("failed to marshal variables: %w", err)
		}
	}

	query := `
		INSERT INTO flow_nodes (` + flowNodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id
		  , predefined_node_id = EXCLUDED.predefined_node_id
		  , category = EXCLUDED.category
		  , name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , x = EXCLUDED.x
		  , y = EXCLUDED.y
		  , params = EXCLUDED.params
		  , variables = EXCLUDED.variables
		  , success_flow = EXCLUDED.success_flow
		  , error_flow = EXCLUDED.error_flow
	`

	_, err = r.db.ExecContext(ctx, query,
		node.ID,
		node.FlowID,
		node.PredefinedNodeID,
		string(node.Category),
		node.Name,
		node.Description,
		node.X,
		node.Y,
		params,
		variables,
		pq.Array(nonNil(node.SuccessFlow)),
		pq.Array(nonNil(node.ErrorFlow)),
	)
	if err != nil {
		return persistence.NewNodeError("Save", node.FlowID, node.ID, err)
	}

	return nil
}

func (r *FlowNodeRepository) GetByID(ctx context.Context, id string) (*models.FlowNode, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+flowNodeColumns+` FROM flow_nodes WHERE id = $1`, id)

	node, err := scanFlowNode(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan flow node: %w", err)
	}

	return node, nil
}

func (r *FlowNodeRepository) GetByFlow(ctx context.Context, flowID string) ([]*models.FlowNode, error) {
	return r.query(ctx, `SELECT `+flowNodeColumns+` FROM flow_nodes WHERE flow_id = $1 ORDER BY id`, flowID)
}

func (r *FlowNodeRepository) GetByFlowAndCategory(
	ctx context.Context,
	flowID string,
	category models.CategoryType,
) ([]*models.FlowNode, error) {
	return r.query(ctx,
		`SELECT `+flowNodeColumns+` FROM flow_nodes WHERE flow_id = $1 AND category = $2 ORDER BY id`,
		flowID, string(category),
	)
}

func (r *FlowNodeRepository) query(ctx context.Context, query string, args ...any) ([]*models.FlowNode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow nodes: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	nodes := make([]*models.FlowNode, 0)

	for rows.Next() {
		node, err := scanFlowNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow node: %w", err)
		}

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flow nodes: %w", err)
	}

	return nodes, nil
}

// Delete removes the node and prunes it from its siblings' successor lists
// in a single transaction.
func (r *FlowNodeRepository) Delete(ctx context.Context, flowID, nodeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM flow_nodes WHERE id = $1 AND flow_id = $2`, nodeID, flowID)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	if affected == 0 {
		_ = tx.Rollback()

		return persistence.NewNodeError("Delete", flowID, nodeID, persistence.ErrNodeNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE flow_nodes SET
			success_flow = array_remove(success_flow, $1)
		  , error_flow = array_remove(error_flow, $1)
		WHERE flow_id = $2 AND ($1 = ANY(success_flow) OR $1 = ANY(error_flow))
	`, nodeID, flowID)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewNodeError("Delete", flowID, nodeID, err)
	}

	return nil
}

func scanFlowNode(row scanner) (*models.FlowNode, error) {
	var (
		node      models.FlowNode
		category  string
		params    []byte
		variables []byte
	)

	err := row.Scan(
		&node.ID,
		&node.FlowID,
		&node.PredefinedNodeID,
		&category,
		&node.Name,
		&node.Description,
		&node.X,
		&node.Y,
		&params,
		&variables,
		pq.Array(&node.SuccessFlow),
		pq.Array(&node.ErrorFlow),
	)
	if err != nil {
		return nil, err
	}

	node.Category = models.CategoryType(category)

	err = unmarshalJSON(params, &node.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	err = unmarshalJSON(variables, &node.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	return &node, nil
}
