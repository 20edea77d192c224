// Package postgresql provides PostgreSQL persistence for flows, nodes,
// catalog entries and trigger configs.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/deflow/deflow/pkg/persistence"
	"github.com/deflow/deflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // postgres driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	flows       *FlowRepository
	flowNodes   *FlowNodeRepository
	predefined  *PredefinedNodeRepository
	triggerCfgs *TriggerConfigRepository
}

// NewPersistence connects, runs migrations and returns a ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:          database,
		logger:      logger,
		flows:       &FlowRepository{db: database, logger: logger},
		flowNodes:   &FlowNodeRepository{db: database, logger: logger},
		predefined:  &PredefinedNodeRepository{db: database, logger: logger},
		triggerCfgs: &TriggerConfigRepository{db: database, logger: logger},
	}, nil
}

func (p *Persistence) FlowRepository() persistence.FlowRepository { return p.flows }

func (p *Persistence) FlowNodeRepository() persistence.FlowNodeRepository { return p.flowNodes }

func (p *Persistence) PredefinedNodeRepository() persistence.PredefinedNodeRepository {
	return p.predefined
}

func (p *Persistence) TriggerConfigRepository() persistence.TriggerConfigRepository {
	return p.triggerCfgs
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}

	return json.Marshal(v)
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, v)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}

	return ids
}
