package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/deflow/deflow/pkg/persistence"
	"github.com/deflow/deflow/pkg/persistence/file"
	"github.com/deflow/deflow/pkg/persistence/postgresql"
)

// NewPersistence picks the store from the URL scheme. Anything that is not a
// postgres URL is treated as a file store root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
