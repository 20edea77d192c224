package registry

import (
	"context"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

type Entry struct {
	Identifier  string
	Constructor protocol.Constructor
}

// Collection is a named source of node constructors sharing a category.
type Collection struct {
	Name     string
	Category models.CategoryType
	Load     func(ctx context.Context) ([]Entry, error)
}

// Bootstrap registers every entry of every collection. A collection that
// fails to load is logged and skipped; the rest still register. It returns the
// number of entries registered.
func (r *Registry) Bootstrap(ctx context.Context, collections ...Collection) int {
	registered := 0

	for _, collection := range collections {
		logger := r.logger.With("collection", collection.Name, "category", collection.Category)

		entries, err := collection.Load(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load node collection", "error", err)

			continue
		}

		for _, e := range entries {
			r.Register(e.Identifier, e.Constructor, collection.Category)
			registered++
		}

		logger.InfoContext(ctx, "Registered node collection", "count", len(entries))
	}

	return registered
}
