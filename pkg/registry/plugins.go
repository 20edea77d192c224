package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

// PluginSymbol is the exported variable every node plugin must define:
//
//	var Nodes = map[string]protocol.Constructor{"MyAction": NewMyAction}
const PluginSymbol = "Nodes"

// PluginCollection loads Go plugins from <pluginsPath>/<category>s/*.so.
// A missing directory yields an empty collection; a broken plugin file is
// logged and skipped.
func PluginCollection(logger *slog.Logger, pluginsPath string, category models.CategoryType) Collection {
	dir := filepath.Join(pluginsPath, strings.ToLower(string(category))+"s")

	return Collection{
		Name:     "plugins:" + dir,
		Category: category,
		Load: func(ctx context.Context) ([]Entry, error) {
			return loadPlugins(ctx, logger, dir)
		},
	}
}

func loadPlugins(ctx context.Context, logger *slog.Logger, dir string) ([]Entry, error) {
	_, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to stat plugins directory: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", dir))
	l.InfoContext(ctx, "Loading plugins", "count", len(paths))

	entries := make([]Entry, 0, len(paths))

	for _, p := range paths {
		constructors, err := openPlugin(p)
		if err != nil {
			l.ErrorContext(ctx, "Skipping plugin", "plugin", p, "error", err)

			continue
		}

		for id, ctor := range constructors {
			entries = append(entries, Entry{Identifier: id, Constructor: ctor})
		}

		l.InfoContext(ctx, "Loaded plugin", "plugin", p, "nodes", len(constructors))
	}

	return entries, nil
}

func openPlugin(path string) (map[string]protocol.Constructor, error) {
	plg, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}

	sym, err := plg.Lookup(PluginSymbol)
	if err != nil {
		return nil, err
	}

	switch v := sym.(type) {
	case *map[string]protocol.Constructor:
		return *v, nil
	case func() map[string]protocol.Constructor:
		return v(), nil
	default:
		return nil, fmt.Errorf("symbol %s has unexpected type %T", PluginSymbol, sym)
	}
}
