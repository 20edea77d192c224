// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes"
	"github.com/deflow/deflow/pkg/registry"
)

// NewRegistry registers the built-in nodes followed by the plugins found
// under pluginsPath. Plugins register last so they can override a built-in
// identifier.
func NewRegistry(ctx context.Context, log *slog.Logger, pluginsPath string, deps nodes.Dependencies) *registry.Registry {
	reg := registry.NewRegistry(log)

	collections := nodes.Collections(deps)

	if pluginsPath != "" {
		for _, category := range []models.CategoryType{
			models.CategoryTypeTrigger,
			models.CategoryTypeAction,
			models.CategoryTypeLogger,
		} {
			collections = append(collections, registry.PluginCollection(log, pluginsPath, category))
		}
	}

	count := reg.Bootstrap(ctx, collections...)
	log.InfoContext(ctx, "Node registry ready", "registered", count, "plugins_path", pluginsPath)

	return reg
}
