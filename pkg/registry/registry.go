// Package registry maps node identifiers to constructors and builds node
// instances for the flow interpreter.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

// ErrCategoryMismatch is returned when a constructor produces a node that does
// not implement the contract of the category it was registered under.
var ErrCategoryMismatch = errors.New("node does not implement its registered category")

type RegisteredNode struct {
	Identifier string              `json:"identifier"`
	Category   models.CategoryType `json:"category"`
}

type entry struct {
	constructor protocol.Constructor
	category    models.CategoryType
}

type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  log.With("module", "registry"),
		entries: make(map[string]entry),
	}
}

// Register binds identifier to constructor. Re-registering an identifier
// replaces the previous binding.
func (r *Registry) Register(identifier string, constructor protocol.Constructor, category models.CategoryType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[identifier]; exists {
		r.logger.Debug("Replacing registered node", "identifier", identifier, "category", category)
	}

	r.entries[identifier] = entry{constructor: constructor, category: category}
}

// Create builds a node for identifier using three lookup tiers: exact match,
// case-insensitive match, then case-insensitive suffix match. A miss returns
// (nil, nil) and logs the known identifiers.
func (r *Registry) Create(identifier string, params map[string]any) (*Instance, error) {
	r.mu.RLock()
	resolved, e, ok := r.lookup(identifier)
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("Node not registered",
			"identifier", identifier,
			"registered", r.identifiers(),
		)

		return nil, nil
	}

	if params == nil {
		params = map[string]any{}
	}

	node, err := e.constructor(params)
	if err != nil {
		return nil, fmt.Errorf("failed to construct node %q: %w", resolved, err)
	}

	return newInstance(resolved, e.category, node)
}

func (r *Registry) lookup(identifier string) (string, entry, bool) {
	if e, ok := r.entries[identifier]; ok {
		return identifier, e, true
	}

	lower := strings.ToLower(identifier)

	for _, id := range r.sortedIdentifiers() {
		if strings.ToLower(id) == lower {
			return id, r.entries[id], true
		}
	}

	// Longest registered suffix wins so that "FooEchoAction" prefers
	// "EchoAction" over "Action".
	var best string

	for _, id := range r.sortedIdentifiers() {
		if strings.HasSuffix(lower, strings.ToLower(id)) && len(id) > len(best) {
			best = id
		}
	}

	if best != "" {
		return best, r.entries[best], true
	}

	return "", entry{}, false
}

func (r *Registry) sortedIdentifiers() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func (r *Registry) identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedIdentifiers()
}

// GetNodesByCategory returns the sorted identifiers registered under category.
func (r *Registry) GetNodesByCategory(category models.CategoryType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)

	for _, id := range r.sortedIdentifiers() {
		if r.entries[id].category == category {
			ids = append(ids, id)
		}
	}

	return ids
}

func (r *Registry) RegisteredNodes() []RegisteredNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]RegisteredNode, 0, len(r.entries))
	for _, id := range r.sortedIdentifiers() {
		nodes = append(nodes, RegisteredNode{Identifier: id, Category: r.entries[id].category})
	}

	return nodes
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// HealthCheck reports unhealthy while no node is registered.
func (r *Registry) HealthCheck() (string, bool) {
	n := r.Len()
	if n == 0 {
		return "no nodes registered", false
	}

	return fmt.Sprintf("%d nodes registered", n), true
}
