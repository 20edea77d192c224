// Package config loads predefined node catalogs from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deflow/deflow/pkg/models"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// CatalogFile represents the structure of a catalog YAML file.
type CatalogFile struct {
	Nodes []CatalogEntry `yaml:"nodes"`
}

// CatalogEntry represents one predefined node in the YAML file.
type CatalogEntry struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Type           string            `yaml:"type"`
	RequiredParams map[string]string `yaml:"requiredParams"`
	Outputs        map[string]string `yaml:"outputs"`
}

// LoadCatalog reads and validates a catalog file. Entries without an id use
// their name as id.
func LoadCatalog(path string) ([]*models.PredefinedNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	return ParseCatalog(data)
}

func ParseCatalog(data []byte) ([]*models.PredefinedNode, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}

	nodes := make([]*models.PredefinedNode, 0, len(file.Nodes))
	seen := make(map[string]struct{}, len(file.Nodes))

	for i, entry := range file.Nodes {
		node, err := entry.toModel()
		if err != nil {
			return nil, fmt.Errorf("%w: nodes[%d]: %w", ErrInvalidCatalog, i, err)
		}

		if _, dup := seen[node.ID]; dup {
			return nil, fmt.Errorf("%w: nodes[%d]: duplicate id %q", ErrInvalidCatalog, i, node.ID)
		}

		seen[node.ID] = struct{}{}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

func (e CatalogEntry) toModel() (*models.PredefinedNode, error) {
	if e.Name == "" {
		return nil, errors.New("name is required")
	}

	category := models.CategoryType(e.Type)
	if !category.IsValid() {
		return nil, fmt.Errorf("unknown type %q", e.Type)
	}

	id := e.ID
	if id == "" {
		id = e.Name
	}

	return &models.PredefinedNode{
		ID:             id,
		Name:           e.Name,
		Description:    e.Description,
		Category:       category,
		RequiredParams: e.RequiredParams,
		Outputs:        e.Outputs,
	}, nil
}
