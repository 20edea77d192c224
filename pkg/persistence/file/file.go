// Package file provides file-based persistence storing one JSON document per record.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/deflow/deflow/pkg/persistence"
)

const (
	flowsDir           = "flows"
	flowNodesDir       = "flow_nodes"
	predefinedNodesDir = "predefined_nodes"
	triggerConfigsDir  = "trigger_configs"
)

// Persistence implements persistence.Persistence on the file system under root.
// A single lock serializes writers so node deletion and pruning stay consistent.
type Persistence struct {
	root string
	mu   sync.RWMutex

	flows       *FlowRepository
	flowNodes   *FlowNodeRepository
	predefined  *PredefinedNodeRepository
	triggerCfgs *TriggerConfigRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	p := &Persistence{root: strings.Replace(root, "file://", "", 1)}

	p.flows = &FlowRepository{store: p}
	p.flowNodes = &FlowNodeRepository{store: p}
	p.predefined = &PredefinedNodeRepository{store: p}
	p.triggerCfgs = &TriggerConfigRepository{store: p}

	return p
}

func (p *Persistence) FlowRepository() persistence.FlowRepository { return p.flows }

func (p *Persistence) FlowNodeRepository() persistence.FlowNodeRepository { return p.flowNodes }

func (p *Persistence) PredefinedNodeRepository() persistence.PredefinedNodeRepository {
	return p.predefined
}

func (p *Persistence) TriggerConfigRepository() persistence.TriggerConfigRepository {
	return p.triggerCfgs
}

// HealthCheck verifies the root directory exists, creating it when missing.
func (p *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(p.root, 0750)
	if err != nil {
		return fmt.Errorf("failed to access persistence root: %w", err)
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) path(kind, id string) string {
	return filepath.Join(p.root, kind, url.PathEscape(id)+".json")
}

func (p *Persistence) write(kind, id string, v any) error {
	err := os.MkdirAll(filepath.Join(p.root, kind), 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	return os.WriteFile(p.path(kind, id), data, 0600)
}

// read decodes the record into v and reports whether it exists.
func (p *Persistence) read(kind, id string, v any) (bool, error) {
	body, err := os.ReadFile(p.path(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to fetch %s %s: %w", kind, id, err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return true, nil
}

func (p *Persistence) remove(kind, id string) (bool, error) {
	err := os.Remove(p.path(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}

	return true, nil
}

// ids lists record IDs of kind in lexical order.
func (p *Persistence) ids(kind string) ([]string, error) {
	files, err := fs.Glob(os.DirFS(filepath.Join(p.root, kind)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	ids := make([]string, 0, len(files))

	for _, f := range files {
		id, err := url.PathUnescape(strings.TrimSuffix(f, ".json"))
		if err != nil {
			return nil, fmt.Errorf("invalid %s file name %s: %w", kind, f, err)
		}

		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}

func readAll[T any](p *Persistence, kind string) ([]*T, error) {
	ids, err := p.ids(kind)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(ids))

	for _, id := range ids {
		var v T

		found, err := p.read(kind, id, &v)
		if err != nil {
			return nil, err
		}

		if found {
			out = append(out, &v)
		}
	}

	return out, nil
}
