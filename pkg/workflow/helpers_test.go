package workflow_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deflow/deflow/pkg/eventbus"
	"github.com/deflow/deflow/pkg/events"
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/persistence/file"
	"github.com/deflow/deflow/pkg/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store    *file.Persistence
	registry *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	return &fixture{
		store:    file.NewPersistence(t.TempDir()),
		registry: registry.NewRegistry(testLogger()),
	}
}

func (f *fixture) save(t *testing.T, nodes ...*models.FlowNode) {
	t.Helper()

	for _, node := range nodes {
		require.NoError(t, f.store.FlowNodeRepository().Save(context.Background(), node))
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetType())
	}

	return out
}

// recorder collects labels from nodes running in one flow.
type recorder struct {
	mu     sync.Mutex
	labels []string
}

func (r *recorder) add(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.labels = append(r.labels, label)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.labels...)
}
