package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/deflow/deflow/pkg/channels/gochannel"
	"github.com/deflow/deflow/pkg/eventbus"
	"github.com/deflow/deflow/pkg/events"
	"github.com/deflow/deflow/pkg/mocks"
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes"
	"github.com/deflow/deflow/pkg/persistence/file"
	"github.com/deflow/deflow/pkg/registry"
)

func newTestAPI(t *testing.T, bus eventbus.EventBus) (*API, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Bootstrap(context.Background(), nodes.Collections(nodes.Dependencies{Logger: logger})...)

	tp := trace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	api := NewAPI(logger, store, reg, bus, tp.Tracer("test"))
	t.Cleanup(api.scheduler.StopAll)

	return api, store
}

func request(t *testing.T, api *API, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.App().Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func TestAPI_RootEndpoint(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, nil)

	resp, body := request(t, api, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Deflow API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, nil)

	resp, body := request(t, api, http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestAPI_PrepareSeedsCatalog(t *testing.T) {
	t.Parallel()

	api, store := newTestAPI(t, nil)

	require.NoError(t, api.Prepare(context.Background(), true))

	catalog, err := store.PredefinedNodeRepository().GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog, len(nodes.Catalog()))

	require.NoError(t, api.Prepare(context.Background(), true))

	catalog, err = store.PredefinedNodeRepository().GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog, len(nodes.Catalog()))
}

func TestAPI_PrepareSeedsExtraCatalog(t *testing.T) {
	t.Parallel()

	api, store := newTestAPI(t, nil)

	extra := &models.PredefinedNode{ID: "StampAction", Name: "StampAction", Category: models.CategoryTypeAction}
	require.NoError(t, api.Prepare(context.Background(), true, extra))

	got, err := store.PredefinedNodeRepository().GetByID(context.Background(), "StampAction")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.CategoryTypeAction, got.Category)
}

func TestAPI_PrepareRestoresActiveTriggers(t *testing.T) {
	t.Parallel()

	api, store := newTestAPI(t, nil)
	ctx := context.Background()

	require.NoError(t, store.TriggerConfigRepository().Save(ctx, &models.TriggerConfig{
		TriggerID:     "cron-job",
		FlowID:        "flow-1",
		Params:        map[string]any{"time": "@every 1h"},
		Active:        true,
		ActiveJobName: "cron-job-job-1",
	}))
	require.NoError(t, store.TriggerConfigRepository().Save(ctx, &models.TriggerConfig{
		TriggerID: "paused",
		FlowID:    "flow-1",
		Params:    map[string]any{"time": "@every 1h"},
	}))

	require.NoError(t, api.Prepare(ctx, false))
	assert.Equal(t, 1, api.scheduler.Count())

	cfg, err := store.TriggerConfigRepository().GetByTriggerID(ctx, "cron-job")
	require.NoError(t, err)
	assert.NotEqual(t, "cron-job-job-1", cfg.ActiveJobName)
	assert.True(t, api.scheduler.JobExists(cfg.ActiveJobName))
}

func TestAPI_ExecuteFlowPublishesEventsAndSpans(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Bootstrap(context.Background(), nodes.Collections(nodes.Dependencies{Logger: logger})...)

	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	api := NewAPI(logger, store, reg, bus, tp.Tracer("test"))
	t.Cleanup(api.scheduler.StopAll)

	ctx := context.Background()
	require.NoError(t, api.Prepare(ctx, true))

	completed := make(chan struct{}, 1)
	require.NoError(t, bus.Handle(events.FlowExecutionCompletedEvent, func(context.Context, any) error {
		completed <- struct{}{}

		return nil
	}))

	nodeRepo := store.FlowNodeRepository()
	require.NoError(t, nodeRepo.Save(ctx, &models.FlowNode{
		ID: "t1", FlowID: "f1", Name: "HTTPTrigger", Category: models.CategoryTypeTrigger, SuccessFlow: []string{"a1"},
	}))
	require.NoError(t, nodeRepo.Save(ctx, &models.FlowNode{
		ID: "a1", FlowID: "f1", Name: "EchoAction", Category: models.CategoryTypeAction,
	}))

	resp, body := request(t, api, http.MethodPost, "/flow/f1/trigger/t1", map[string]any{"x": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	select {
	case <-completed:
	case <-time.After(5 * time.Second):
		t.Fatal("flow completion event not delivered")
	}

	names := make([]string, 0)
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}

	assert.Contains(t, names, "flow.execute")
}

func TestAPI_PrepareSubscribesToFailureEvents(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("Handle", events.FlowExecutionFailedEvent, mock.Anything).Return(nil)
	bus.On("Handle", events.NodeFailedEvent, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(errors.New("broker unavailable"))

	api, _ := newTestAPI(t, bus)

	err := api.Prepare(context.Background(), false)
	require.EqualError(t, err, "broker unavailable")

	bus.AssertExpectations(t)
}
