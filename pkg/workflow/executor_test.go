package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/deflow/deflow/pkg/events"
	"github.com/deflow/deflow/pkg/mocks"
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/action"
	"github.com/deflow/deflow/pkg/nodes/trigger"
	"github.com/deflow/deflow/pkg/testutil"
	"github.com/deflow/deflow/pkg/workflow"
)

func recordingAction(rec *recorder, name string, delay time.Duration) *testutil.FuncAction {
	return &testutil.FuncAction{
		NodeName: name,
		Fn: func(_ context.Context, msg *models.Message) (*models.Message, error) {
			rec.add(name + " start")
			time.Sleep(delay)
			rec.add(name + " end")

			return msg, nil
		},
	}
}

func recordingLogger(rec *recorder, name string) *testutil.FuncAction {
	return &testutil.FuncAction{
		NodeName: name,
		Fn: func(_ context.Context, msg *models.Message) (*models.Message, error) {
			rec.add(name)

			return msg, nil
		},
	}
}

func TestExecuteFlow_EndToEnd(t *testing.T) {
	f := newFixture(t)
	capture := &testutil.CaptureLogger{NodeName: "CaptureLogger"}

	f.registry.Register(trigger.HTTPTriggerName, trigger.NewHTTPTrigger, models.CategoryTypeTrigger)
	f.registry.Register(action.EchoActionName, action.NewEchoAction, models.CategoryTypeAction)
	f.registry.Register("CaptureLogger", testutil.Constructor(capture), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("HTTPTrigger"), testutil.WithSuccess("a")),
		testutil.CreateTestNode(testutil.WithID("a"), testutil.WithAction("EchoAction"), testutil.WithSuccess("l")),
		testutil.CreateTestNode(testutil.WithID("l"), testutil.WithLogger("CaptureLogger")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	err := executor.ExecuteFlow(context.Background(), map[string]any{"value": 7}, "t", "flow-1")
	require.NoError(t, err)

	messages := capture.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, 7, messages[0].Payload["value"])
	assert.Equal(t, trigger.HTTPTriggerID, messages[0].Metadata["triggerId"])
}

func TestExecuteFlow_SequentialFIFOOrder(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("A1", testutil.Constructor(recordingAction(rec, "A1", 20*time.Millisecond)), models.CategoryTypeAction)
	f.registry.Register("A2", testutil.Constructor(recordingAction(rec, "A2", 0)), models.CategoryTypeAction)
	f.registry.Register("L1", testutil.Constructor(recordingLogger(rec, "L1")), models.CategoryTypeLogger)
	f.registry.Register("L2", testutil.Constructor(recordingLogger(rec, "L2")), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("a1", "a2")),
		testutil.CreateTestNode(testutil.WithID("a1"), testutil.WithAction("A1"), testutil.WithSuccess("l1")),
		testutil.CreateTestNode(testutil.WithID("a2"), testutil.WithAction("A2"), testutil.WithSuccess("l2")),
		testutil.CreateTestNode(testutil.WithID("l1"), testutil.WithLogger("L1")),
		testutil.CreateTestNode(testutil.WithID("l2"), testutil.WithLogger("L2")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	require.NoError(t, executor.ExecuteFlow(context.Background(), map[string]any{}, "t", "flow-1"))

	assert.Equal(t, []string{"A1 start", "A1 end", "A2 start", "A2 end", "L1", "L2"}, rec.all())
}

func TestExecuteFlow_ErrorFlowBranching(t *testing.T) {
	f := newFixture(t)
	onError := &testutil.CaptureLogger{NodeName: "OnError"}
	onSuccess := &testutil.CaptureLogger{NodeName: "OnSuccess"}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("PayAction", testutil.Constructor(testutil.FailingAction("PayAction", errors.New("insufficient funds"))), models.CategoryTypeAction)
	f.registry.Register("OnError", testutil.Constructor(onError), models.CategoryTypeLogger)
	f.registry.Register("OnSuccess", testutil.Constructor(onSuccess), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("pay")),
		testutil.CreateTestNode(testutil.WithID("pay"), testutil.WithAction("PayAction"),
			testutil.WithSuccess("ok"), testutil.WithErrorFlow("ko")),
		testutil.CreateTestNode(testutil.WithID("ok"), testutil.WithLogger("OnSuccess")),
		testutil.CreateTestNode(testutil.WithID("ko"), testutil.WithLogger("OnError")),
	)

	publisher := &recordingPublisher{}
	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository(),
		workflow.WithEventPublisher(publisher))

	err := executor.ExecuteFlow(context.Background(), map[string]any{"amount": 10}, "t", "flow-1")
	require.NoError(t, err, "action failures must not fail the run")

	assert.Empty(t, onSuccess.Messages())

	messages := onError.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "insufficient funds", messages[0].Payload["PayActionError"])
	assert.Equal(t, 10, messages[0].Payload["amount"])
	assert.Equal(t, "T", messages[0].Metadata["triggerId"])

	assert.Contains(t, publisher.types(), events.NodeFailedEvent)
	assert.Contains(t, publisher.types(), events.FlowExecutionCompletedEvent)
}

func TestExecuteFlow_FailedActionWithoutErrorFlowEndsBranch(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("Fail", testutil.Constructor(testutil.FailingAction("Fail", errors.New("boom"))), models.CategoryTypeAction)
	f.registry.Register("A2", testutil.Constructor(recordingAction(rec, "A2", 0)), models.CategoryTypeAction)
	f.registry.Register("L", testutil.Constructor(recordingLogger(rec, "L")), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("fail", "a2")),
		testutil.CreateTestNode(testutil.WithID("fail"), testutil.WithAction("Fail"), testutil.WithSuccess("l")),
		testutil.CreateTestNode(testutil.WithID("a2"), testutil.WithAction("A2")),
		testutil.CreateTestNode(testutil.WithID("l"), testutil.WithLogger("L")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	require.NoError(t, executor.ExecuteFlow(context.Background(), map[string]any{}, "t", "flow-1"))
	assert.Equal(t, []string{"A2 start", "A2 end"}, rec.all())
}

func TestExecuteFlow_VariableSubstitution(t *testing.T) {
	f := newFixture(t)
	capture := &testutil.CaptureLogger{NodeName: "Capture"}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register(action.EchoActionName, action.NewEchoAction, models.CategoryTypeAction)
	f.registry.Register("Capture", testutil.Constructor(capture), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("a")),
		testutil.CreateTestNode(testutil.WithID("a"), testutil.WithAction("EchoAction"), testutil.WithSuccess("l"),
			testutil.WithVariables(map[string]string{
				"msg":     "Sent {{amount}}",
				"who":     "{{user.name}}",
				"missing": "value {{missing}}",
			})),
		testutil.CreateTestNode(testutil.WithID("l"), testutil.WithLogger("Capture")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	raw := map[string]any{"amount": 42, "user": map[string]any{"name": "ana"}}
	require.NoError(t, executor.ExecuteFlow(context.Background(), raw, "t", "flow-1"))

	messages := capture.Messages()
	require.Len(t, messages, 1)

	vars := messages[0].Variables()
	assert.Equal(t, "Sent 42", vars["msg"])
	assert.Equal(t, "ana", vars["who"])
	assert.Equal(t, "value {{missing}}", vars["missing"])
}

func TestExecuteFlow_VariablesSeePayloadBeforeNode(t *testing.T) {
	f := newFixture(t)
	capture := &testutil.CaptureLogger{NodeName: "Capture"}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register(action.EchoActionName, action.NewEchoAction, models.CategoryTypeAction)
	f.registry.Register("Capture", testutil.Constructor(capture), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("a")),
		testutil.CreateTestNode(testutil.WithID("a"), testutil.WithAction("EchoAction"), testutil.WithSuccess("b"),
			testutil.WithVariables(map[string]string{
				"first":  "{{amount}}",
				"second": "{{variables.first}}",
			})),
		testutil.CreateTestNode(testutil.WithID("b"), testutil.WithAction("EchoAction"), testutil.WithSuccess("l"),
			testutil.WithVariables(map[string]string{"third": "{{variables.first}}"})),
		testutil.CreateTestNode(testutil.WithID("l"), testutil.WithLogger("Capture")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	const runs = 50

	for range runs {
		require.NoError(t, executor.ExecuteFlow(context.Background(), map[string]any{"amount": 42}, "t", "flow-1"))
	}

	messages := capture.Messages()
	require.Len(t, messages, runs)

	for _, msg := range messages {
		vars := msg.Variables()
		assert.Equal(t, "42", vars["first"])
		assert.Equal(t, "{{variables.first}}", vars["second"])
		assert.Equal(t, "42", vars["third"])
	}
}

func TestExecuteFlow_ParamsSubstitutedFromCurrentPayload(t *testing.T) {
	f := newFixture(t)
	params := &testutil.ParamsRecorder{}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("A", params.Wrap(action.NewEchoAction), models.CategoryTypeAction)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("a")),
		testutil.CreateTestNode(testutil.WithID("a"), testutil.WithAction("A"), testutil.WithParams(map[string]any{
			"to":     "{{user.name}}",
			"note":   "amount={{amount}} {{unknown.path}}",
			"nested": map[string]any{"id": "{{user.id}}"},
			"count":  5,
		})),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	raw := map[string]any{"amount": 3, "user": map[string]any{"name": "bob", "id": "u-1"}}
	require.NoError(t, executor.ExecuteFlow(context.Background(), raw, "t", "flow-1"))

	recorded := params.Params()
	require.Len(t, recorded, 1)
	assert.Equal(t, "bob", recorded[0]["to"])
	assert.Equal(t, "amount=3 {{unknown.path}}", recorded[0]["note"])
	assert.Equal(t, map[string]any{"id": "u-1"}, recorded[0]["nested"])
	assert.InDelta(t, 5, recorded[0]["count"], 0)
}

func TestExecuteFlow_SharedEnvelopeAcrossSiblings(t *testing.T) {
	f := newFixture(t)

	var seen any

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("Writer", testutil.Constructor(&testutil.FuncAction{
		NodeName: "Writer",
		Fn: func(_ context.Context, msg *models.Message) (*models.Message, error) {
			out := msg.Clone()
			out.Payload["branch"] = "writer"

			return out, nil
		},
	}), models.CategoryTypeAction)
	f.registry.Register("Reader", testutil.Constructor(&testutil.FuncAction{
		NodeName: "Reader",
		Fn: func(_ context.Context, msg *models.Message) (*models.Message, error) {
			seen = msg.Payload["branch"]

			return msg, nil
		},
	}), models.CategoryTypeAction)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("w", "r")),
		testutil.CreateTestNode(testutil.WithID("w"), testutil.WithAction("Writer")),
		testutil.CreateTestNode(testutil.WithID("r"), testutil.WithAction("Reader")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	require.NoError(t, executor.ExecuteFlow(context.Background(), map[string]any{}, "t", "flow-1"))
	assert.Equal(t, "writer", seen, "later siblings observe the message left by earlier ones")
}

func TestExecuteFlow_Preconditions(t *testing.T) {
	f := newFixture(t)
	params := &testutil.ParamsRecorder{}

	f.registry.Register("T", params.Wrap(testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"})), models.CategoryTypeTrigger)
	f.registry.Register(action.EchoActionName, params.Wrap(action.NewEchoAction), models.CategoryTypeAction)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("action"), testutil.WithSuccess("x")),
		testutil.CreateTestNode(testutil.WithID("lonely"), testutil.WithTrigger("T")),
		testutil.CreateTestNode(testutil.WithID("other"), testutil.WithTrigger("T"), testutil.WithFlow("flow-2"), testutil.WithSuccess("x")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	tests := []struct {
		name    string
		nodeID  string
		wantErr error
	}{
		{"missing node", "nope", workflow.ErrTriggerNodeNotFound},
		{"not a trigger", "action", workflow.ErrNotTriggerNode},
		{"empty success flow", "lonely", workflow.ErrEmptySuccessFlow},
		{"other flow", "other", workflow.ErrFlowMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := executor.ExecuteFlow(context.Background(), map[string]any{}, tt.nodeID, "flow-1")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, params.Params(), "no node may be constructed before preconditions pass")
}

func TestExecuteFlow_UnregisteredNodeAbortsRun(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("A1", testutil.Constructor(recordingAction(rec, "A1", 0)), models.CategoryTypeAction)
	f.registry.Register("L", testutil.Constructor(recordingLogger(rec, "L")), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("a1", "ghost")),
		testutil.CreateTestNode(testutil.WithID("a1"), testutil.WithAction("A1"), testutil.WithSuccess("l")),
		testutil.CreateTestNode(testutil.WithID("ghost"), testutil.WithAction("GhostAction")),
		testutil.CreateTestNode(testutil.WithID("l"), testutil.WithLogger("L")),
	)

	publisher := &recordingPublisher{}
	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository(),
		workflow.WithEventPublisher(publisher))

	err := executor.ExecuteFlow(context.Background(), map[string]any{}, "t", "flow-1")
	require.ErrorIs(t, err, workflow.ErrNodeNotRegistered)

	assert.Equal(t, []string{"A1 start", "A1 end"}, rec.all(), "the run stops when the unresolved node is dequeued")
	assert.Contains(t, publisher.types(), events.FlowExecutionFailedEvent)
}

func TestExecuteFlow_TriggerRejectsPayload(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}

	f.registry.Register("Strict", testutil.Constructor(testutil.RejectingTrigger{}), models.CategoryTypeTrigger)
	f.registry.Register("A", testutil.Constructor(recordingAction(rec, "A", 0)), models.CategoryTypeAction)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("Strict"), testutil.WithSuccess("a")),
		testutil.CreateTestNode(testutil.WithID("a"), testutil.WithAction("A")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	err := executor.ExecuteFlow(context.Background(), map[string]any{}, "t", "flow-1")
	require.ErrorIs(t, err, workflow.ErrInvalidTriggerPayload)
	assert.Empty(t, rec.all())
}

func TestExecuteFlow_LoggerErrorDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	failing := &testutil.CaptureLogger{NodeName: "Broken", Err: errors.New("sink down")}
	healthy := &testutil.CaptureLogger{NodeName: "Healthy"}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("Broken", testutil.Constructor(failing), models.CategoryTypeLogger)
	f.registry.Register("Healthy", testutil.Constructor(healthy), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("b", "h")),
		testutil.CreateTestNode(testutil.WithID("b"), testutil.WithLogger("Broken")),
		testutil.CreateTestNode(testutil.WithID("h"), testutil.WithLogger("Healthy")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	require.NoError(t, executor.ExecuteFlow(context.Background(), map[string]any{"k": "v"}, "t", "flow-1"))
	assert.Len(t, failing.Messages(), 1)
	assert.Len(t, healthy.Messages(), 1)
}

func TestExecuteFlow_SkipsDanglingSuccessors(t *testing.T) {
	f := newFixture(t)
	capture := &testutil.CaptureLogger{NodeName: "Capture"}

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register("Capture", testutil.Constructor(capture), models.CategoryTypeLogger)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("deleted", "foreign", "l")),
		testutil.CreateTestNode(testutil.WithID("foreign"), testutil.WithLogger("Capture"), testutil.WithFlow("flow-2")),
		testutil.CreateTestNode(testutil.WithID("l"), testutil.WithLogger("Capture")),
	)

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	require.NoError(t, executor.ExecuteFlow(context.Background(), map[string]any{}, "t", "flow-1"))
	assert.Len(t, capture.Messages(), 1)
}

func TestExecuteFlow_CancelledContext(t *testing.T) {
	f := newFixture(t)

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.save(t, testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("x")))

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := executor.ExecuteFlow(ctx, map[string]any{}, "t", "flow-1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecuteFlow_Spans(t *testing.T) {
	f := newFixture(t)

	f.registry.Register("T", testutil.Constructor(&testutil.PassthroughTrigger{NodeName: "T"}), models.CategoryTypeTrigger)
	f.registry.Register(action.EchoActionName, action.NewEchoAction, models.CategoryTypeAction)

	f.save(t,
		testutil.CreateTestNode(testutil.WithID("t"), testutil.WithTrigger("T"), testutil.WithSuccess("a")),
		testutil.CreateTestNode(testutil.WithID("a")),
	)

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	executor := workflow.NewExecutor(testLogger(), f.registry, f.store.FlowNodeRepository(),
		workflow.WithTracer(tp.Tracer("test")))

	require.NoError(t, executor.ExecuteFlow(context.Background(), map[string]any{}, "t", "flow-1"))

	names := make([]string, 0)
	for _, span := range spans.Ended() {
		names = append(names, span.Name())
	}

	assert.Equal(t, []string{"flow.node", "flow.node", "flow.execute"}, names)
}

func TestExecuteFlow_RepositoryFailure(t *testing.T) {
	repo := &mocks.MockFlowNodeRepository{}
	repo.On("GetByID", mock.Anything, "trigger").Return(nil, errors.New("connection refused"))

	executor := workflow.NewExecutor(testLogger(), newFixture(t).registry, repo)

	err := executor.ExecuteFlow(context.Background(), map[string]any{}, "trigger", "flow-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, workflow.ErrTriggerNodeNotFound)

	repo.AssertExpectations(t)
}
