// Package workflow runs flows and manages the deployment of their triggers.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deflow/deflow/pkg/eventbus"
	"github.com/deflow/deflow/pkg/events"
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/otelhelper"
	"github.com/deflow/deflow/pkg/persistence"
	"github.com/deflow/deflow/pkg/registry"
	"github.com/deflow/deflow/pkg/template"
)

var (
	ErrTriggerNodeNotFound   = errors.New("trigger node not found")
	ErrNotTriggerNode        = errors.New("node is not a trigger node")
	ErrEmptySuccessFlow      = errors.New("trigger node has no success flow defined")
	ErrFlowMismatch          = errors.New("trigger node does not belong to the specified flow")
	ErrNodeNotRegistered     = errors.New("node is not registered")
	ErrInvalidTriggerPayload = errors.New("invalid trigger payload")
)

// ErrorKeySuffix is appended to a failed action's name to form the payload key
// holding its error message.
const ErrorKeySuffix = "Error"

type Executor struct {
	logger    *slog.Logger
	registry  *registry.Registry
	nodes     persistence.FlowNodeRepository
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
}

type ExecutorOption func(*Executor)

// WithEventPublisher publishes execution events. Publish failures are logged
// and never fail a run.
func WithEventPublisher(publisher eventbus.EventPublisher) ExecutorOption {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

func NewExecutor(
	logger *slog.Logger,
	registry *registry.Registry,
	nodes persistence.FlowNodeRepository,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		logger:   logger.With("module", "flow_executor"),
		registry: registry,
		nodes:    nodes,
		tracer:   otelhelper.NoopTracer(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// run is the state of one ExecuteFlow call.
type run struct {
	id      string
	flowID  string
	raw     map[string]any
	logger  *slog.Logger
	message *models.Message
	queue   []*models.FlowNode
	visited int
}

// ExecuteFlow runs the flow breadth-first from triggerNodeID. Nodes run one at
// a time in FIFO order and share a single current message. Action failures
// are recorded in the message and routed to the error flow; they do not make
// ExecuteFlow fail.
func (e *Executor) ExecuteFlow(ctx context.Context, rawPayload map[string]any, triggerNodeID, flowID string) error {
	r := &run{
		id:     uuid.NewString(),
		flowID: flowID,
		raw:    rawPayload,
	}
	r.logger = e.logger.With("flow_id", flowID, "trigger_id", triggerNodeID, "execution_id", r.id)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "flow.execute",
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.String(otelhelper.TriggerIDKey, triggerNodeID),
		attribute.String(otelhelper.ExecutionIDKey, r.id),
	)
	defer span.End()

	trigger, err := e.triggerNode(ctx, triggerNodeID, flowID)
	if err != nil {
		r.logger.WarnContext(ctx, "Flow execution rejected", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	start := time.Now()

	e.publish(ctx, r, events.FlowExecutionStarted{
		BaseEvent:     events.NewBaseEvent(uuid.NewString(), events.FlowExecutionStartedEvent, flowID),
		ExecutionID:   r.id,
		TriggerNodeID: triggerNodeID,
	})

	r.logger.InfoContext(ctx, "Starting flow execution")

	r.queue = append(r.queue, trigger)

	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, r, span, start, fmt.Errorf("flow execution cancelled: %w", err))
		}

		node := r.queue[0]
		r.queue = r.queue[1:]

		if err := e.step(ctx, r, node); err != nil {
			return e.fail(ctx, r, span, start, err)
		}
	}

	span.SetAttributes(attribute.Int(otelhelper.NodesExecutedKey, r.visited))
	r.logger.InfoContext(ctx, "Flow execution completed", "nodes_executed", r.visited)

	e.publish(ctx, r, events.FlowExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(uuid.NewString(), events.FlowExecutionCompletedEvent, flowID),
		ExecutionID:   r.id,
		NodesExecuted: r.visited,
		Duration:      time.Since(start),
	})

	return nil
}

func (e *Executor) triggerNode(ctx context.Context, triggerNodeID, flowID string) (*models.FlowNode, error) {
	node, err := e.nodes.GetByID(ctx, triggerNodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trigger node %s: %w", triggerNodeID, err)
	}

	switch {
	case node == nil:
		return nil, fmt.Errorf("%w: %s", ErrTriggerNodeNotFound, triggerNodeID)
	case !node.IsTrigger():
		return nil, fmt.Errorf("%w: %s", ErrNotTriggerNode, triggerNodeID)
	case len(node.SuccessFlow) == 0:
		return nil, fmt.Errorf("%w: %s", ErrEmptySuccessFlow, triggerNodeID)
	case node.FlowID != flowID:
		return nil, fmt.Errorf("%w: %s is in flow %s", ErrFlowMismatch, triggerNodeID, node.FlowID)
	}

	return node, nil
}

func (e *Executor) fail(ctx context.Context, r *run, span trace.Span, start time.Time, err error) error {
	r.logger.ErrorContext(ctx, "Flow execution failed", "error", err, "nodes_executed", r.visited)
	otelhelper.SetError(span, err)

	e.publish(ctx, r, events.FlowExecutionFailed{
		BaseEvent:   events.NewBaseEvent(uuid.NewString(), events.FlowExecutionFailedEvent, r.flowID),
		ExecutionID: r.id,
		Error:       err.Error(),
		Duration:    time.Since(start),
	})

	return err
}

func (e *Executor) step(ctx context.Context, r *run, node *models.FlowNode) error {
	logger := r.logger.With("node_id", node.ID, "node_name", node.Name, "category", node.Category)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "flow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeNameKey, node.Name),
		attribute.String(otelhelper.NodeCategoryKey, string(node.Category)),
	)
	defer span.End()

	var payload map[string]any
	if r.message != nil {
		payload = r.message.Payload
	}

	params := template.SubstituteParams(node.Params, payload)

	if len(node.Variables) > 0 {
		if r.message == nil {
			r.message = models.NewMessage(nil, nil)
		}

		// Every value sees the payload as it was before this node.
		resolved := make(map[string]string, len(node.Variables))
		for key, value := range node.Variables {
			resolved[key] = template.Substitute(value, payload)
		}

		for _, key := range slices.Sorted(maps.Keys(resolved)) {
			r.message.SetVariable(key, resolved[key])
		}
	}

	instance, err := e.registry.Create(node.Name, params)
	if err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to create node %s (%s): %w", node.ID, node.Name, err)
	}

	if instance == nil {
		err := fmt.Errorf("%w: %s (node %s)", ErrNodeNotRegistered, node.Name, node.ID)
		otelhelper.SetError(span, err)

		return err
	}

	r.visited++
	start := time.Now()

	switch instance.Category {
	case models.CategoryTypeTrigger:
		msg, err := instance.Trigger().ValidatePayload(ctx, r.raw)
		if err != nil {
			otelhelper.SetError(span, err)

			return fmt.Errorf("%w: %s: %w", ErrInvalidTriggerPayload, node.Name, err)
		}

		r.message = msg
		e.enqueue(ctx, r, logger, node.SuccessFlow)

	case models.CategoryTypeAction:
		msg, err := instance.Action().Execute(ctx, r.message)
		if err != nil {
			errorKey := instance.Name() + ErrorKeySuffix

			logger.WarnContext(ctx, "Action failed, following error flow", "error", err, "error_key", errorKey)
			otelhelper.SetError(span, err)

			r.message = r.message.WithError(errorKey, err.Error())

			e.publish(ctx, r, events.NodeFailed{
				BaseEvent:   events.NewBaseEvent(uuid.NewString(), events.NodeFailedEvent, r.flowID),
				ExecutionID: r.id,
				NodeID:      node.ID,
				NodeName:    node.Name,
				Error:       err.Error(),
				ErrorKey:    errorKey,
			})

			e.enqueue(ctx, r, logger, node.ErrorFlow)

			return nil
		}

		if msg != nil {
			r.message = msg
		}

		e.enqueue(ctx, r, logger, node.SuccessFlow)

	case models.CategoryTypeLogger:
		if r.message != nil {
			if _, err := instance.Logger().Execute(ctx, r.message); err != nil {
				logger.ErrorContext(ctx, "Logger failed", "error", err)
				otelhelper.SetError(span, err)
			}
		}
	}

	logger.DebugContext(ctx, "Node executed")

	e.publish(ctx, r, events.NodeExecuted{
		BaseEvent:   events.NewBaseEvent(uuid.NewString(), events.NodeExecutedEvent, r.flowID),
		ExecutionID: r.id,
		NodeID:      node.ID,
		NodeName:    node.Name,
		Category:    string(node.Category),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	return nil
}

// enqueue appends successors in order. Dangling or cross-flow references are
// skipped.
func (e *Executor) enqueue(ctx context.Context, r *run, logger *slog.Logger, ids []string) {
	for _, id := range ids {
		next, err := e.nodes.GetByID(ctx, id)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load successor node", "successor_id", id, "error", err)

			continue
		}

		if next == nil || next.FlowID != r.flowID {
			logger.WarnContext(ctx, "Skipping missing successor node", "successor_id", id)

			continue
		}

		r.queue = append(r.queue, next)
	}
}

func (e *Executor) publish(ctx context.Context, r *run, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, r.id, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
