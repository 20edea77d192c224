// Package main provides the Deflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/deflow/deflow/pkg/eventbus"
	"github.com/deflow/deflow/pkg/events"
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes"
	"github.com/deflow/deflow/pkg/otelhelper"
	"github.com/deflow/deflow/pkg/persistence"
	"github.com/deflow/deflow/pkg/registry"
	"github.com/deflow/deflow/pkg/scheduler"
	"github.com/deflow/deflow/pkg/services"
	"github.com/deflow/deflow/pkg/web"
	"github.com/deflow/deflow/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	scheduler   *scheduler.Scheduler
	tracer      trace.Tracer
	validate    *validator.Validate

	executor   *workflow.Executor
	deployer   *workflow.Deployer
	predefined *services.PredefinedNodes
}

// NewAPI wires services, the executor and the deployer. eventBus may be nil.
func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	a := &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		scheduler:   scheduler.New(logger),
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}

	executorOpts := []workflow.ExecutorOption{workflow.WithTracer(tracer)}
	deployerOpts := []workflow.DeployerOption{}

	if eventBus != nil {
		executorOpts = append(executorOpts, workflow.WithEventPublisher(eventBus))
		deployerOpts = append(deployerOpts, workflow.WithDeployEventPublisher(eventBus))
	}

	a.executor = workflow.NewExecutor(logger, registry, persistence.FlowNodeRepository(), executorOpts...)
	a.deployer = workflow.NewDeployer(
		logger,
		registry,
		persistence.FlowNodeRepository(),
		persistence.TriggerConfigRepository(),
		a.scheduler,
		a.executor,
		deployerOpts...,
	)
	a.predefined = services.NewPredefinedNodes(logger, persistence)

	return a
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		services.NewFlow(a.persistence),
		services.NewNode(a.persistence),
		a.predefined,
		a.executor,
		a.deployer,
		a.validate,
		a.registry,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Deflow API")
	})

	handlers.Register(app)

	return app
}

// Prepare seeds the built-in catalog plus extra when asked, restores active
// trigger configs and starts logging failure events from the bus.
func (a *API) Prepare(ctx context.Context, seed bool, extra ...*models.PredefinedNode) error {
	if seed {
		if _, err := a.predefined.Seed(ctx, append(nodes.Catalog(), extra...)); err != nil {
			return err
		}
	}

	if _, err := a.deployer.RestoreTriggers(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to restore triggers", "error", err)
	}

	if a.eventBus != nil {
		return a.watchFailures(ctx)
	}

	return nil
}

func (a *API) watchFailures(ctx context.Context) error {
	err := a.eventBus.Handle(events.FlowExecutionFailedEvent, func(ctx context.Context, event any) error {
		if e, ok := event.(*events.FlowExecutionFailed); ok {
			a.logger.WarnContext(ctx, "Flow execution failed",
				"flow_id", e.FlowID, "execution_id", e.ExecutionID, "error", e.Error)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = a.eventBus.Handle(events.NodeFailedEvent, func(ctx context.Context, event any) error {
		if e, ok := event.(*events.NodeFailed); ok {
			a.logger.WarnContext(ctx, "Flow node failed",
				"flow_id", e.FlowID, "execution_id", e.ExecutionID, "node_id", e.NodeID, "error", e.Error)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return a.eventBus.Subscribe(ctx)
}

// Start serves until ctx is cancelled, then stops every scheduled job.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shut down HTTP server", "error", err)
		}
	}()

	defer a.scheduler.StopAll()

	return app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}
