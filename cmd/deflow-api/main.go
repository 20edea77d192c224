package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/deflow/deflow/pkg/cmd"
	"github.com/deflow/deflow/pkg/config"
	"github.com/deflow/deflow/pkg/log"
	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes"
	"github.com/deflow/deflow/pkg/otelhelper"
	"github.com/deflow/deflow/pkg/scheduler"
)

const (
	defaultPort         = 9091
	tickLockPrefix      = "deflow:cron:"
	outboundHTTPTimeout = 60 * time.Second
)

func main() {
	command := &cli.Command{
		Name:                  "deflow-api",
		Usage:                 "Create, run and schedule flows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL: a postgres:// URL or a file store directory",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing node plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the cron tick lock and the Redis logger node",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka brokers for the Kafka logger node and event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Execution event bus (none, gochannel, kafka)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "environment",
				Usage:   "Environment name reported in cron payloads",
				Value:   "development",
				Sources: cli.EnvVars("DEFLOW_ENV"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.BoolFlag{
				Name:    "seed",
				Usage:   "Upsert the built-in node catalog at start",
				Value:   true,
				Sources: cli.EnvVars("SEED_CATALOG"),
			},
			&cli.StringFlag{
				Name:    "catalog-file",
				Usage:   "YAML file with extra predefined nodes seeded next to the built-in catalog",
				Sources: cli.EnvVars("CATALOG_FILE"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		log.WithModule("api").Error("Deflow API stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Deflow API")

	var tracer trace.Tracer

	if command.Bool("otel-enabled") {
		tp, err := otelhelper.NewTracerProvider(ctx, "deflow-api")
		if err != nil {
			return err
		}

		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to shut down tracer provider", "error", err)
			}
		}()

		tracer = tp.Tracer("deflow")
	}

	brokers := cmd.SplitList(command.String("kafka-brokers"))

	deps := nodes.Dependencies{
		Logger:      logger,
		HTTPClient:  &http.Client{Timeout: outboundHTTPTimeout},
		Environment: command.String("environment"),
	}

	redisClient, err := cmd.NewRedisClient(command.String("redis-url"))
	if err != nil {
		return err
	}

	if redisClient != nil {
		defer redisClient.Close()

		deps.Redis = redisClient
		deps.TickLock = scheduler.NewRedisTickLock(redisClient, tickLockPrefix)
	}

	producer, err := cmd.NewKafkaProducer(brokers)
	if err != nil {
		return err
	}

	if producer != nil {
		defer producer.Close()

		deps.KafkaProducer = producer
	}

	registry := cmd.NewRegistry(ctx, logger, command.String("plugins-path"), deps)

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger, brokers)
	if err != nil {
		return err
	}

	if eventBus != nil {
		defer func() {
			if err := eventBus.Close(); err != nil {
				logger.Error("Failed to close event bus", "error", err)
			}
		}()
	}

	var extra []*models.PredefinedNode

	if path := command.String("catalog-file"); path != "" {
		extra, err = config.LoadCatalog(path)
		if err != nil {
			return err
		}
	}

	api := NewAPI(logger, persistence, registry, eventBus, tracer)

	if err := api.Prepare(ctx, command.Bool("seed"), extra...); err != nil {
		return err
	}

	port := command.Int("port")
	logger.InfoContext(ctx, "Deflow API listening", "port", port)

	return api.Start(ctx, port)
}
