// Package nodes wires the built-in node implementations into registry
// collections and describes them as catalog entries.
package nodes

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/action"
	"github.com/deflow/deflow/pkg/nodes/logger"
	"github.com/deflow/deflow/pkg/nodes/trigger"
	"github.com/deflow/deflow/pkg/registry"
	"github.com/deflow/deflow/pkg/scheduler"
)

// Dependencies are the process-level collaborators built-in nodes may need.
// Redis and Kafka nodes are only registered when their client is set.
type Dependencies struct {
	Logger        *slog.Logger
	HTTPClient    *http.Client
	Redis         redis.Cmdable
	KafkaProducer sarama.SyncProducer
	TickLock      scheduler.TickLock
	Environment   string
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}

	return d.Logger
}

// Collections returns one collection per category, in registration order.
func Collections(deps Dependencies) []registry.Collection {
	return []registry.Collection{
		{
			Name:     "builtin:triggers",
			Category: models.CategoryTypeTrigger,
			Load:     static(triggerEntries(deps)),
		},
		{
			Name:     "builtin:actions",
			Category: models.CategoryTypeAction,
			Load:     static(actionEntries(deps)),
		},
		{
			Name:     "builtin:loggers",
			Category: models.CategoryTypeLogger,
			Load:     static(loggerEntries(deps)),
		},
	}
}

func static(entries []registry.Entry) func(context.Context) ([]registry.Entry, error) {
	return func(context.Context) ([]registry.Entry, error) {
		return entries, nil
	}
}

func triggerEntries(deps Dependencies) []registry.Entry {
	return []registry.Entry{
		{Identifier: trigger.HTTPTriggerName, Constructor: trigger.NewHTTPTrigger},
		{
			Identifier: trigger.CronJobTriggerName,
			Constructor: trigger.NewCronJobTriggerConstructor(trigger.CronOptions{
				Logger:      deps.logger().With("module", "cron_trigger"),
				Lock:        deps.TickLock,
				Environment: deps.Environment,
			}),
		},
	}
}

func actionEntries(deps Dependencies) []registry.Entry {
	return []registry.Entry{
		{Identifier: action.EchoActionName, Constructor: action.NewEchoAction},
		{Identifier: action.HTTPRequestActionName, Constructor: action.NewHTTPRequestActionConstructor(deps.HTTPClient)},
		{Identifier: action.TransformActionName, Constructor: action.NewTransformAction},
		{Identifier: action.ConditionActionName, Constructor: action.NewConditionAction},
	}
}

func loggerEntries(deps Dependencies) []registry.Entry {
	entries := []registry.Entry{
		{Identifier: logger.ConsoleLoggerName, Constructor: logger.NewConsoleLoggerConstructor(deps.logger())},
		{Identifier: logger.WebhookLoggerName, Constructor: logger.NewWebhookLoggerConstructor(deps.HTTPClient)},
	}

	if deps.Redis != nil {
		entries = append(entries, registry.Entry{
			Identifier:  logger.RedisLoggerName,
			Constructor: logger.NewRedisLoggerConstructor(deps.Redis),
		})
	}

	if deps.KafkaProducer != nil {
		entries = append(entries, registry.Entry{
			Identifier:  logger.KafkaLoggerName,
			Constructor: logger.NewKafkaLoggerConstructor(deps.KafkaProducer),
		})
	}

	return entries
}

// Catalog lists the predefined-node entries for the built-in nodes. Entry IDs
// equal the registry identifiers.
func Catalog() []*models.PredefinedNode {
	return []*models.PredefinedNode{
		{
			ID:             trigger.HTTPTriggerName,
			Name:           trigger.HTTPTriggerName,
			Description:    "Starts the flow when its trigger endpoint is called",
			Category:       models.CategoryTypeTrigger,
			RequiredParams: map[string]string{},
			Outputs:        map[string]string{"payload": "object"},
		},
		{
			ID:             trigger.CronJobTriggerName,
			Name:           trigger.CronJobTriggerName,
			Description:    "Runs the flow on a cron schedule",
			Category:       models.CategoryTypeTrigger,
			RequiredParams: map[string]string{trigger.ParamTime: "string"},
			Outputs: map[string]string{
				"jobName":       "string",
				"runId":         "string",
				"runCount":      "number",
				"startedAt":     "string",
				"previousRunAt": "string",
				"schedule":      "string",
			},
		},
		{
			ID:             action.EchoActionName,
			Name:           action.EchoActionName,
			Description:    "Passes the payload through unchanged",
			Category:       models.CategoryTypeAction,
			RequiredParams: map[string]string{},
			Outputs:        map[string]string{"payload": "object"},
		},
		{
			ID:             action.HTTPRequestActionName,
			Name:           action.HTTPRequestActionName,
			Description:    "Performs an HTTP request and stores the response in the payload",
			Category:       models.CategoryTypeAction,
			RequiredParams: map[string]string{"url": "string"},
			Outputs:        map[string]string{"response": "object"},
		},
		{
			ID:             action.TransformActionName,
			Name:           action.TransformActionName,
			Description:    "Reshapes the payload with a jq expression",
			Category:       models.CategoryTypeAction,
			RequiredParams: map[string]string{"expression": "string"},
			Outputs:        map[string]string{"result": "object"},
		},
		{
			ID:             action.ConditionActionName,
			Name:           action.ConditionActionName,
			Description:    "Continues on the success flow when a jq condition holds, on the error flow otherwise",
			Category:       models.CategoryTypeAction,
			RequiredParams: map[string]string{"condition": "string"},
			Outputs:        map[string]string{"conditionResult": "boolean"},
		},
		{
			ID:             logger.ConsoleLoggerName,
			Name:           logger.ConsoleLoggerName,
			Description:    "Writes the payload to the service log",
			Category:       models.CategoryTypeLogger,
			RequiredParams: map[string]string{"message": "string"},
			Outputs:        map[string]string{},
		},
		{
			ID:             logger.WebhookLoggerName,
			Name:           logger.WebhookLoggerName,
			Description:    "Posts the payload to a webhook URL",
			Category:       models.CategoryTypeLogger,
			RequiredParams: map[string]string{"url": "string"},
			Outputs:        map[string]string{},
		},
		{
			ID:             logger.RedisLoggerName,
			Name:           logger.RedisLoggerName,
			Description:    "Stores the payload in a Redis list",
			Category:       models.CategoryTypeLogger,
			RequiredParams: map[string]string{"key": "string"},
			Outputs:        map[string]string{},
		},
		{
			ID:             logger.KafkaLoggerName,
			Name:           logger.KafkaLoggerName,
			Description:    "Produces the payload to a Kafka topic",
			Category:       models.CategoryTypeLogger,
			RequiredParams: map[string]string{"topic": "string"},
			Outputs:        map[string]string{},
		},
	}
}
