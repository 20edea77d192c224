// Package logger provides the built-in logger (sink) nodes.
package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
	"github.com/deflow/deflow/pkg/template"
)

const ConsoleLoggerName = "ConsoleLogger"

// ConsoleLogger writes the envelope to the process log.
type ConsoleLogger struct {
	logger  *slog.Logger
	message string
	level   slog.Level
}

func NewConsoleLoggerConstructor(logger *slog.Logger) protocol.Constructor {
	return func(p map[string]any) (protocol.Node, error) {
		return &ConsoleLogger{
			logger:  logger.With("node", ConsoleLoggerName),
			message: params.String(p, "message", "Flow message"),
			level:   parseLevel(params.String(p, "level", "info")),
		}, nil
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *ConsoleLogger) Name() string        { return ConsoleLoggerName }
func (l *ConsoleLogger) Description() string { return "Writes the payload to the service log" }

func (l *ConsoleLogger) Execute(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return nil, nil
	}

	l.logger.Log(ctx, l.level, template.Substitute(l.message, msg.Payload),
		"payload", msg.Payload,
		"metadata", msg.Metadata,
	)

	return msg, nil
}
