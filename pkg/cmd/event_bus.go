package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/deflow/deflow/pkg/channels/gochannel"
	"github.com/deflow/deflow/pkg/channels/kafka"
	"github.com/deflow/deflow/pkg/eventbus"
)

// NewEventBus creates the execution event bus. Provider "none" or "" returns
// a nil bus, which disables event publishing.
//
//nolint:ireturn // nil is a valid result for a disabled bus
func NewEventBus(provider string, logger *slog.Logger, brokers []string) (eventbus.EventBus, error) {
	wlogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "none":
		return nil, nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wlogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wlogger, brokers, "deflow")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
