// Package eventbus carries flow run and trigger deployment events between
// deflow processes. The executor publishes flow.execution.* and node.* events
// keyed by execution ID; the deployer publishes trigger.deployed and
// trigger.undeployed. The API process consumes failures to log them.
package eventbus

import (
	"context"

	"github.com/deflow/deflow/pkg/events"
)

// Event is any value from pkg/events; its type selects the handler on the
// consuming side.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is what the executor and deployer need. key groups the
// events of one run or one deploy.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches decoded events to one handler per event type.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the concrete event struct.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
