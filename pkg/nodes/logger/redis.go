package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
)

const (
	RedisLoggerName = "RedisLogger"
	DefaultRedisKey = "deflow:logs"
)

// RedisLogger appends the envelope to a Redis list and, when a channel is
// configured, publishes it there as well.
type RedisLogger struct {
	client  redis.Cmdable
	key     string
	channel string
	maxLen  int
}

func NewRedisLoggerConstructor(client redis.Cmdable) protocol.Constructor {
	return func(p map[string]any) (protocol.Node, error) {
		if client == nil {
			return nil, errors.New("redis logger requires a redis client")
		}

		maxLen, err := params.Int(p, "maxLength", 0)
		if err != nil {
			return nil, err
		}

		return &RedisLogger{
			client:  client,
			key:     params.String(p, "key", DefaultRedisKey),
			channel: params.String(p, "channel", ""),
			maxLen:  maxLen,
		}, nil
	}
}

func (l *RedisLogger) Name() string        { return RedisLoggerName }
func (l *RedisLogger) Description() string { return "Stores the payload in a Redis list" }

func (l *RedisLogger) Execute(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return nil, nil
	}

	entry, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, l.key, entry)

		if l.maxLen > 0 {
			pipe.LTrim(ctx, l.key, int64(-l.maxLen), -1)
		}

		if l.channel != "" {
			pipe.Publish(ctx, l.channel, entry)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write to redis key %s: %w", l.key, err)
	}

	return msg, nil
}
