package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/protocol"
)

func testMessage() *models.Message {
	return models.NewMessage(
		map[string]any{"amount": 42.0, "to": "alice"},
		map[string]any{"triggerId": "http-trigger"},
	)
}

func execute(t *testing.T, ctor protocol.Constructor, p map[string]any, msg *models.Message) (*models.Message, error) {
	t.Helper()

	node, err := ctor(p)
	require.NoError(t, err)

	l, ok := node.(protocol.LoggerNode)
	require.True(t, ok)

	return l.Execute(context.Background(), msg)
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	out, err := execute(t, NewConsoleLoggerConstructor(logger),
		map[string]any{"message": "Sent {{amount}} to {{to}}", "level": "warn"}, testMessage())
	require.NoError(t, err)
	require.NotNil(t, out)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "Sent 42 to alice", record["msg"])
	assert.Equal(t, ConsoleLoggerName, record["node"])
}

func TestConsoleLogger_NilMessage(t *testing.T) {
	out, err := execute(t, NewConsoleLoggerConstructor(slog.Default()), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestWebhookLogger(t *testing.T) {
	var received models.Message

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	_, err := execute(t, NewWebhookLoggerConstructor(server.Client()),
		map[string]any{"url": server.URL, "headers": map[string]any{"Authorization": "token"}}, testMessage())
	require.NoError(t, err)

	assert.Equal(t, "alice", received.Payload["to"])
	assert.Equal(t, "http-trigger", received.Metadata["triggerId"])
}

func TestWebhookLogger_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := execute(t, NewWebhookLoggerConstructor(nil), map[string]any{"url": server.URL}, testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = NewWebhookLoggerConstructor(nil)(map[string]any{})
	require.Error(t, err)
}

func TestRedisLogger(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "flow-events")
	t.Cleanup(func() { _ = sub.Close() })

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ctor := NewRedisLoggerConstructor(client)
	p := map[string]any{"key": "flow:log", "channel": "flow-events", "maxLength": 2.0}

	for range 3 {
		_, err = execute(t, ctor, p, testMessage())
		require.NoError(t, err)
	}

	entries, err := mr.List("flow:log")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	var stored models.Message
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &stored))
	assert.Equal(t, "alice", stored.Payload["to"])

	published, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries[0], published.Payload)
}

func TestRedisLogger_DefaultKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := execute(t, NewRedisLoggerConstructor(client), map[string]any{}, testMessage())
	require.NoError(t, err)

	entries, err := mr.List(DefaultRedisKey)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = NewRedisLoggerConstructor(nil)(map[string]any{})
	require.Error(t, err)
}

func TestKafkaLogger(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	t.Cleanup(func() { _ = producer.Close() })

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var msg models.Message
		if err := json.Unmarshal(value, &msg); err != nil {
			return err
		}

		if msg.Payload["to"] != "alice" {
			return errors.New("unexpected payload")
		}

		return nil
	})

	_, err := execute(t, NewKafkaLoggerConstructor(producer), map[string]any{"topic": "flows", "key": "k"}, testMessage())
	require.NoError(t, err)
}

func TestKafkaLogger_Errors(t *testing.T) {
	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	t.Cleanup(func() { _ = producer.Close() })

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	_, err := execute(t, NewKafkaLoggerConstructor(producer), map[string]any{"topic": "flows"}, testMessage())
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	_, err = NewKafkaLoggerConstructor(producer)(map[string]any{})
	require.Error(t, err)

	_, err = NewKafkaLoggerConstructor(nil)(map[string]any{"topic": "flows"})
	require.Error(t, err)
}
