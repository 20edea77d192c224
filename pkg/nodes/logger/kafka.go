package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/deflow/deflow/pkg/models"
	"github.com/deflow/deflow/pkg/nodes/params"
	"github.com/deflow/deflow/pkg/protocol"
)

const KafkaLoggerName = "KafkaLogger"

// KafkaLogger produces the envelope to a Kafka topic.
type KafkaLogger struct {
	producer sarama.SyncProducer
	topic    string
	key      string
}

func NewKafkaLoggerConstructor(producer sarama.SyncProducer) protocol.Constructor {
	return func(p map[string]any) (protocol.Node, error) {
		if producer == nil {
			return nil, errors.New("kafka logger requires a producer")
		}

		topic, err := params.RequiredString(p, "topic")
		if err != nil {
			return nil, err
		}

		return &KafkaLogger{
			producer: producer,
			topic:    topic,
			key:      params.String(p, "key", ""),
		}, nil
	}
}

// NewSyncProducer connects a producer suitable for KafkaLogger.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return producer, nil
}

func (l *KafkaLogger) Name() string        { return KafkaLoggerName }
func (l *KafkaLogger) Description() string { return "Produces the payload to a Kafka topic" }

func (l *KafkaLogger) Execute(_ context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return nil, nil
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	record := &sarama.ProducerMessage{
		Topic: l.topic,
		Value: sarama.ByteEncoder(value),
	}

	if l.key != "" {
		record.Key = sarama.StringEncoder(l.key)
	}

	if _, _, err := l.producer.SendMessage(record); err != nil {
		return nil, fmt.Errorf("failed to produce to topic %s: %w", l.topic, err)
	}

	return msg, nil
}
