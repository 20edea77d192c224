package cmd

import (
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"

	"github.com/deflow/deflow/pkg/nodes/logger"
)

// NewRedisClient parses a redis:// URL. An empty URL returns nil.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(opts), nil
}

// NewKafkaProducer connects a sync producer. No brokers returns nil.
//
//nolint:ireturn // sarama exposes producers as interfaces
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	return logger.NewSyncProducer(brokers)
}

// SplitList splits a comma-separated flag value, dropping blanks.
func SplitList(value string) []string {
	var out []string

	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
