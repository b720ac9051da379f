package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/classroom_bot/internal/model"
	"github.com/redis/go-redis/v9"
)

// Publisher часть redis-клиента, нужная для PUBLISH (*redis.Client подходит)
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink публикует события в Redis pub/sub для других сервисов
type RedisSink struct {
	client Publisher
	prefix string
}

func NewRedisSink(client Publisher, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "classroom:"
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string {
	return "redis"
}

func (s *RedisSink) Publish(ctx context.Context, topic string, event model.LiveSessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.client.Publish(ctx, s.prefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
