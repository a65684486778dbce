package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/vitwit/jpycpay/logger"
)

type RedisPublisher struct {
	client redis.UniversalClient
	log    logger.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client redis.UniversalClient, log logger.Logger) *RedisPublisher {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, stream, string(data)).Err()
}

type RedisSubscriber struct {
	client redis.UniversalClient
	log    logger.Logger
}

var _ Subscriber = (*RedisSubscriber)(nil)

func NewRedisSubscriber(client redis.UniversalClient, log logger.Logger) *RedisSubscriber {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &RedisSubscriber{client: client, log: log}
}

// Subscribe delivers events on stream to handler until ctx ends.
func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Error("failed to unmarshal event", map[string]any{"error": err})
					continue
				}
				handler(event)
			}
		}
	}()

	return nil
}
