package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"fge-test-platform/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SignalStore is a Redis implementation of app.SignalStore shared by every process
// pointing at the same server. Values live under signals:{key}; each write publishes
// on signals:changes:{key} tagged with the writer's origin so the writer can skip it.
type SignalStore struct {
	client *redis.Client
	origin string
}

func NewSignalStore(client *redis.Client, origin string) *SignalStore {
	return &SignalStore{client: client, origin: origin}
}

func (s *SignalStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.valueKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value and publishes the change; rewriting an identical value does not publish.
func (s *SignalStore) Set(ctx context.Context, key, value string) error {
	if old, ok, err := s.Get(ctx, key); err == nil && ok && old == value {
		return nil
	}
	payload, err := json.Marshal(domain.SignalChange{Key: key, Value: value, Origin: s.origin})
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.valueKey(key), value, 0)
	pipe.Publish(ctx, s.channel(key), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes key and publishes the change when it existed.
func (s *SignalStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.valueKey(key)).Result()
	if err != nil || n == 0 {
		return err
	}
	payload, err := json.Marshal(domain.SignalChange{Key: key, Deleted: true, Origin: s.origin})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel(key), payload).Err()
}

// Subscribe streams changes of keys published by other origins. The subscription
// is confirmed before returning so later writes are not missed.
func (s *SignalStore) Subscribe(ctx context.Context, keys ...string) (<-chan domain.SignalChange, func(), error) {
	channels := make([]string, len(keys))
	for i, k := range keys {
		channels[i] = s.channel(k)
	}
	pubsub := s.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan domain.SignalChange, 64)
	stopped := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stopped)
			_ = pubsub.Close()
		})
	}

	msgs := pubsub.Channel()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-stopped:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change domain.SignalChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("signals: decode %s: %v", msg.Channel, err)
					continue
				}
				if change.Origin == s.origin {
					continue
				}
				select {
				case out <- change:
				case <-stopped:
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

func (s *SignalStore) valueKey(key string) string {
	return "signals:" + key
}

func (s *SignalStore) channel(key string) string {
	return "signals:changes:" + key
}
