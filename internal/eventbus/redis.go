// Package eventbus carries sync-complete notifications from the ingestor
// to the API service, either over Redis pub/sub (multi-host) or an
// in-process channel (single host), behind the same publisher/subscriber
// contract.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"candlesystem/internal/model"
)

const syncChannel = "pub:sync_complete"

// RedisConfig configures the Redis-backed bus.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisBus publishes and subscribes to sync-complete events over a Redis
// pub/sub channel, for deployments where the ingestor and API service run
// as separate processes or hosts.
type RedisBus struct {
	client *goredis.Client
}

// NewRedisBus dials Redis and pings it.
func NewRedisBus(cfg RedisConfig) (*RedisBus, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[eventbus] connected to redis at %s", cfg.Addr)
	return &RedisBus{client: client}, nil
}

// PublishSyncComplete publishes ev on the shared sync-complete channel.
func (b *RedisBus) PublishSyncComplete(ctx context.Context, ev model.SyncCompleteEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal sync event: %w", err)
	}
	if err := b.client.Publish(ctx, syncChannel, data).Err(); err != nil {
		return fmt.Errorf("publish sync event: %w", err)
	}
	return nil
}

// Subscribe returns a channel delivering sync-complete events until ctx
// is cancelled. Decode failures are logged and skipped.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan model.SyncCompleteEvent, error) {
	pubsub := b.client.Subscribe(ctx, syncChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("subscribe sync channel: %w", err)
	}

	out := make(chan model.SyncCompleteEvent, 64)
	msgCh := pubsub.Channel()

	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var ev model.SyncCompleteEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("[eventbus] decode sync event: %v", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
