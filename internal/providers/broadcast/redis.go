package broadcast

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisPrefix = "mfe:broadcast:"

// Redis carries channels over Redis pub/sub so tabs in different shell
// processes can talk
type Redis struct {
	rdb    *goredis.Client
	prefix string
	logger *zap.Logger
}

// NewRedis creates a Redis bus
func NewRedis(rdb *goredis.Client, prefix string, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, prefix: prefix, logger: logger}
}

func (r *Redis) Publish(ctx context.Context, msg Message) error {
	payload, err := sonic.MarshalString(msg)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.prefix+msg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server
func (r *Redis) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	pubsub := r.rdb.Subscribe(ctx, r.prefix+channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := sonic.UnmarshalString(raw.Payload, &msg); err != nil {
					r.logger.Warn("Dropping malformed broadcast", zap.String("channel", channel), zap.Error(err))
					continue
				}
				if !msg.Sender.Valid() {
					r.logger.Warn("Dropping broadcast from unknown sender", zap.String("channel", channel), zap.String("sender", msg.Sender.String()))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Redis) Close() error {
	return nil
}
