package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
)

const defaultRedisPrefix = "mfe:storage:"

// Redis shares storage across shell processes
type Redis struct {
	rdb     *goredis.Client
	prefix  string
	channel string
	logger  *zap.Logger
}

// NewRedis creates a Redis backend; keys live under prefix
func NewRedis(rdb *goredis.Client, prefix string, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		rdb:     rdb,
		prefix:  prefix,
		channel: prefix + "events",
		logger:  logger,
	}
}

func (r *Redis) key(k string) string {
	return r.prefix + "kv:" + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, source id.TabID) error {
	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return r.publish(ctx, Event{Key: key, Value: value, Source: source})
}

func (r *Redis) Remove(ctx context.Context, key string, source id.TabID) error {
	n, err := r.rdb.Del(ctx, r.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return nil
	}
	return r.publish(ctx, Event{Key: key, Removed: true, Source: source})
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, r.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.key("")))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Subscribe returns once the subscription is confirmed by the server
func (r *Redis) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
					r.logger.Debug("Dropping malformed storage event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
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

func (r *Redis) publish(ctx context.Context, ev Event) error {
	payload, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
