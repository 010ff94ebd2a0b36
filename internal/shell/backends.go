package shell

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/broadcast"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/storage"
)

// Backend kinds accepted by SHELL_STORAGE and SHELL_BROADCAST
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

var ErrUnknownBackend = errors.New("unknown backend")

// Backends are the transports shared between tabs
type Backends struct {
	Local     storage.Backend
	Broadcast broadcast.Bus

	redis *goredis.Client
}

// OpenBackends builds the configured storage and broadcast backends. A
// Redis client is created only when one of them asks for it.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backends{}

	if cfg.Shell.Storage == BackendRedis || cfg.Shell.Broadcast == BackendRedis {
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend requested without REDIS_ADDR")
		}
		b.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.redis.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	switch cfg.Shell.Storage {
	case BackendMemory, "":
		b.Local = storage.NewMemory()
	case BackendFile:
		f, err := storage.NewFile(cfg.Shell.StorageDir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Local = f
	case BackendRedis:
		b.Local = storage.NewRedis(b.redis, "", logger.Named("storage"))
	default:
		b.Close()
		return nil, fmt.Errorf("%w: storage %q", ErrUnknownBackend, cfg.Shell.Storage)
	}

	switch cfg.Shell.Broadcast {
	case BackendMemory, "":
		b.Broadcast = broadcast.NewHub()
	case BackendRedis:
		b.Broadcast = broadcast.NewRedis(b.redis, "", logger.Named("broadcast"))
	default:
		b.Close()
		return nil, fmt.Errorf("%w: broadcast %q", ErrUnknownBackend, cfg.Shell.Broadcast)
	}

	logger.Info("Backends ready",
		zap.String("storage", cfg.Shell.Storage),
		zap.String("broadcast", cfg.Shell.Broadcast))
	return b, nil
}

// Close releases every backend
func (b *Backends) Close() error {
	var errs []error
	if b.Broadcast != nil {
		errs = append(errs, b.Broadcast.Close())
	}
	if b.Local != nil {
		errs = append(errs, b.Local.Close())
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	return errors.Join(errs...)
}
