package storage

import (
	"context"
	"fmt"

	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
)

// NewTransport builds the transport selected by cfg.Driver.
func NewTransport(ctx context.Context, cfg config.StorageConfig) (Transport, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryTransport(), nil
	case DialectPostgres, DialectSQLite:
		return NewSQLTransport(ctx, cfg.Driver, cfg.DSN)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required")
		}
		return NewRedisTransport(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Open builds the transport for cfg and wraps it in a MatchStore.
func Open(ctx context.Context, cfg config.StorageConfig, opts ...Option) (*MatchStore, error) {
	t, err := NewTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxHistory > 0 {
		opts = append([]Option{WithMaxHistory(cfg.MaxHistory)}, opts...)
	}
	return NewMatchStore(t, opts...), nil
}
