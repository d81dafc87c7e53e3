package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the connection backing the call-state store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MaxRetries   int

	PingTimeout time.Duration
}

const (
	defaultRedisDialTimeout = 2 * time.Second
	defaultRedisIOTimeout   = 500 * time.Millisecond
	defaultRedisPoolSize    = 10
	defaultRedisPingTimeout = 2 * time.Second
)

func (c RedisConfig) withDefaults() RedisConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultRedisDialTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultRedisIOTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultRedisIOTimeout
	}
	if c.PoolSize <= 0 {
		c.PoolSize = defaultRedisPoolSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultRedisPingTimeout
	}
	return c
}

// OpenRedis builds a client and fails fast if the server does not answer PING.
// The caller owns the client and must Close it on shutdown.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	if cfg.DB < 0 {
		return nil, fmt.Errorf("redis: invalid db %d", cfg.DB)
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
	})
	if err := PingRedis(ctx, rdb, cfg.PingTimeout); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// PingRedis is used at startup and by the readiness probe.
func PingRedis(ctx context.Context, rdb *redis.Client, timeout time.Duration) error {
	if rdb == nil {
		return errors.New("redis: client is nil")
	}
	if timeout <= 0 {
		timeout = defaultRedisPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}
