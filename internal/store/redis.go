package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendScope/internal/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const barKeyFormat = "trendscope:bars:%s:%d"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore caches price tables in Redis with a per-key expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	logger.Info("redis price cache connected", zap.String("addr", opts.Addr))
	return &RedisStore{client: client, ttl: opts.TTL, logger: logger}, nil
}

func barKey(symbol string, years int) string { return fmt.Sprintf(barKeyFormat, symbol, years) }

// Load returns the cached table or ErrCacheMiss.
func (s *RedisStore) Load(ctx context.Context, symbol string, years int) (*model.RawTable, error) {
	data, err := s.client.Get(ctx, barKey(symbol, years)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", barKey(symbol, years), err)
	}
	table, _, err := decodeTable(data)
	return table, err
}

// Save stores the table; Redis expires it after the TTL.
func (s *RedisStore) Save(ctx context.Context, symbol string, years int, table *model.RawTable) error {
	data, err := encodeTable(table, time.Now())
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, barKey(symbol, years), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", barKey(symbol, years), err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	s.logger.Info("closing redis price cache")
	return s.client.Close()
}
