// Package cache keeps rendered dashboard summaries in Redis between reloads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	summaryKeyPrefix = "prediction:summary"
	scanBatchSize    = 100
	defaultTTL       = time.Minute
)

// SummaryCache stores dashboard summaries keyed by snapshot version and
// reference date.
type SummaryCache interface {
	GetSummary(ctx context.Context, version uint64, day time.Time) (*domain.DashboardSummary, bool, error)
	SetSummary(ctx context.Context, version uint64, day time.Time, summary *domain.DashboardSummary) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSummaryCache struct{}

// NewSummaryCache connects to Redis when the cache is enabled and returns a
// no-op cache otherwise.
func NewSummaryCache(ctx context.Context, cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return &noopSummaryCache{}, nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisSummaryCache(client, cfg.TTL), nil
}

// NewRedisSummaryCache wraps an existing client.
func NewRedisSummaryCache(client *redis.Client, ttl time.Duration) SummaryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisSummaryCache{client: client, ttl: ttl}
}

// NewNoopSummaryCache returns a cache that never hits.
func NewNoopSummaryCache() SummaryCache {
	return &noopSummaryCache{}
}

func (c *redisSummaryCache) GetSummary(ctx context.Context, version uint64, day time.Time) (*domain.DashboardSummary, bool, error) {
	payload, err := c.client.Get(ctx, SummaryKey(version, day)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summary domain.DashboardSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, false, fmt.Errorf("decode summary cache: %w", err)
	}

	return &summary, true, nil
}

func (c *redisSummaryCache) SetSummary(ctx context.Context, version uint64, day time.Time, summary *domain.DashboardSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary cache: %w", err)
	}

	if err := c.client.Set(ctx, SummaryKey(version, day), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisSummaryCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, summaryKeyPrefix+":*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

func (c *redisSummaryCache) Close() error {
	return c.client.Close()
}

func (n *noopSummaryCache) GetSummary(context.Context, uint64, time.Time) (*domain.DashboardSummary, bool, error) {
	return nil, false, nil
}

func (n *noopSummaryCache) SetSummary(context.Context, uint64, time.Time, *domain.DashboardSummary) error {
	return nil
}

func (n *noopSummaryCache) InvalidateAll(context.Context) error {
	return nil
}

func (n *noopSummaryCache) Close() error {
	return nil
}

// SummaryKey is the Redis key of a snapshot's summary for one reference day.
func SummaryKey(version uint64, day time.Time) string {
	return fmt.Sprintf("%s:v%d:%s", summaryKeyPrefix, version, day.UTC().Format("2006-01-02"))
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.Port
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}
