package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/config"
	"github.com/medflow/medpredict-backend/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestNewSummaryCache_DisabledIsNoop(t *testing.T) {
	c, err := NewSummaryCache(context.Background(), config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.SetSummary(context.Background(), 1, day, &domain.DashboardSummary{HealthScore: 90}))

	got, ok, err := c.GetSummary(context.Background(), 1, day)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.InvalidateAll(context.Background()))
	assert.NoError(t, c.Close())
}

func TestNewSummaryCache_InvalidURL(t *testing.T) {
	_, err := NewSummaryCache(context.Background(), config.CacheConfig{Enabled: true, RedisURL: "http://nope"})
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	opts, err = buildRedisOptions(config.CacheConfig{Host: "cache", Port: "6380", Password: "pw", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@redis:6379/3", Host: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
}

func TestSummaryKey(t *testing.T) {
	day := time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "prediction:summary:v7:2025-06-15", SummaryKey(7, day))
}

func TestRedisSummaryCache_Integration(t *testing.T) {
	testutil.SkipIfShort(t)
	ctx := testutil.DefaultTestContext(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	c, err := NewSummaryCache(ctx, config.CacheConfig{Enabled: true, RedisURL: fmt.Sprintf("redis://%s:%s/0", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	summary := &domain.DashboardSummary{
		TotalItems:          3,
		TotalInventoryValue: decimal.RequireFromString("1234.50"),
		ExpiryRisk: domain.ExpiryRiskSummary{
			CriticalCount: 1,
			TopRisks: []domain.ExpiryRisk{{
				ItemID:    2,
				BatchNo:   "INS-1",
				RiskLevel: domain.RiskCritical,
			}},
		},
		HealthScore: 85,
	}

	require.NoError(t, c.SetSummary(ctx, 4, day, summary))

	got, ok, err := c.GetSummary(ctx, 4, day)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 85, got.HealthScore)
	assert.True(t, summary.TotalInventoryValue.Equal(got.TotalInventoryValue))
	assert.Equal(t, domain.RiskCritical, got.ExpiryRisk.TopRisks[0].RiskLevel)

	_, ok, err = c.GetSummary(ctx, 5, day)
	require.NoError(t, err)
	assert.False(t, ok, "other snapshot versions miss")

	require.NoError(t, c.InvalidateAll(ctx))
	_, ok, err = c.GetSummary(ctx, 4, day)
	require.NoError(t, err)
	assert.False(t, ok)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer client.Close()
	keys, err := client.Keys(ctx, "prediction:summary:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
