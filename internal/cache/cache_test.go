package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/campuslink/portal-sync/internal/cache"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { client.Close() })

	return client
}

func TestRedisCache_SetGetRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := cache.NewRedisCache(setupRedis(t))
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, cache.SummaryKey(1), []byte(`{"gpa":3.8}`), time.Minute))

	val, found, err := rc.Get(ctx, cache.SummaryKey(1))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte(`{"gpa":3.8}`), val)
}

func TestRedisCache_InvalidateAll(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := cache.NewRedisCache(setupRedis(t))
	ctx := context.Background()

	for _, key := range cache.StudentKeys(7) {
		require.NoError(t, rc.Set(ctx, key, []byte("cached"), time.Minute))
	}
	// A different student's entry must survive the invalidation.
	require.NoError(t, rc.Set(ctx, cache.SummaryKey(8), []byte("other"), time.Minute))

	require.NoError(t, rc.InvalidateAll(ctx, 7))

	for _, key := range cache.StudentKeys(7) {
		_, found, err := rc.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, "key %s should be invalidated", key)
	}

	_, found, err := rc.Get(ctx, cache.SummaryKey(8))
	require.NoError(t, err)
	assert.True(t, found)
}
