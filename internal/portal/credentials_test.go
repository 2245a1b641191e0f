package portal_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/campuslink/portal-sync/internal/portal"
)

// setupRedis spins up a Redis container and returns a connected client.
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

func TestRedisCredentialStore_SaveGetClear(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := setupRedis(t)
	ctx := context.Background()

	store := portal.NewRedisCredentialStore(client, time.Minute)

	creds := portal.Credentials{Username: "2019310042", Password: "hunter2"}
	require.NoError(t, store.Save(ctx, 42, creds))

	got, found, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, creds, got)

	require.NoError(t, store.Clear(ctx, 42))

	_, found, err = store.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCredentialStore_MissingUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := setupRedis(t)

	store := portal.NewRedisCredentialStore(client, time.Minute)

	_, found, err := store.Get(context.Background(), 9999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCredentialStore_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := setupRedis(t)
	ctx := context.Background()

	store := portal.NewRedisCredentialStore(client, time.Second)
	require.NoError(t, store.Save(ctx, 7, portal.Credentials{Username: "u", Password: "p"}))

	time.Sleep(1500 * time.Millisecond)

	_, found, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, found)
}
