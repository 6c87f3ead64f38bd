package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseExclusive(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Skipping test - no redis configured")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	key := "socialpilot:test:lease:" + time.Now().Format(time.RFC3339Nano)
	defer client.Del(ctx, key)

	a := NewLease(client, key, time.Minute)
	b := NewLease(client, key, time.Minute)

	release, err := a.Acquire(ctx)
	require.NoError(t, err)

	_, err = b.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, release())
	releaseB, err := b.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, releaseB())
	// A second release is a no-op once the token is gone.
	assert.NoError(t, releaseB())
}
