package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
)

var ErrLeaseHeld = errors.New("lease is held by another holder")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a best-effort mutual exclusion backed by a Redis key with a TTL.
type Lease struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewLease(client redis.UniversalClient, key string, ttl time.Duration) *Lease {
	return &Lease{client: client, key: key, ttl: ttl}
}

// Acquire takes the lease or returns ErrLeaseHeld. The returned func releases
// it; a release error means the key lingers until its TTL expires.
func (l *Lease) Acquire(ctx context.Context) (func() error, error) {
	token, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("lease token: %w", err)
	}

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	release := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", l.key, err)
		}
		return nil
	}
	return release, nil
}
