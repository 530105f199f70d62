package holdstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"roombook/internal/messages"
)

// HoldStore is the atomic key-value store holds live in. A hold key is
// created with SETNX so at most one requester can ever own a
// (resource, slot) pair at a time; redis removes the key itself when the
// TTL runs out, which is the only release path.
type HoldStore struct {
	client *redis.Client
}

func New(client *redis.Client) *HoldStore {
	return &HoldStore{client: client}
}

// NewFromAddr connects to redis at addr and pings it once so a bad address
// fails at startup instead of on the first booking attempt.
func NewFromAddr(ctx context.Context, addr string) (*HoldStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %v", addr, err)
	}
	return &HoldStore{client: client}, nil
}

// Key builds the hold key for a resource and slot. The slot interval strings
// are used verbatim, so producers must send the same normalized interval for
// the same slot.
func Key(resourceID string, slot messages.Slot) string {
	return "hold:" + resourceID + ":" + slot.Key()
}

// TryAcquire atomically creates the key owned by owner iff it does not
// already exist. Returns true when the caller won the hold. This is the only
// mutual-exclusion primitive in the system; there is no check-then-set gap
// because SETNX decides occupancy and creation in one step.
func (s *HoldStore) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, owner, ttl).Result()
}

// Exists reports whether a hold currently occupies the key. It is a hint
// only: the answer can be stale by the time the caller acts on it, so
// correctness decisions always go through TryAcquire.
func (s *HoldStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Owner returns the requester currently holding the key, or "" when the hold
// has expired. The confirm path can use this to re-validate ownership before
// flipping a reservation to CONFIRMED.
func (s *HoldStore) Owner(ctx context.Context, key string) (string, error) {
	owner, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return owner, nil
}

func (s *HoldStore) Close() error {
	return s.client.Close()
}
