package session

import (
	"context"
	"fmt"
)

// Store persists sessions keyed by user identifier. The caller must
// finish all mutations for one inbound message before the next message
// for the same user is processed; drivers only guard their own internal
// structures.
type Store interface {
	// Get returns the session for userID, creating an idle one if absent.
	Get(ctx context.Context, userID string) (*Session, error)

	// Put persists the session for userID.
	Put(ctx context.Context, userID string, s *Session) error

	// Clear resets userID back to an idle session, preserving nothing.
	Clear(ctx context.Context, userID string) error

	// Close releases driver resources.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Options configures Open.
type Options struct {
	Driver    string
	RedisAddr string
	RedisTTL  int // seconds; 0 means the driver default
}

// Open builds a Store from options. An empty driver name selects the
// in-memory driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		return NewRedisStore(opts.RedisAddr, opts.RedisTTL), nil
	default:
		return nil, fmt.Errorf("unknown session driver: %q", opts.Driver)
	}
}
