package cache

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
)

// RoomCacheResult is the cached form of a room row.
type RoomCacheResult struct {
	Room domain.Room `json:"room"`
}

// RoomCache caches room rows by name. Only rooms with a host are cached:
// host assignment is permanent, so such entries never go stale on host.
type RoomCache interface {
	Get(ctx context.Context, key string) (*RoomCacheResult, error)
	Set(ctx context.Context, key string, result *RoomCacheResult, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	BuildKeyByName(name string) string
}
