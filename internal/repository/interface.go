package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// RoomFilter selects rooms for the listing.
type RoomFilter struct {
	// PublicOnly hides private rooms, except those hosted by IncludeHost.
	PublicOnly  bool
	IncludeHost string
	Limit       int
}

// RoomRepository defines the interface for room data access.
type RoomRepository interface {
	GetByName(ctx context.Context, name string) (*domain.Room, error)
	// Create persists a new room; ErrRoomExists if the name is taken.
	Create(ctx context.Context, room *domain.Room) error
	// AssignHostIfAbsent creates the room if needed and sets its host to
	// identity only when no host is recorded. It returns whether this call
	// made the assignment and the host recorded afterwards.
	AssignHostIfAbsent(ctx context.Context, name, identity string) (bool, string, error)
	SetVisibility(ctx context.Context, name string, isPublic bool) error
	List(ctx context.Context, filter RoomFilter) ([]domain.Room, error)
}

// PresenceTally is the presence summary of one room inside a window.
type PresenceTally struct {
	Active     int
	HostOnline bool
}

// Viewers is the active count with the host removed.
func (t PresenceTally) Viewers() int {
	n := t.Active
	if t.HostOnline {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

// PresenceRepository stores per-(room, identity) last-seen times.
type PresenceRepository interface {
	Upsert(ctx context.Context, p *domain.Presence) error
	// Delete succeeds when no record exists.
	Delete(ctx context.Context, room, identity string) error
	LastSeen(ctx context.Context, room, identity string) (time.Time, bool, error)
	// Tally counts records with lastSeen >= since for each room in hosts,
	// a map from room name to host identity ("" when the room has none).
	Tally(ctx context.Context, hosts map[string]string, since time.Time) (map[string]PresenceTally, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ReactionRepository stores the reaction ledger and its aggregate.
type ReactionRepository interface {
	// Record appends r and increments its aggregate atomically, returning
	// the room summary read inside the same transaction.
	Record(ctx context.Context, r *domain.Reaction) (domain.ReactionSummary, error)
	Summary(ctx context.Context, room string) (domain.ReactionSummary, error)
	// Reset clears ledger and aggregate of a room atomically.
	Reset(ctx context.Context, room string) error
}

// BanRepository stores per-room bans.
type BanRepository interface {
	Exists(ctx context.Context, room, identity string) (bool, error)
	// Insert is idempotent.
	Insert(ctx context.Context, ban *domain.Ban) error
	// Delete succeeds when no ban exists.
	Delete(ctx context.Context, room, identity string) error
	ListByRoom(ctx context.Context, room string) ([]domain.Ban, error)
}
