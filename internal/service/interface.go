package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
)

// TokenIssuer arbitrates the host role and mints capability tokens.
type TokenIssuer interface {
	IssueToken(ctx context.Context, identity, displayName string, req *domain.TokenRequest) (*domain.TokenResult, error)
}

// PresenceTracker records heartbeats and departures.
type PresenceTracker interface {
	Heartbeat(ctx context.Context, room, identity, sessionName string, req *domain.HeartbeatRequest) error
	Leave(ctx context.Context, room, identity string) error
}

// ViewerCounter computes approximate audience sizes.
type ViewerCounter interface {
	// Window converts a requested look-back in seconds to the enforced window.
	Window(withinSec int) time.Duration
	CountViewers(ctx context.Context, room string, window time.Duration) (int, error)
}

// ReactionAggregator records reactions and reports their totals.
type ReactionAggregator interface {
	SendReaction(ctx context.Context, room, identity, kind string) (domain.ReactionSummary, error)
	Summary(ctx context.Context, room string) (domain.ReactionSummary, error)
}

// ModerationGate manages per-room bans on behalf of the host.
type ModerationGate interface {
	Ban(ctx context.Context, room, requester, target string) error
	Unban(ctx context.Context, room, requester, target string) error
	ListBans(ctx context.Context, room, requester string) ([]domain.Ban, error)
}

// RoomService manages the room registry as seen by clients.
type RoomService interface {
	GetRoomInfo(ctx context.Context, room, caller string) (*domain.RoomInfo, error)
	ListRooms(ctx context.Context, caller string, req *domain.ListRoomsRequest) (*domain.ListRoomsResponse, error)
	CreateRoom(ctx context.Context, caller string, req *domain.CreateRoomRequest) (*domain.Room, error)
	SetVisibility(ctx context.Context, room, requester string, isPublic bool) (*domain.Room, error)
	Monitor(ctx context.Context) (*domain.MonitorSnapshot, error)
}

// StreamGauge reports the number of open live-count streams.
type StreamGauge interface {
	Active() int64
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return utcNow
	}
	return now
}
