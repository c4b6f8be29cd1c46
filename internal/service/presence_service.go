package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
)

// GuestName is used when neither the heartbeat nor the session carries a name.
const GuestName = "guest"

// PresenceService records heartbeats and departures.
type PresenceService struct {
	presence repository.PresenceRepository
	now      func() time.Time
}

// NewPresenceService creates a presence tracker.
func NewPresenceService(presence repository.PresenceRepository, now func() time.Time) *PresenceService {
	return &PresenceService{presence: presence, now: clockOrDefault(now)}
}

// Heartbeat upserts the caller's presence record. The display name comes from
// the request, then the session, then GuestName.
func (s *PresenceService) Heartbeat(ctx context.Context, room, identity, sessionName string, req *domain.HeartbeatRequest) error {
	if identity == "" {
		return ErrUnauthenticated
	}
	if !domain.ValidRoomName(room) {
		return ErrInvalidInput
	}

	name := ""
	if req != nil {
		name = domain.SanitizeInlineText(req.DisplayName, domain.MaxDisplayNameLen)
	}
	if name == "" {
		name = domain.SanitizeInlineText(sessionName, domain.MaxDisplayNameLen)
	}
	if name == "" {
		name = GuestName
	}

	return s.presence.Upsert(ctx, &domain.Presence{
		RoomName:    room,
		Identity:    identity,
		DisplayName: name,
		LastSeen:    s.now(),
	})
}

// Leave deletes the caller's presence record; it succeeds when none exists.
func (s *PresenceService) Leave(ctx context.Context, room, identity string) error {
	if identity == "" {
		return ErrUnauthenticated
	}
	if !domain.ValidRoomName(room) {
		return ErrInvalidInput
	}
	return s.presence.Delete(ctx, room, identity)
}
