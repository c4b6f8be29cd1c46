package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/audit"
	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/events"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

// ModerationService lets the current host manage a room's ban list.
type ModerationService struct {
	rooms   *RoomLookup
	bans    repository.BanRepository
	emitter *events.Emitter
	now     func() time.Time
}

// NewModerationService creates a moderation gate.
func NewModerationService(rooms *RoomLookup, bans repository.BanRepository, emitter *events.Emitter, now func() time.Time) *ModerationService {
	return &ModerationService{
		rooms:   rooms,
		bans:    bans,
		emitter: emitter,
		now:     clockOrDefault(now),
	}
}

// authorize succeeds only for the room's recorded host. Rooms without a
// host have nobody to authorize.
func (s *ModerationService) authorize(ctx context.Context, room, requester string) error {
	if requester == "" {
		return ErrUnauthenticated
	}
	if !domain.ValidRoomName(room) {
		return ErrInvalidInput
	}
	r, _, err := s.rooms.getOrPlaceholder(ctx, room)
	if err != nil {
		return err
	}
	if !r.IsHost(requester) {
		return ErrForbidden
	}
	return nil
}

// Ban prevents target from obtaining new tokens for room.
func (s *ModerationService) Ban(ctx context.Context, room, requester, target string) error {
	if err := s.authorize(ctx, room, requester); err != nil {
		return err
	}
	if target == "" || target == requester {
		return ErrInvalidInput
	}

	if err := s.bans.Insert(ctx, &domain.Ban{
		RoomName:  room,
		Identity:  target,
		BannedBy:  requester,
		CreatedAt: s.now(),
	}); err != nil {
		return err
	}

	audit.LogTarget(ctx, audit.ActionBan, room, requester, target, "identity banned")
	s.emitter.Emit(ctx, pubsub.EventBan, room, pubsub.ModerationPayload{Target: target, By: requester})
	return nil
}

// Unban lifts a ban; lifting an absent ban succeeds.
func (s *ModerationService) Unban(ctx context.Context, room, requester, target string) error {
	if err := s.authorize(ctx, room, requester); err != nil {
		return err
	}
	if target == "" {
		return ErrInvalidInput
	}

	if err := s.bans.Delete(ctx, room, target); err != nil {
		return err
	}

	audit.LogTarget(ctx, audit.ActionUnban, room, requester, target, "identity unbanned")
	s.emitter.Emit(ctx, pubsub.EventUnban, room, pubsub.ModerationPayload{Target: target, By: requester})
	return nil
}

// ListBans returns the room's bans to its host.
func (s *ModerationService) ListBans(ctx context.Context, room, requester string) ([]domain.Ban, error) {
	if err := s.authorize(ctx, room, requester); err != nil {
		return nil, err
	}
	return s.bans.ListByRoom(ctx, room)
}
