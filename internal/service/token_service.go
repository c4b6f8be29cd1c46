package service

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/audit"
	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/events"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/pkg/jwt"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

// TokenService arbitrates the host role and mints capability tokens.
type TokenService struct {
	rooms     *RoomLookup
	roomRepo  repository.RoomRepository
	bans      repository.BanRepository
	presence  repository.PresenceRepository
	reactions repository.ReactionRepository
	signer    *jwt.Signer
	emitter   *events.Emitter
	freshness time.Duration
	now       func() time.Time
}

// NewTokenService creates a token issuer. freshness is how recently the
// host must have heartbeated for a renewed host token to continue the
// previous session instead of starting a fresh one.
func NewTokenService(
	rooms *RoomLookup,
	roomRepo repository.RoomRepository,
	bans repository.BanRepository,
	presence repository.PresenceRepository,
	reactions repository.ReactionRepository,
	signer *jwt.Signer,
	emitter *events.Emitter,
	freshness time.Duration,
	now func() time.Time,
) *TokenService {
	return &TokenService{
		rooms:     rooms,
		roomRepo:  roomRepo,
		bans:      bans,
		presence:  presence,
		reactions: reactions,
		signer:    signer,
		emitter:   emitter,
		freshness: freshness,
		now:       clockOrDefault(now),
	}
}

// IssueToken decides the caller's effective role and mints a token for it.
// A second host claimant is downgraded to viewer, never rejected.
func (s *TokenService) IssueToken(ctx context.Context, identity, displayName string, req *domain.TokenRequest) (*domain.TokenResult, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if req == nil || !domain.ValidRoomName(req.Room) {
		return nil, ErrInvalidInput
	}
	if !s.signer.Configured() {
		return nil, ErrNotConfigured
	}

	ctx = log.WithRoom(ctx, req.Room)
	l := log.Ctx(ctx)

	banned, err := s.bans.Exists(ctx, req.Room, identity)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, ErrBanned
	}

	room, _, err := s.rooms.getOrPlaceholder(ctx, req.Room)
	if err != nil {
		return nil, err
	}

	role := domain.RoleViewer
	assigned := false
	if req.WantsPublish() {
		switch {
		case room.IsHost(identity):
			role = domain.RoleHost
		case !room.HasHost():
			won, host, err := s.roomRepo.AssignHostIfAbsent(ctx, req.Room, identity)
			if err != nil {
				return nil, err
			}
			if won || host == identity {
				role = domain.RoleHost
			}
			assigned = won
		}
	}

	now := s.now()
	fresh := false
	if role == domain.RoleHost {
		fresh, err = s.isFreshSession(ctx, req.Room, identity, assigned, now)
		if err != nil {
			return nil, err
		}
	}

	if assigned {
		audit.Log(ctx, audit.ActionAssignHost, req.Room, identity, "host assigned")
		s.emitter.Emit(ctx, pubsub.EventHostAssigned, req.Room, pubsub.HostAssignedPayload{Host: identity})
	}
	if fresh {
		if err := s.reactions.Reset(ctx, req.Room); err != nil {
			return nil, err
		}
		audit.Log(ctx, audit.ActionSessionReset, req.Room, identity, "fresh session, reactions reset")
		s.emitter.Emit(ctx, pubsub.EventSessionReset, req.Room, pubsub.SessionResetPayload{Host: identity})
	}

	token, err := s.signer.Sign(jwt.Grant{
		Room:     req.Room,
		Identity: identity,
		Name:     domain.SanitizeInlineText(displayName, domain.MaxDisplayNameLen),
		Role:     string(role),
	}, now)
	if err != nil {
		if errors.Is(err, jwt.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		l.Error().Err(err).Msg("failed to sign capability token")
		return nil, err
	}

	if req.WantsPublish() && role != domain.RoleHost {
		l.Info().Str(log.FieldUserID, identity).Str("host", room.HostIdentity).Msg("host claim downgraded to viewer")
	}

	return &domain.TokenResult{
		Token:        token,
		Room:         req.Room,
		Role:         role,
		CanPublish:   role == domain.RoleHost,
		FreshSession: fresh,
		ExpiresAt:    now.Add(s.signer.TTL()),
	}, nil
}

// isFreshSession reports whether a host token starts a new broadcast: the
// host was just assigned, or the host has not heartbeated within the
// freshness window.
func (s *TokenService) isFreshSession(ctx context.Context, room, host string, assigned bool, now time.Time) (bool, error) {
	if assigned {
		return true, nil
	}
	lastSeen, ok, err := s.presence.LastSeen(ctx, room, host)
	if err != nil {
		return false, err
	}
	return !ok || lastSeen.Before(now.Add(-s.freshness)), nil
}
