package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/events"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/pkg/idgen"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

// ReactionService validates and records audience reactions.
type ReactionService struct {
	rooms     *RoomLookup
	reactions repository.ReactionRepository
	ids       *idgen.ULIDGenerator
	emitter   *events.Emitter
	now       func() time.Time
}

// NewReactionService creates a reaction aggregator.
func NewReactionService(rooms *RoomLookup, reactions repository.ReactionRepository, ids *idgen.ULIDGenerator, emitter *events.Emitter, now func() time.Time) *ReactionService {
	return &ReactionService{
		rooms:     rooms,
		reactions: reactions,
		ids:       ids,
		emitter:   emitter,
		now:       clockOrDefault(now),
	}
}

// SendReaction records one reaction and returns the room's per-kind totals
// as committed.
func (s *ReactionService) SendReaction(ctx context.Context, room, identity, kind string) (domain.ReactionSummary, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if !domain.ValidRoomName(room) {
		return nil, ErrInvalidInput
	}
	k, ok := domain.ParseReactionKind(kind)
	if !ok {
		return nil, ErrInvalidKind
	}

	r, _, err := s.rooms.getOrPlaceholder(ctx, room)
	if err != nil {
		return nil, err
	}
	if r.IsHost(identity) {
		return nil, ErrHostCannotReact
	}

	now := s.now()
	id, err := s.ids.GenerateAt(now)
	if err != nil {
		return nil, err
	}

	summary, err := s.reactions.Record(ctx, &domain.Reaction{
		ID:        id,
		RoomName:  room,
		Identity:  identity,
		Kind:      k,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(summary))
	for kind, n := range summary {
		counts[string(kind)] = n
	}
	s.emitter.Emit(ctx, pubsub.EventReactionSent, room, pubsub.ReactionSentPayload{
		Identity: identity,
		Kind:     string(k),
		Summary:  counts,
	})
	return summary, nil
}

// Summary returns the per-kind totals of a room; empty when none.
func (s *ReactionService) Summary(ctx context.Context, room string) (domain.ReactionSummary, error) {
	if !domain.ValidRoomName(room) {
		return nil, ErrInvalidInput
	}
	return s.reactions.Summary(ctx, room)
}
