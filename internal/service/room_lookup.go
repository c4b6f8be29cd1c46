package service

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/cache"
	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// RoomLookup reads rooms through an optional cache. Only rooms with a host
// are cached; visibility changes invalidate the entry.
type RoomLookup struct {
	repo  repository.RoomRepository
	cache cache.RoomCache
	ttl   time.Duration
}

// NewRoomLookup creates a lookup. A nil cache reads the repository directly.
func NewRoomLookup(repo repository.RoomRepository, c cache.RoomCache, ttl time.Duration) *RoomLookup {
	return &RoomLookup{repo: repo, cache: c, ttl: ttl}
}

// Get returns the room or repository.ErrRoomNotFound.
func (rl *RoomLookup) Get(ctx context.Context, name string) (*domain.Room, error) {
	if rl.cache != nil {
		cached, err := rl.cache.Get(ctx, rl.cache.BuildKeyByName(name))
		if err == nil {
			room := cached.Room
			return &room, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoom, name).Msg("room cache read failed")
		}
	}

	room, err := rl.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if rl.cache != nil && room.HasHost() {
		if err := rl.cache.Set(ctx, rl.cache.BuildKeyByName(name), &cache.RoomCacheResult{Room: *room}, rl.ttl); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoom, name).Msg("room cache write failed")
		}
	}
	return room, nil
}

// Invalidate drops the cached entry of a room.
func (rl *RoomLookup) Invalidate(ctx context.Context, name string) {
	if rl.cache == nil {
		return
	}
	if err := rl.cache.Delete(ctx, rl.cache.BuildKeyByName(name)); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldRoom, name).Msg("room cache invalidation failed")
	}
}

// getOrPlaceholder returns the stored room, or an unsaved placeholder when
// the room has never been created.
func (rl *RoomLookup) getOrPlaceholder(ctx context.Context, name string) (*domain.Room, bool, error) {
	room, err := rl.Get(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return domain.PlaceholderRoom(name), false, nil
		}
		return nil, false, err
	}
	return room, true, nil
}
