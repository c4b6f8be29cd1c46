package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
)

// WindowPolicy bounds the presence look-back window.
type WindowPolicy struct {
	Default time.Duration
	Min     time.Duration
	Max     time.Duration
}

// Clamp converts a requested window in seconds into the enforced window.
// Non-positive requests use the default.
func (p WindowPolicy) Clamp(withinSec int) time.Duration {
	w := p.Default
	if withinSec > 0 {
		w = time.Duration(withinSec) * time.Second
	}
	if w < p.Min {
		w = p.Min
	}
	if p.Max > 0 && w > p.Max {
		w = p.Max
	}
	return w
}

// ViewerService counts presence records inside a window, excluding the host.
type ViewerService struct {
	rooms    *RoomLookup
	presence repository.PresenceRepository
	policy   WindowPolicy
	now      func() time.Time
	group    singleflight.Group
}

// NewViewerService creates a viewer count aggregator.
func NewViewerService(rooms *RoomLookup, presence repository.PresenceRepository, policy WindowPolicy, now func() time.Time) *ViewerService {
	return &ViewerService{
		rooms:    rooms,
		presence: presence,
		policy:   policy,
		now:      clockOrDefault(now),
	}
}

// Window applies the window policy.
func (s *ViewerService) Window(withinSec int) time.Duration {
	return s.policy.Clamp(withinSec)
}

// CountViewers returns the number of identities other than the host seen in
// room within window. Concurrent calls for the same room and window share one
// storage round trip. The shared query outlives any single caller, so one
// caller going away never fails the others.
func (s *ViewerService) CountViewers(ctx context.Context, room string, window time.Duration) (int, error) {
	if !domain.ValidRoomName(room) {
		return 0, ErrInvalidInput
	}

	key := fmt.Sprintf("%s|%d", room, window.Milliseconds())
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		ctx := shared
		host := ""
		r, err := s.rooms.Get(ctx, room)
		switch {
		case err == nil:
			host = r.HostIdentity
		case !errors.Is(err, repository.ErrRoomNotFound):
			return 0, err
		}

		tally, err := s.presence.Tally(ctx, map[string]string{room: host}, s.now().Add(-window))
		if err != nil {
			return 0, err
		}
		return tally[room].Viewers(), nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

// Tally computes presence tallies for a set of rooms in one call. Both the
// per-room count and the listing go through the same exclusion rule.
func (s *ViewerService) Tally(ctx context.Context, rooms []domain.Room, window time.Duration) (map[string]repository.PresenceTally, error) {
	hosts := make(map[string]string, len(rooms))
	for i := range rooms {
		hosts[rooms[i].Name] = rooms[i].HostIdentity
	}
	return s.presence.Tally(ctx, hosts, s.now().Add(-window))
}
