package service

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-rooms/internal/audit"
	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/internal/events"
	"github.com/weiawesome/wes-io-rooms/internal/repository"
	"github.com/weiawesome/wes-io-rooms/pkg/idgen"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

const (
	// maxListedRooms caps the listing.
	maxListedRooms = 200

	createRoomAttempts = 5
)

// RoomServiceImpl implements RoomService.
type RoomServiceImpl struct {
	rooms             *RoomLookup
	repo              repository.RoomRepository
	viewers           *ViewerService
	slugs             idgen.Generator
	emitter           *events.Emitter
	streams           StreamGauge
	heartbeatInterval time.Duration
	now               func() time.Time
}

// NewRoomService creates a room service. streams may be nil.
func NewRoomService(
	rooms *RoomLookup,
	repo repository.RoomRepository,
	viewers *ViewerService,
	slugs idgen.Generator,
	emitter *events.Emitter,
	streams StreamGauge,
	heartbeatInterval time.Duration,
	now func() time.Time,
) *RoomServiceImpl {
	return &RoomServiceImpl{
		rooms:             rooms,
		repo:              repo,
		viewers:           viewers,
		slugs:             slugs,
		emitter:           emitter,
		streams:           streams,
		heartbeatInterval: heartbeatInterval,
		now:               clockOrDefault(now),
	}
}

// GetRoomInfo describes a room from the caller's point of view. An absent
// room is reported with Exists false rather than an error, since rooms are
// created by their first publisher.
func (s *RoomServiceImpl) GetRoomInfo(ctx context.Context, name, caller string) (*domain.RoomInfo, error) {
	if !domain.ValidRoomName(name) {
		return nil, ErrInvalidInput
	}

	room, exists, err := s.rooms.getOrPlaceholder(ctx, name)
	if err != nil {
		return nil, err
	}

	return &domain.RoomInfo{
		Name:                 name,
		Exists:               exists,
		HasHost:              room.HasHost(),
		HostIdentity:         room.HostIdentity,
		IsHost:               room.IsHost(caller),
		IsPublic:             room.IsPublic,
		DisplayTitle:         room.DisplayTitle,
		HeartbeatIntervalSec: int(s.heartbeatInterval / time.Second),
	}, nil
}

// ListRooms lists public rooms, plus the caller's own private rooms when
// visibility is "all", with viewer counts from the shared aggregator.
func (s *RoomServiceImpl) ListRooms(ctx context.Context, caller string, req *domain.ListRoomsRequest) (*domain.ListRoomsResponse, error) {
	if req == nil {
		req = &domain.ListRoomsRequest{}
	}

	filter := repository.RoomFilter{PublicOnly: true, Limit: maxListedRooms}
	switch req.Visibility {
	case "", domain.VisibilityPublic:
	case domain.VisibilityAll:
		filter.IncludeHost = caller
	default:
		return nil, ErrInvalidInput
	}

	window := s.viewers.Window(req.WithinSec)
	listing, err := s.list(ctx, filter, window, req.OnlyLive)
	if err != nil {
		return nil, err
	}
	return &domain.ListRoomsResponse{Rooms: listing, WindowSec: int(window / time.Second)}, nil
}

func (s *RoomServiceImpl) list(ctx context.Context, filter repository.RoomFilter, window time.Duration, onlyLive bool) ([]domain.RoomListing, error) {
	rooms, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	tally, err := s.viewers.Tally(ctx, rooms, window)
	if err != nil {
		return nil, err
	}

	listing := make([]domain.RoomListing, 0, len(rooms))
	for _, r := range rooms {
		t := tally[r.Name]
		if onlyLive && t.Viewers() == 0 && !t.HostOnline {
			continue
		}
		listing = append(listing, domain.RoomListing{
			Name:         r.Name,
			DisplayTitle: r.DisplayTitle,
			IsPublic:     r.IsPublic,
			HostIdentity: r.HostIdentity,
			HostOnline:   t.HostOnline,
			ViewerCount:  t.Viewers(),
		})
	}
	return listing, nil
}

// CreateRoom creates a room under a generated slug with the caller as host.
func (s *RoomServiceImpl) CreateRoom(ctx context.Context, caller string, req *domain.CreateRoomRequest) (*domain.Room, error) {
	if caller == "" {
		return nil, ErrUnauthenticated
	}
	if req == nil {
		req = &domain.CreateRoomRequest{}
	}

	title := domain.NormalizeDisplayName(req.DisplayTitle)
	if !domain.IsValidDisplayName(title) {
		return nil, ErrInvalidInput
	}
	isPublic := req.IsPublic == nil || *req.IsPublic

	for attempt := 0; attempt < createRoomAttempts; attempt++ {
		slug, err := s.slugs.Generate()
		if err != nil {
			return nil, err
		}

		room := &domain.Room{
			Name:         slug,
			DisplayTitle: title,
			HostIdentity: caller,
			IsPublic:     isPublic,
		}
		err = s.repo.Create(ctx, room)
		if errors.Is(err, repository.ErrRoomExists) {
			continue
		}
		if err != nil {
			return nil, err
		}

		audit.LogWithDetail(ctx, audit.ActionCreateRoom, room.Name, caller, title, "room created")
		s.emitter.Emit(ctx, pubsub.EventHostAssigned, room.Name, pubsub.HostAssignedPayload{Host: caller})
		return room, nil
	}

	l := log.Ctx(ctx)
	l.Error().Int("attempts", createRoomAttempts).Msg("could not allocate a free room name")
	return nil, errors.New("room name space exhausted")
}

// SetVisibility lets the host toggle whether the room is listed publicly.
func (s *RoomServiceImpl) SetVisibility(ctx context.Context, name, requester string, isPublic bool) (*domain.Room, error) {
	if requester == "" {
		return nil, ErrUnauthenticated
	}
	if !domain.ValidRoomName(name) {
		return nil, ErrInvalidInput
	}

	room, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if !room.IsHost(requester) {
		return nil, ErrForbidden
	}

	if err := s.repo.SetVisibility(ctx, name, isPublic); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	s.rooms.Invalidate(ctx, name)
	room.IsPublic = isPublic

	detail := "private"
	if isPublic {
		detail = "public"
	}
	audit.LogWithDetail(ctx, audit.ActionSetVisibility, name, requester, detail, "room visibility changed")
	s.emitter.Emit(ctx, pubsub.EventVisibilityChanged, name, pubsub.VisibilityChangedPayload{IsPublic: isPublic})
	return room, nil
}

// Monitor summarizes live public rooms under the default window.
func (s *RoomServiceImpl) Monitor(ctx context.Context) (*domain.MonitorSnapshot, error) {
	window := s.viewers.Window(0)
	listing, err := s.list(ctx, repository.RoomFilter{PublicOnly: true, Limit: maxListedRooms}, window, true)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.MonitorSnapshot{
		Rooms:       listing,
		RoomCount:   len(listing),
		WindowSec:   int(window / time.Second),
		GeneratedAt: s.now(),
	}
	for _, r := range listing {
		snapshot.TotalViewers += r.ViewerCount
	}
	if s.streams != nil {
		snapshot.ActiveStreams = s.streams.Active()
	}
	return snapshot, nil
}
