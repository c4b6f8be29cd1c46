package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// GormPresenceRepository implements PresenceRepository using GORM.
type GormPresenceRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormPresenceRepository creates a new GORM-backed presence repository.
func NewGormPresenceRepository(db *gorm.DB, retry RetryPolicy) *GormPresenceRepository {
	return &GormPresenceRepository{db: db, retry: retry.normalize()}
}

// Upsert inserts or refreshes the record for (room, identity).
func (r *GormPresenceRepository) Upsert(ctx context.Context, p *domain.Presence) error {
	model := &domain.PresenceModel{
		RoomName:    p.RoomName,
		Identity:    p.Identity,
		DisplayName: p.DisplayName,
		LastSeen:    p.LastSeen.UTC(),
	}

	err := r.retry.do(ctx, "upsert presence", func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "room_name"}, {Name: "identity"}},
				DoUpdates: clause.AssignmentColumns([]string{"last_seen", "display_name"}),
			}).
			Create(model).Error
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, p.RoomName).Msg("failed to upsert presence")
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

// Delete removes the record for (room, identity) if present.
func (r *GormPresenceRepository) Delete(ctx context.Context, room, identity string) error {
	err := r.retry.do(ctx, "delete presence", func() error {
		return r.db.WithContext(ctx).
			Where("room_name = ? AND identity = ?", room, identity).
			Delete(&domain.PresenceModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete presence: %w", err)
	}
	return nil
}

// LastSeen returns the last heartbeat time for (room, identity).
func (r *GormPresenceRepository) LastSeen(ctx context.Context, room, identity string) (time.Time, bool, error) {
	var model domain.PresenceModel
	err := r.retry.do(ctx, "get presence", func() error {
		return r.db.WithContext(ctx).
			Select("last_seen").
			Where("room_name = ? AND identity = ?", room, identity).
			Take(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get presence: %w", err)
	}
	return model.LastSeen.UTC(), true, nil
}

type roomCountRow struct {
	RoomName string
	Total    int
}

type hostRow struct {
	RoomName string
	Identity string
}

// Tally counts active records per room and whether each host is among them.
func (r *GormPresenceRepository) Tally(ctx context.Context, hosts map[string]string, since time.Time) (map[string]PresenceTally, error) {
	out := make(map[string]PresenceTally, len(hosts))
	if len(hosts) == 0 {
		return out, nil
	}

	rooms := make([]string, 0, len(hosts))
	hostIDs := make([]string, 0, len(hosts))
	for room, host := range hosts {
		rooms = append(rooms, room)
		out[room] = PresenceTally{}
		if host != "" {
			hostIDs = append(hostIDs, host)
		}
	}
	since = since.UTC()

	var counts []roomCountRow
	var online []hostRow
	err := r.retry.do(ctx, "tally presence", func() error {
		counts, online = nil, nil
		db := r.db.WithContext(ctx)

		if err := db.Model(&domain.PresenceModel{}).
			Select("room_name, COUNT(*) AS total").
			Where("room_name IN ? AND last_seen >= ?", rooms, since).
			Group("room_name").
			Scan(&counts).Error; err != nil {
			return err
		}
		if len(hostIDs) == 0 {
			return nil
		}
		return db.Model(&domain.PresenceModel{}).
			Select("room_name, identity").
			Where("room_name IN ? AND identity IN ? AND last_seen >= ?", rooms, hostIDs, since).
			Scan(&online).Error
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Int("rooms", len(rooms)).Msg("failed to tally presence")
		return nil, fmt.Errorf("tally presence: %w", err)
	}

	for _, c := range counts {
		t := out[c.RoomName]
		t.Active = c.Total
		out[c.RoomName] = t
	}
	for _, h := range online {
		if hosts[h.RoomName] == h.Identity {
			t := out[h.RoomName]
			t.HostOnline = true
			out[h.RoomName] = t
		}
	}
	return out, nil
}

// DeleteExpired removes records last seen before the cutoff.
func (r *GormPresenceRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := r.retry.do(ctx, "delete expired presence", func() error {
		result := r.db.WithContext(ctx).
			Where("last_seen < ?", before.UTC()).
			Delete(&domain.PresenceModel{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired presence: %w", err)
	}
	return deleted, nil
}
