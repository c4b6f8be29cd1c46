package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB, retry RetryPolicy) *GormRoomRepository {
	return &GormRoomRepository{db: db, retry: retry.normalize()}
}

// GetByName retrieves a room by name.
func (r *GormRoomRepository) GetByName(ctx context.Context, name string) (*domain.Room, error) {
	var model domain.RoomModel
	err := r.retry.do(ctx, "get room", func() error {
		return r.db.WithContext(ctx).First(&model, "name = ?", name).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, name).Msg("failed to get room by name")
		return nil, fmt.Errorf("get room: %w", err)
	}
	return model.ToDomain(), nil
}

// Create creates a new room.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	model := domain.RoomToModel(room)

	var created bool
	err := r.retry.do(ctx, "create room", func() error {
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
			Create(model)
		created = result.RowsAffected == 1
		return result.Error
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, room.Name).Msg("failed to create room in db")
		return fmt.Errorf("create room: %w", err)
	}
	if !created {
		return ErrRoomExists
	}

	room.CreatedAt = model.CreatedAt
	room.UpdatedAt = model.UpdatedAt
	return nil
}

// AssignHostIfAbsent claims the host slot with an insert-if-absent followed
// by a conditional update on host_identity IS NULL. Exactly one concurrent
// caller observes assigned == true.
func (r *GormRoomRepository) AssignHostIfAbsent(ctx context.Context, name, identity string) (bool, string, error) {
	var (
		assigned bool
		host     string
	)

	err := r.retry.do(ctx, "assign host", func() error {
		db := r.db.WithContext(ctx)

		seed := domain.RoomToModel(&domain.Room{Name: name, HostIdentity: identity, IsPublic: true})
		result := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(seed)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			assigned, host = true, identity
			return nil
		}

		result = db.Model(&domain.RoomModel{}).
			Where("name = ? AND host_identity IS NULL", name).
			Update("host_identity", identity)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			assigned, host = true, identity
			return nil
		}

		var model domain.RoomModel
		if err := db.Select("name", "host_identity").First(&model, "name = ?", name).Error; err != nil {
			return err
		}
		assigned = false
		if model.HostIdentity != nil {
			host = *model.HostIdentity
		}
		return nil
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, name).Msg("failed to assign host")
		return false, "", fmt.Errorf("assign host: %w", err)
	}
	return assigned, host, nil
}

// SetVisibility updates the listing visibility of a room.
func (r *GormRoomRepository) SetVisibility(ctx context.Context, name string, isPublic bool) error {
	var found bool
	err := r.retry.do(ctx, "set visibility", func() error {
		result := r.db.WithContext(ctx).Model(&domain.RoomModel{}).
			Where("name = ?", name).
			Update("is_public", isPublic)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			found = true
			return nil
		}
		// MySQL reports zero affected rows when the value is unchanged.
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.RoomModel{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		found = count > 0
		return nil
	})
	if err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}
	if !found {
		return ErrRoomNotFound
	}
	return nil
}

// List retrieves rooms for the listing, newest first.
func (r *GormRoomRepository) List(ctx context.Context, filter RoomFilter) ([]domain.Room, error) {
	var models []domain.RoomModel
	err := r.retry.do(ctx, "list rooms", func() error {
		query := r.db.WithContext(ctx).Model(&domain.RoomModel{})
		if filter.PublicOnly {
			if filter.IncludeHost != "" {
				query = query.Where("is_public = ? OR host_identity = ?", true, filter.IncludeHost)
			} else {
				query = query.Where("is_public = ?", true)
			}
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query.Order("created_at DESC").Order("name").Find(&models).Error
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list rooms from db")
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]domain.Room, len(models))
	for i := range models {
		rooms[i] = *models[i].ToDomain()
	}
	return rooms, nil
}
