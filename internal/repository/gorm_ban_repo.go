package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
)

// GormBanRepository implements BanRepository using GORM.
type GormBanRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormBanRepository creates a new GORM-backed ban repository.
func NewGormBanRepository(db *gorm.DB, retry RetryPolicy) *GormBanRepository {
	return &GormBanRepository{db: db, retry: retry.normalize()}
}

// Exists checks whether identity is banned from room.
func (r *GormBanRepository) Exists(ctx context.Context, room, identity string) (bool, error) {
	var count int64
	err := r.retry.do(ctx, "check ban", func() error {
		return r.db.WithContext(ctx).Model(&domain.BanModel{}).
			Where("room_name = ? AND identity = ?", room, identity).
			Count(&count).Error
	})
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return count > 0, nil
}

// Insert records a ban; banning twice keeps the first record.
func (r *GormBanRepository) Insert(ctx context.Context, ban *domain.Ban) error {
	model := &domain.BanModel{
		RoomName:  ban.RoomName,
		Identity:  ban.Identity,
		BannedBy:  ban.BannedBy,
		CreatedAt: ban.CreatedAt.UTC(),
	}
	err := r.retry.do(ctx, "insert ban", func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "room_name"}, {Name: "identity"}},
				DoNothing: true,
			}).
			Create(model).Error
	})
	if err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	return nil
}

// Delete removes a ban if present.
func (r *GormBanRepository) Delete(ctx context.Context, room, identity string) error {
	err := r.retry.do(ctx, "delete ban", func() error {
		return r.db.WithContext(ctx).
			Where("room_name = ? AND identity = ?", room, identity).
			Delete(&domain.BanModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return nil
}

// ListByRoom returns the bans of a room, oldest first.
func (r *GormBanRepository) ListByRoom(ctx context.Context, room string) ([]domain.Ban, error) {
	var models []domain.BanModel
	err := r.retry.do(ctx, "list bans", func() error {
		models = nil
		return r.db.WithContext(ctx).
			Where("room_name = ?", room).
			Order("created_at").
			Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}

	bans := make([]domain.Ban, len(models))
	for i := range models {
		bans[i] = *models[i].ToDomain()
	}
	return bans, nil
}
