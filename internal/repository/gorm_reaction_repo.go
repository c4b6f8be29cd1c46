package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-rooms/internal/domain"
	"github.com/weiawesome/wes-io-rooms/pkg/log"
)

// GormReactionRepository implements ReactionRepository using GORM.
type GormReactionRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormReactionRepository creates a new GORM-backed reaction repository.
func NewGormReactionRepository(db *gorm.DB, retry RetryPolicy) *GormReactionRepository {
	return &GormReactionRepository{db: db, retry: retry.normalize()}
}

// Record appends the event and increments the aggregate in one transaction.
func (r *GormReactionRepository) Record(ctx context.Context, reaction *domain.Reaction) (domain.ReactionSummary, error) {
	event := &domain.ReactionEventModel{
		ID:        reaction.ID,
		RoomName:  reaction.RoomName,
		Identity:  reaction.Identity,
		Kind:      string(reaction.Kind),
		CreatedAt: reaction.CreatedAt.UTC(),
	}

	var summary domain.ReactionSummary
	err := r.retry.do(ctx, "record reaction", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(event).Error; err != nil {
				return err
			}

			agg := &domain.ReactionAggregateModel{
				RoomName: reaction.RoomName,
				Kind:     string(reaction.Kind),
				Count:    1,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "room_name"}, {Name: "kind"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"count": gorm.Expr("reaction_aggregates.count + 1"),
				}),
			}).Create(agg).Error; err != nil {
				return err
			}

			var err error
			summary, err = summaryOf(tx, reaction.RoomName)
			return err
		})
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, reaction.RoomName).Str("kind", string(reaction.Kind)).Msg("failed to record reaction")
		return nil, fmt.Errorf("record reaction: %w", err)
	}
	return summary, nil
}

// Summary returns the aggregate counts of a room.
func (r *GormReactionRepository) Summary(ctx context.Context, room string) (domain.ReactionSummary, error) {
	var summary domain.ReactionSummary
	err := r.retry.do(ctx, "reaction summary", func() error {
		var err error
		summary, err = summaryOf(r.db.WithContext(ctx), room)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reaction summary: %w", err)
	}
	return summary, nil
}

// Reset deletes the ledger and aggregate rows of a room in one transaction.
func (r *GormReactionRepository) Reset(ctx context.Context, room string) error {
	err := r.retry.do(ctx, "reset reactions", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("room_name = ?", room).Delete(&domain.ReactionEventModel{}).Error; err != nil {
				return err
			}
			return tx.Where("room_name = ?", room).Delete(&domain.ReactionAggregateModel{}).Error
		})
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to reset reactions")
		return fmt.Errorf("reset reactions: %w", err)
	}
	return nil
}

func summaryOf(db *gorm.DB, room string) (domain.ReactionSummary, error) {
	var rows []domain.ReactionAggregateModel
	if err := db.Where("room_name = ?", room).Find(&rows).Error; err != nil {
		return nil, err
	}
	summary := make(domain.ReactionSummary, len(rows))
	for _, row := range rows {
		if row.Count > 0 {
			summary[domain.ReactionKind(row.Kind)] = row.Count
		}
	}
	return summary, nil
}
