package vouches

import (
	"context"

	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"gorm.io/gorm"
)

// uniqueVouchIndex backs the one-vouch-per-author-per-ticket rule.
const uniqueVouchIndex = "vouches_ticket_author_key"

// Repository persists feedback and aggregates it per target.
type Repository interface {
	Insert(ctx context.Context, vouch *models.Vouch) error
	Stats(ctx context.Context, communityID, targetID string) (Stats, error)
	Leaderboard(ctx context.Context, communityID string, limit int) ([]LeaderboardEntry, error)
	ListForTarget(ctx context.Context, communityID, targetID string, limit int) ([]models.Vouch, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a vouch repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, vouch *models.Vouch) error {
	return r.db.WithContext(ctx).Create(vouch).Error
}

func (r *repository) Stats(ctx context.Context, communityID, targetID string) (Stats, error) {
	var stats Stats
	err := r.db.WithContext(ctx).
		Model(&models.Vouch{}).
		Select("COUNT(*) AS count, COALESCE(CAST(AVG(rating) AS DOUBLE PRECISION), 0) AS average").
		Where("community_id = ? AND target_id = ?", communityID, targetID).
		Scan(&stats).Error
	return stats, err
}

func (r *repository) Leaderboard(ctx context.Context, communityID string, limit int) ([]LeaderboardEntry, error) {
	var rows []LeaderboardEntry
	err := r.db.WithContext(ctx).
		Model(&models.Vouch{}).
		Select("target_id, COUNT(*) AS vouch_count, CAST(AVG(rating) AS DOUBLE PRECISION) AS average_rating").
		Where("community_id = ?", communityID).
		Group("target_id").
		Order("vouch_count DESC").
		Order("average_rating DESC").
		Order("target_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListForTarget(ctx context.Context, communityID, targetID string, limit int) ([]models.Vouch, error) {
	var rows []models.Vouch
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND target_id = ?", communityID, targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
