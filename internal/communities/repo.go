package communities

import (
	"context"

	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists per-community settings.
type Repository interface {
	Find(ctx context.Context, communityID string) (*models.CommunitySettings, error)
	EnsureDefaults(ctx context.Context, defaults *models.CommunitySettings) error
	Update(ctx context.Context, communityID string, updates map[string]any) (int64, error)
	MinTradeTTLSeconds(ctx context.Context) (*int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, communityID string) (*models.CommunitySettings, error) {
	var settings models.CommunitySettings
	if err := r.db.WithContext(ctx).Where("community_id = ?", communityID).First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// EnsureDefaults inserts the row unless one already exists.
func (r *repository) EnsureDefaults(ctx context.Context, defaults *models.CommunitySettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "community_id"}}, DoNothing: true}).
		Create(defaults).Error
}

func (r *repository) Update(ctx context.Context, communityID string, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommunitySettings{}).
		Where("community_id = ?", communityID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// MinTradeTTLSeconds returns the smallest TTL override across communities, or nil when none is set.
func (r *repository) MinTradeTTLSeconds(ctx context.Context) (*int64, error) {
	var row struct {
		Min *int64 `gorm:"column:min_ttl"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.CommunitySettings{}).
		Select("MIN(trade_ttl_seconds) AS min_ttl").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.Min, nil
}
