package models

import "time"

// CommunitySettings carries per-community tier thresholds, tier role ids and trade options.
// Nil role ids mean the tier grants no role in that community.
type CommunitySettings struct {
	CommunityID       string  `gorm:"primaryKey;type:varchar(32)"`
	NewThreshold      int     `gorm:"not null"`
	VerifiedThreshold int     `gorm:"not null"`
	TrustedThreshold  int     `gorm:"not null"`
	RoleNewID         *string `gorm:"type:varchar(32)"`
	RoleVerifiedID    *string `gorm:"type:varchar(32)"`
	RoleTrustedID     *string `gorm:"type:varchar(32)"`
	VouchChannelID    *string `gorm:"type:varchar(32)"`
	// TradeTTLSeconds overrides the service default expiry window when set.
	TradeTTLSeconds *int64 `gorm:"column:trade_ttl_seconds"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CommunitySettings) TableName() string { return "community_settings" }
