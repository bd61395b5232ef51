package models

import (
	"time"

	"github.com/google/uuid"
)

// Vouch is one participant's rating of the other after a completed trade.
type Vouch struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CommunityID string    `gorm:"type:varchar(32);not null"`
	TicketID    string    `gorm:"type:varchar(16);not null"`
	TargetID    string    `gorm:"type:varchar(32);not null"`
	AuthorID    string    `gorm:"type:varchar(32);not null"`
	Rating      int       `gorm:"not null"`
	Note        string    `gorm:"type:text;not null;default:''"`
	ProofRef    *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (Vouch) TableName() string { return "vouches" }
