package models

import (
	"time"

	"github.com/angelmondragon/tradevouch/pkg/enums"
)

// TradeTicket is the durable record of a two-party trade inside a community.
type TradeTicket struct {
	ID               string             `gorm:"primaryKey;type:varchar(16)"`
	CommunityID      string             `gorm:"type:varchar(32);not null"`
	OpenerID         string             `gorm:"type:varchar(32);not null"`
	PartnerID        string             `gorm:"type:varchar(32);not null"`
	Status           enums.TicketStatus `gorm:"type:varchar(16);not null"`
	OpenerConfirmed  bool               `gorm:"not null;default:false"`
	PartnerConfirmed bool               `gorm:"not null;default:false"`
	ExternalRef      *string            `gorm:"type:text"`
	ClosedBy         *string            `gorm:"type:varchar(32)"`
	CreatedAt        time.Time          `gorm:"not null"`
	UpdatedAt        time.Time          `gorm:"not null"`
	ClosedAt         *time.Time
}

func (TradeTicket) TableName() string { return "trade_tickets" }

// IsParticipant reports whether memberID is the opener or the partner.
func (t TradeTicket) IsParticipant(memberID string) bool {
	return memberID == t.OpenerID || memberID == t.PartnerID
}

// Counterparty returns the other participant, or "" when memberID is not on the ticket.
func (t TradeTicket) Counterparty(memberID string) string {
	switch memberID {
	case t.OpenerID:
		return t.PartnerID
	case t.PartnerID:
		return t.OpenerID
	default:
		return ""
	}
}
