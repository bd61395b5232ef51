package trades

import (
	"time"

	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
)

// TicketView is the wire shape of a ticket snapshot, shared by the API and published events.
type TicketView struct {
	ID               string             `json:"id"`
	CommunityID      string             `json:"community_id"`
	OpenerID         string             `json:"opener_id"`
	PartnerID        string             `json:"partner_id"`
	Status           enums.TicketStatus `json:"status"`
	OpenerConfirmed  bool               `json:"opener_confirmed"`
	PartnerConfirmed bool               `json:"partner_confirmed"`
	ExternalRef      *string            `json:"external_ref,omitempty"`
	ClosedBy         *string            `json:"closed_by,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	ClosedAt         *time.Time         `json:"closed_at,omitempty"`
}

func NewTicketView(t *models.TradeTicket) TicketView {
	if t == nil {
		return TicketView{}
	}
	return TicketView{
		ID:               t.ID,
		CommunityID:      t.CommunityID,
		OpenerID:         t.OpenerID,
		PartnerID:        t.PartnerID,
		Status:           t.Status,
		OpenerConfirmed:  t.OpenerConfirmed,
		PartnerConfirmed: t.PartnerConfirmed,
		ExternalRef:      t.ExternalRef,
		ClosedBy:         t.ClosedBy,
		CreatedAt:        t.CreatedAt.UTC(),
		UpdatedAt:        t.UpdatedAt.UTC(),
		ClosedAt:         t.ClosedAt,
	}
}

func NewTicketViews(rows []models.TradeTicket) []TicketView {
	out := make([]TicketView, 0, len(rows))
	for i := range rows {
		out = append(out, NewTicketView(&rows[i]))
	}
	return out
}
