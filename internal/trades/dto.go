package trades

import (
	"time"

	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	"github.com/angelmondragon/tradevouch/pkg/pagination"
)

// CreateInput opens a ticket between two members.
type CreateInput struct {
	CommunityID string
	OpenerID    string
	PartnerID   string
}

// ActionInput identifies a ticket and the member acting on it.
type ActionInput struct {
	CommunityID string
	TicketID    string
	ActorID     string
}

// ConfirmInput is ActionInput plus the side being confirmed.
type ConfirmInput struct {
	CommunityID string
	TicketID    string
	ActorID     string
	Side        enums.ConfirmSide
}

// ExpireInput drives the sweeper's conditional expiry.
type ExpireInput struct {
	TicketID string
	Now      time.Time
	TTL      time.Duration
}

// ExpiryQuery selects one page of sweeper candidates in (created_at, id) order.
// After is the last ticket of the previous page; nil starts from the oldest.
type ExpiryQuery struct {
	CreatedBefore time.Time
	After         *pagination.Cursor
	Limit         int
}

// ExternalRefInput records where the rendered ticket lives.
type ExternalRefInput struct {
	CommunityID string
	TicketID    string
	Ref         string
}

// TicketList is a cursor page of tickets.
type TicketList struct {
	Tickets    []models.TradeTicket
	NextCursor string
}

// StatusCounts is the per-status ticket tally for one member.
type StatusCounts struct {
	MemberID string                       `json:"member_id"`
	Total    int64                        `json:"total"`
	ByStatus map[enums.TicketStatus]int64 `json:"by_status"`
}
