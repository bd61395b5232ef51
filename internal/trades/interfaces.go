package trades

import (
	"context"
	"time"

	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	"github.com/angelmondragon/tradevouch/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines persistence operations for trade tickets. Every mutation is a single
// conditional statement and reports how many rows it touched.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, ticket *models.TradeTicket) (bool, error)
	FindByID(ctx context.Context, id string) (*models.TradeTicket, error)
	Transition(ctx context.Context, id string, guard Guard, updates map[string]any) (int64, error)
	Confirm(ctx context.Context, id string, guard Guard, side enums.ConfirmSide, now time.Time) (int64, error)
	ListForMember(ctx context.Context, communityID, memberID string, params pagination.Params) (*TicketList, error)
	CountByStatus(ctx context.Context, communityID, memberID string) (map[enums.TicketStatus]int64, error)
	ListExpiryCandidates(ctx context.Context, query ExpiryQuery) ([]models.TradeTicket, error)
}

// Guard is the WHERE clause a conditional transition must satisfy.
type Guard struct {
	CommunityID   string
	Statuses      []enums.TicketStatus
	ActorColumn   string
	ActorID       string
	CreatedBefore *time.Time
}

// EligibilityChecker reports whether a member may take part in trades, e.g. is not an automated account.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, communityID, memberID string) (bool, error)
}

// StaffAuthorizer reports whether a member holds elevated privileges in a community.
type StaffAuthorizer interface {
	IsStaff(ctx context.Context, communityID, memberID string) (bool, error)
}

// IDGenerator produces candidate ticket ids. Collisions are detected by the store.
type IDGenerator interface {
	NewID() (string, error)
}

// TransitionRecorder observes committed transitions.
type TransitionRecorder interface {
	RecordTransition(to enums.TicketStatus)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
