package vouches

import (
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
)

// AddFeedbackInput is one participant rating the other after a completed trade.
type AddFeedbackInput struct {
	CommunityID string
	TicketID    string
	AuthorID    string
	TargetID    string
	Rating      int
	Note        string
	ProofRef    *string
}

// Stats is the raw aggregate for one target.
type Stats struct {
	Count   int64   `gorm:"column:count"`
	Average float64 `gorm:"column:average"`
}

// LeaderboardEntry is one ranked target.
type LeaderboardEntry struct {
	Rank           int     `json:"rank" gorm:"-"`
	TargetID       string  `json:"target_id" gorm:"column:target_id"`
	Count          int64   `json:"count" gorm:"column:vouch_count"`
	Average        float64 `json:"average" gorm:"column:average_rating"`
	AverageDisplay string  `json:"average_display" gorm:"-"`
}

// Reputation is the profile shown for a member.
type Reputation struct {
	MemberID       string         `json:"member_id"`
	Count          int64          `json:"count"`
	Average        float64        `json:"average"`
	AverageDisplay string         `json:"average_display"`
	Tier           enums.Tier     `json:"tier"`
	TierName       string         `json:"tier_name"`
	Recent         []models.Vouch `json:"-"`
}

// FeedbackResult is returned after a vouch is recorded.
type FeedbackResult struct {
	Vouch      models.Vouch
	Reputation Reputation
	// TierSync is nil when role reconciliation was skipped or failed.
	TierSync *tiers.Result
}
