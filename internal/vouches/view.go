package vouches

import (
	"time"

	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
)

type VouchView struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	TargetID  string    `json:"target_id"`
	Rating    int       `json:"rating"`
	Note      string    `json:"note,omitempty"`
	ProofRef  *string   `json:"proof_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewVouchView(v models.Vouch) VouchView {
	return VouchView{
		ID:        v.ID.String(),
		TicketID:  v.TicketID,
		AuthorID:  v.AuthorID,
		TargetID:  v.TargetID,
		Rating:    v.Rating,
		Note:      v.Note,
		ProofRef:  v.ProofRef,
		CreatedAt: v.CreatedAt.UTC(),
	}
}

// ProfileView is a reputation with its most recent feedback inlined.
type ProfileView struct {
	Reputation
	Recent []VouchView `json:"recent"`
}

func NewProfileView(rep *Reputation) ProfileView {
	if rep == nil {
		return ProfileView{Recent: []VouchView{}}
	}
	recent := make([]VouchView, 0, len(rep.Recent))
	for _, v := range rep.Recent {
		recent = append(recent, NewVouchView(v))
	}
	return ProfileView{Reputation: *rep, Recent: recent}
}

// FeedbackView is the response to a recorded vouch.
type FeedbackView struct {
	Vouch      VouchView     `json:"vouch"`
	Reputation Reputation    `json:"reputation"`
	TierSync   *tiers.Result `json:"tier_sync,omitempty"`
}

func NewFeedbackView(res *FeedbackResult) FeedbackView {
	if res == nil {
		return FeedbackView{}
	}
	return FeedbackView{
		Vouch:      NewVouchView(res.Vouch),
		Reputation: res.Reputation,
		TierSync:   res.TierSync,
	}
}
