package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/tradevouch/api/middleware"
	"github.com/angelmondragon/tradevouch/api/responses"
	"github.com/angelmondragon/tradevouch/api/validators"
	"github.com/angelmondragon/tradevouch/internal/vouches"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

const (
	maxNoteRunes  = 1000
	maxProofRunes = 512
)

// VouchNotifier tells the renderer a vouch was recorded.
type VouchNotifier interface {
	VouchRecorded(ctx context.Context, result *vouches.FeedbackResult) error
}

type addFeedbackRequest struct {
	TargetID string  `json:"target_id" validate:"required,memberid"`
	Rating   int     `json:"rating" validate:"required,gte=1,lte=5"`
	Note     string  `json:"note" validate:"max=1000"`
	ProofRef *string `json:"proof_ref,omitempty" validate:"omitempty,max=512"`
}

// AddFeedback records the caller's rating of the other participant on a completed ticket.
func AddFeedback(svc vouches.Service, notifier VouchNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ticketID, err := validators.PathID(r, "ticketId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req addFeedbackRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.AddFeedback(ctx, vouches.AddFeedbackInput{
			CommunityID: middleware.CommunityIDFromContext(ctx),
			TicketID:    ticketID,
			AuthorID:    middleware.ActorIDFromContext(ctx),
			TargetID:    req.TargetID,
			Rating:      req.Rating,
			Note:        validators.SanitizeString(req.Note, maxNoteRunes),
			ProofRef:    validators.OptionalString(req.ProofRef, maxProofRunes),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if notifier != nil {
			if err := notifier.VouchRecorded(ctx, result); err != nil && logg != nil {
				logg.Error(logg.WithTicketID(ctx, ticketID), "vouch notification failed", err)
			}
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, vouches.NewFeedbackView(result))
	}
}

// Leaderboard ranks the community's members by feedback count, then average.
func Leaderboard(svc vouches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, 50)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := svc.Leaderboard(ctx, middleware.CommunityIDFromContext(ctx), limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if rows == nil {
			rows = []vouches.LeaderboardEntry{}
		}
		responses.WriteSuccess(w, rows)
	}
}
