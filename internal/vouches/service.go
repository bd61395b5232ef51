package vouches

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/pkg/db"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

const (
	minRating         = 1
	maxRating         = 5
	maxNoteLength     = 1000
	recentVouchLimit  = 5
	defaultBoardLimit = 10
	maxBoardLimit     = 50
)

// TicketReader is the slice of the trade ledger feedback validation needs.
type TicketReader interface {
	Get(ctx context.Context, communityID, ticketID string) (*models.TradeTicket, error)
}

// EligibilityChecker reports whether a member can receive feedback, e.g. is not an automated account.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, communityID, memberID string) (bool, error)
}

// SettingsReader resolves tier thresholds and roles for a community.
type SettingsReader interface {
	Get(ctx context.Context, communityID string) (*communities.Settings, error)
}

// TierReconciler converges a member's tier roles.
type TierReconciler interface {
	Reconcile(ctx context.Context, communityID, memberID string, tier enums.Tier, roles tiers.RoleMap) (*tiers.Result, error)
}

// OutcomeRecorder observes feedback attempts by outcome.
type OutcomeRecorder interface {
	RecordVouch(outcome string)
}

// Service records feedback and serves reputation aggregates.
type Service interface {
	AddFeedback(ctx context.Context, input AddFeedbackInput) (*FeedbackResult, error)
	CountFor(ctx context.Context, communityID, targetID string) (int64, error)
	AverageFor(ctx context.Context, communityID, targetID string) (float64, error)
	Leaderboard(ctx context.Context, communityID string, limit int) ([]LeaderboardEntry, error)
	Reputation(ctx context.Context, communityID, memberID string) (*Reputation, error)
	SyncTier(ctx context.Context, communityID, memberID string) (*tiers.Result, error)
}

// ServiceParams wires the feedback ledger. Recorder and Now are optional.
type ServiceParams struct {
	Repo        Repository
	Tickets     TicketReader
	Eligibility EligibilityChecker
	Settings    SettingsReader
	Reconciler  TierReconciler
	Logger      *logger.Logger
	Recorder    OutcomeRecorder
	Now         func() time.Time
}

type service struct {
	repo        Repository
	tickets     TicketReader
	eligibility EligibilityChecker
	settings    SettingsReader
	reconciler  TierReconciler
	logg        *logger.Logger
	recorder    OutcomeRecorder
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("vouches repository required")
	}
	if params.Tickets == nil {
		return nil, fmt.Errorf("ticket reader required")
	}
	if params.Eligibility == nil {
		return nil, fmt.Errorf("eligibility checker required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("tier reconciler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		tickets:     params.Tickets,
		eligibility: params.Eligibility,
		settings:    params.Settings,
		reconciler:  params.Reconciler,
		logg:        params.Logger,
		recorder:    params.Recorder,
		now:         now,
	}, nil
}

func (s *service) AddFeedback(ctx context.Context, input AddFeedbackInput) (*FeedbackResult, error) {
	result, outcome, err := s.addFeedback(ctx, input)
	if s.recorder != nil {
		s.recorder.RecordVouch(outcome)
	}
	return result, err
}

func (s *service) addFeedback(ctx context.Context, input AddFeedbackInput) (*FeedbackResult, string, error) {
	if err := validateFeedback(input); err != nil {
		return nil, outcomeOf(err), err
	}

	eligible, err := s.eligibility.IsEligible(ctx, input.CommunityID, input.TargetID)
	if err != nil {
		return nil, outcomeError, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check target eligibility")
	}
	if !eligible {
		err := pkgerrors.New(pkgerrors.CodeValidation, "target is not eligible for feedback")
		return nil, outcomeOf(err), err
	}

	ticket, err := s.tickets.Get(ctx, input.CommunityID, input.TicketID)
	if err != nil {
		return nil, outcomeOf(err), err
	}
	if ticket.Status != enums.TicketStatusCompleted {
		err := pkgerrors.New(pkgerrors.CodeInvalidState, "feedback is only accepted for completed trades").
			WithDetails(map[string]any{"status": ticket.Status})
		return nil, outcomeOf(err), err
	}
	if !ticket.IsParticipant(input.AuthorID) {
		err := pkgerrors.New(pkgerrors.CodeForbidden, "only trade participants can leave feedback")
		return nil, outcomeOf(err), err
	}
	if ticket.Counterparty(input.AuthorID) != input.TargetID {
		err := pkgerrors.New(pkgerrors.CodeForbidden, "feedback must target the other trade participant")
		return nil, outcomeOf(err), err
	}

	vouch := models.Vouch{
		ID:          uuid.New(),
		CommunityID: input.CommunityID,
		TicketID:    ticket.ID,
		TargetID:    input.TargetID,
		AuthorID:    input.AuthorID,
		Rating:      input.Rating,
		Note:        strings.TrimSpace(input.Note),
		ProofRef:    trimmedOrNil(input.ProofRef),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, &vouch); err != nil {
		if db.IsUniqueViolation(err, uniqueVouchIndex) {
			err := pkgerrors.New(pkgerrors.CodeAlreadyRated, "feedback already recorded for this trade")
			return nil, outcomeOf(err), err
		}
		return nil, outcomeError, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert vouch")
	}

	result := &FeedbackResult{Vouch: vouch}
	rep, settings, err := s.reputation(ctx, input.CommunityID, input.TargetID)
	if err != nil {
		// the vouch is committed; a failed read only degrades the response
		s.logg.Error(s.logCtx(ctx, input), "reputation lookup after vouch failed", err)
		return result, outcomeRecorded, nil
	}
	result.Reputation = *rep
	result.TierSync = s.reconcile(s.logCtx(ctx, input), input.CommunityID, input.TargetID, rep.Tier, settings.Roles)
	return result, outcomeRecorded, nil
}

func (s *service) CountFor(ctx context.Context, communityID, targetID string) (int64, error) {
	stats, err := s.stats(ctx, communityID, targetID)
	if err != nil {
		return 0, err
	}
	return stats.Count, nil
}

func (s *service) AverageFor(ctx context.Context, communityID, targetID string) (float64, error) {
	stats, err := s.stats(ctx, communityID, targetID)
	if err != nil {
		return 0, err
	}
	return stats.Average, nil
}

func (s *service) Leaderboard(ctx context.Context, communityID string, limit int) ([]LeaderboardEntry, error) {
	if strings.TrimSpace(communityID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "community id required")
	}
	switch {
	case limit <= 0:
		limit = defaultBoardLimit
	case limit > maxBoardLimit:
		limit = maxBoardLimit
	}
	rows, err := s.repo.Leaderboard(ctx, communityID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load leaderboard")
	}
	for i := range rows {
		rows[i].Rank = i + 1
		rows[i].AverageDisplay = displayAverage(rows[i].Average)
	}
	return rows, nil
}

func (s *service) Reputation(ctx context.Context, communityID, memberID string) (*Reputation, error) {
	rep, _, err := s.reputation(ctx, communityID, memberID)
	return rep, err
}

func (s *service) reputation(ctx context.Context, communityID, memberID string) (*Reputation, *communities.Settings, error) {
	stats, err := s.stats(ctx, communityID, memberID)
	if err != nil {
		return nil, nil, err
	}
	settings, err := s.settings.Get(ctx, communityID)
	if err != nil {
		return nil, nil, err
	}
	recent, err := s.repo.ListForTarget(ctx, communityID, memberID, recentVouchLimit)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent vouches")
	}
	tier := tiers.Classify(stats.Count, settings.Thresholds)
	return &Reputation{
		MemberID:       memberID,
		Count:          stats.Count,
		Average:        stats.Average,
		AverageDisplay: displayAverage(stats.Average),
		Tier:           tier,
		TierName:       tier.DisplayName(),
		Recent:         recent,
	}, settings, nil
}

// SyncTier recomputes a member's tier and reconciles their roles, surfacing gateway errors.
func (s *service) SyncTier(ctx context.Context, communityID, memberID string) (*tiers.Result, error) {
	rep, settings, err := s.reputation(ctx, communityID, memberID)
	if err != nil {
		return nil, err
	}
	res, err := s.reconciler.Reconcile(ctx, communityID, memberID, rep.Tier, settings.Roles)
	if err != nil {
		return res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile tier roles")
	}
	return res, nil
}

// reconcile is best-effort: role failures are logged and never undo the recorded vouch.
func (s *service) reconcile(ctx context.Context, communityID, memberID string, tier enums.Tier, roles tiers.RoleMap) *tiers.Result {
	res, err := s.reconciler.Reconcile(ctx, communityID, memberID, tier, roles)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "tier", tier), "tier role reconcile failed", err)
		return nil
	}
	return res
}

func (s *service) stats(ctx context.Context, communityID, targetID string) (Stats, error) {
	if strings.TrimSpace(communityID) == "" || strings.TrimSpace(targetID) == "" {
		return Stats{}, pkgerrors.New(pkgerrors.CodeValidation, "community and member are required")
	}
	stats, err := s.repo.Stats(ctx, communityID, targetID)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate vouches")
	}
	if stats.Count == 0 {
		stats.Average = 0
	}
	return stats, nil
}

func (s *service) logCtx(ctx context.Context, input AddFeedbackInput) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"community_id": input.CommunityID,
		"ticket_id":    input.TicketID,
		"author_id":    input.AuthorID,
		"target_id":    input.TargetID,
	})
}

func validateFeedback(input AddFeedbackInput) error {
	if strings.TrimSpace(input.CommunityID) == "" || strings.TrimSpace(input.TicketID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "community and ticket id are required")
	}
	if strings.TrimSpace(input.AuthorID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "author identity missing")
	}
	if strings.TrimSpace(input.TargetID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "target is required")
	}
	if input.Rating < minRating || input.Rating > maxRating {
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"rating": input.Rating})
	}
	if input.AuthorID == input.TargetID {
		return pkgerrors.New(pkgerrors.CodeValidation, "you cannot vouch for yourself")
	}
	if utf8.RuneCountInString(input.Note) > maxNoteLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("note must be at most %d characters", maxNoteLength))
	}
	return nil
}

func displayAverage(avg float64) string {
	return decimal.NewFromFloat(avg).Round(2).StringFixed(2)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
