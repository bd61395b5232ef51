package trades

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/pagination"
	"gorm.io/gorm"
)

// DefaultIDAttempts bounds id regeneration when NewService is given no explicit limit.
const DefaultIDAttempts = 5

// Service is the trade ticket state machine. Each mutation is one conditional store write;
// callers own any rendering or messaging driven by the returned snapshot.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.TradeTicket, error)
	Accept(ctx context.Context, input ActionInput) (*models.TradeTicket, error)
	Decline(ctx context.Context, input ActionInput) (*models.TradeTicket, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.TradeTicket, error)
	ForceClose(ctx context.Context, input ActionInput) (*models.TradeTicket, error)
	ExpireIfDue(ctx context.Context, input ExpireInput) (*models.TradeTicket, error)
	AttachExternalRef(ctx context.Context, input ExternalRefInput) (*models.TradeTicket, error)
	Get(ctx context.Context, communityID, ticketID string) (*models.TradeTicket, error)
	ListForMember(ctx context.Context, communityID, memberID string, params pagination.Params) (*TicketList, error)
	CountByStatus(ctx context.Context, communityID, memberID string) (*StatusCounts, error)
	ExpiryCandidates(ctx context.Context, query ExpiryQuery) ([]models.TradeTicket, error)
}

// ServiceParams wires the ledger's collaborators. Recorder, IDs and Now are optional.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Eligibility EligibilityChecker
	Staff       StaffAuthorizer
	IDs         IDGenerator
	IDAttempts  int
	Recorder    TransitionRecorder
	Now         func() time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	eligibility EligibilityChecker
	staff       StaffAuthorizer
	ids         IDGenerator
	idAttempts  int
	recorder    TransitionRecorder
	now         func() time.Time
}

// NewService builds the trade ledger with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("trades repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Eligibility == nil {
		return nil, fmt.Errorf("eligibility checker required")
	}
	if params.Staff == nil {
		return nil, fmt.Errorf("staff authorizer required")
	}

	svc := &service{
		repo:        params.Repo,
		tx:          params.Tx,
		eligibility: params.Eligibility,
		staff:       params.Staff,
		ids:         params.IDs,
		idAttempts:  params.IDAttempts,
		recorder:    params.Recorder,
		now:         params.Now,
	}
	if svc.ids == nil {
		svc.ids = NewRandomIDGenerator(0)
	}
	if svc.idAttempts <= 0 {
		svc.idAttempts = DefaultIDAttempts
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.TradeTicket, error) {
	communityID := strings.TrimSpace(input.CommunityID)
	openerID := strings.TrimSpace(input.OpenerID)
	partnerID := strings.TrimSpace(input.PartnerID)
	if communityID == "" || openerID == "" || partnerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "community, opener and partner are required")
	}
	if openerID == partnerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot open a trade with yourself")
	}

	eligible, err := s.eligibility.IsEligible(ctx, communityID, partnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check partner eligibility")
	}
	if !eligible {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner is not eligible to trade")
	}

	now := s.now().UTC()
	for attempt := 0; attempt < s.idAttempts; attempt++ {
		id, err := s.ids.NewID()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate ticket id")
		}
		ticket := &models.TradeTicket{
			ID:          id,
			CommunityID: communityID,
			OpenerID:    openerID,
			PartnerID:   partnerID,
			Status:      enums.TicketStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		inserted, err := s.repo.Insert(ctx, ticket)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert ticket")
		}
		if inserted {
			s.record(enums.TicketStatusPending)
			return ticket, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeIDExhausted, "ticket id space exhausted").
		WithDetails(map[string]any{"attempts": s.idAttempts})
}

func (s *service) Accept(ctx context.Context, input ActionInput) (*models.TradeTicket, error) {
	return s.partnerDecision(ctx, input, enums.TicketStatusActive)
}

func (s *service) Decline(ctx context.Context, input ActionInput) (*models.TradeTicket, error) {
	return s.partnerDecision(ctx, input, enums.TicketStatusDeclined)
}

func (s *service) partnerDecision(ctx context.Context, input ActionInput, target enums.TicketStatus) (*models.TradeTicket, error) {
	if err := validateAction(input.CommunityID, input.TicketID, input.ActorID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	updates := map[string]any{"status": target, "updated_at": now}
	if target.IsTerminal() {
		updates["closed_at"] = now
		updates["closed_by"] = input.ActorID
	}
	guard := Guard{
		CommunityID: input.CommunityID,
		Statuses:    []enums.TicketStatus{enums.TicketStatusPending},
		ActorColumn: actorColumnPartner,
		ActorID:     input.ActorID,
	}

	ticket, err := s.apply(ctx, input.CommunityID, input.TicketID, func(repo Repository) (int64, error) {
		return repo.Transition(ctx, input.TicketID, guard, updates)
	}, func(current *models.TradeTicket) error {
		if current.PartnerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the trade partner can respond to this ticket")
		}
		return invalidState(current, "ticket is no longer pending")
	})
	if err != nil {
		return nil, err
	}
	s.record(target)
	return ticket, nil
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.TradeTicket, error) {
	if err := validateAction(input.CommunityID, input.TicketID, input.ActorID); err != nil {
		return nil, err
	}
	if !input.Side.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "side must be opener or partner")
	}

	column := actorColumnOpener
	if input.Side == enums.ConfirmSidePartner {
		column = actorColumnPartner
	}
	guard := Guard{
		CommunityID: input.CommunityID,
		Statuses:    []enums.TicketStatus{enums.TicketStatusActive},
		ActorColumn: column,
		ActorID:     input.ActorID,
	}

	var repeated bool
	ticket, err := s.apply(ctx, input.CommunityID, input.TicketID, func(repo Repository) (int64, error) {
		return repo.Confirm(ctx, input.TicketID, guard, input.Side, s.now())
	}, func(current *models.TradeTicket) error {
		if sideActor(current, input.Side) != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("only the %s can confirm this side", input.Side))
		}
		if current.Status == enums.TicketStatusCompleted && sideConfirmed(current, input.Side) {
			repeated = true
			return nil
		}
		return invalidState(current, "ticket is not active")
	})
	if err != nil {
		return nil, err
	}
	if !repeated && ticket.Status == enums.TicketStatusCompleted {
		s.record(enums.TicketStatusCompleted)
	}
	return ticket, nil
}

func (s *service) ForceClose(ctx context.Context, input ActionInput) (*models.TradeTicket, error) {
	if err := validateAction(input.CommunityID, input.TicketID, input.ActorID); err != nil {
		return nil, err
	}
	staff, err := s.staff.IsStaff(ctx, input.CommunityID, input.ActorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check staff privileges")
	}
	if !staff {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff privileges required to close tickets")
	}

	now := s.now().UTC()
	updates := terminalUpdates(enums.TicketStatusCancelled, now)
	updates["closed_by"] = input.ActorID
	guard := Guard{CommunityID: input.CommunityID, Statuses: enums.NonTerminalTicketStatuses}

	ticket, err := s.apply(ctx, input.CommunityID, input.TicketID, func(repo Repository) (int64, error) {
		return repo.Transition(ctx, input.TicketID, guard, updates)
	}, func(current *models.TradeTicket) error {
		return invalidState(current, "ticket is already closed")
	})
	if err != nil {
		return nil, err
	}
	s.record(enums.TicketStatusCancelled)
	return ticket, nil
}

func (s *service) ExpireIfDue(ctx context.Context, input ExpireInput) (*models.TradeTicket, error) {
	if strings.TrimSpace(input.TicketID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	if input.TTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ttl must be positive")
	}
	now := input.Now
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()
	cutoff := now.Add(-input.TTL)
	guard := Guard{Statuses: enums.NonTerminalTicketStatuses, CreatedBefore: &cutoff}

	ticket, err := s.apply(ctx, "", input.TicketID, func(repo Repository) (int64, error) {
		return repo.Transition(ctx, input.TicketID, guard, terminalUpdates(enums.TicketStatusExpired, now))
	}, func(current *models.TradeTicket) error {
		if current.Status.IsTerminal() {
			return invalidState(current, "ticket is already closed")
		}
		return invalidState(current, "ticket is not yet due to expire")
	})
	if err != nil {
		return nil, err
	}
	s.record(enums.TicketStatusExpired)
	return ticket, nil
}

func (s *service) AttachExternalRef(ctx context.Context, input ExternalRefInput) (*models.TradeTicket, error) {
	ref := strings.TrimSpace(input.Ref)
	if strings.TrimSpace(input.CommunityID) == "" || strings.TrimSpace(input.TicketID) == "" || ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "community, ticket and reference are required")
	}
	guard := Guard{CommunityID: input.CommunityID}
	updates := map[string]any{"external_ref": ref, "updated_at": s.now().UTC()}

	return s.apply(ctx, input.CommunityID, input.TicketID, func(repo Repository) (int64, error) {
		return repo.Transition(ctx, input.TicketID, guard, updates)
	}, func(current *models.TradeTicket) error {
		return pkgerrors.New(pkgerrors.CodeInternal, "external reference update matched no rows")
	})
}

func (s *service) Get(ctx context.Context, communityID, ticketID string) (*models.TradeTicket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket id required")
	}
	ticket, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
	}
	if communityID != "" && ticket.CommunityID != communityID {
		return nil, pkgerrors.New(pkgerrors.CodeWrongCommunity, "ticket belongs to a different community")
	}
	return ticket, nil
}

func (s *service) ListForMember(ctx context.Context, communityID, memberID string, params pagination.Params) (*TicketList, error) {
	if strings.TrimSpace(communityID) == "" || strings.TrimSpace(memberID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "community and member are required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.ListForMember(ctx, communityID, memberID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list member tickets")
	}
	return list, nil
}

func (s *service) CountByStatus(ctx context.Context, communityID, memberID string) (*StatusCounts, error) {
	if strings.TrimSpace(communityID) == "" || strings.TrimSpace(memberID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "community and member are required")
	}
	counts, err := s.repo.CountByStatus(ctx, communityID, memberID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count member tickets")
	}
	out := &StatusCounts{MemberID: memberID, ByStatus: counts}
	for _, n := range counts {
		out.Total += n
	}
	return out, nil
}

func (s *service) ExpiryCandidates(ctx context.Context, query ExpiryQuery) ([]models.TradeTicket, error) {
	rows, err := s.repo.ListExpiryCandidates(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expiry candidates")
	}
	return rows, nil
}

// apply runs one conditional write and reads the resulting snapshot in the same transaction.
// When the write matches nothing, the current row is classified: missing, wrong community,
// then whatever explain decides.
func (s *service) apply(
	ctx context.Context,
	communityID, ticketID string,
	write func(repo Repository) (int64, error),
	explain func(current *models.TradeTicket) error,
) (*models.TradeTicket, error) {
	var snapshot *models.TradeTicket
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := write(repo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ticket")
		}

		current, err := repo.FindByID(ctx, ticketID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
		}
		if affected > 0 {
			snapshot = current
			return nil
		}
		if communityID != "" && current.CommunityID != communityID {
			return pkgerrors.New(pkgerrors.CodeWrongCommunity, "ticket belongs to a different community")
		}
		if err := explain(current); err != nil {
			return err
		}
		snapshot = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) record(status enums.TicketStatus) {
	if s.recorder != nil {
		s.recorder.RecordTransition(status)
	}
}

func validateAction(communityID, ticketID, actorID string) error {
	if strings.TrimSpace(communityID) == "" || strings.TrimSpace(ticketID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "community and ticket id are required")
	}
	if strings.TrimSpace(actorID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	return nil
}

// terminalUpdates clears both confirmations; only completed tickets keep them.
func terminalUpdates(status enums.TicketStatus, now time.Time) map[string]any {
	return map[string]any{
		"status":            status,
		"opener_confirmed":  false,
		"partner_confirmed": false,
		"closed_at":         now,
		"updated_at":        now,
	}
}

func invalidState(current *models.TradeTicket, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, msg).
		WithDetails(map[string]any{"status": current.Status})
}

func sideActor(ticket *models.TradeTicket, side enums.ConfirmSide) string {
	if side == enums.ConfirmSidePartner {
		return ticket.PartnerID
	}
	return ticket.OpenerID
}

func sideConfirmed(ticket *models.TradeTicket, side enums.ConfirmSide) bool {
	if side == enums.ConfirmSidePartner {
		return ticket.PartnerConfirmed
	}
	return ticket.OpenerConfirmed
}
