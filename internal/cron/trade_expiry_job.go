package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/logger"
	"github.com/angelmondragon/tradevouch/pkg/pagination"
)

const (
	tradeExpiryJobName     = "trade-expiry"
	defaultExpiryBatchSize = 500
	expireAction           = "expire"
)

// TradeExpiryJobParams configure the ticket expiry sweep.
type TradeExpiryJobParams struct {
	Logger    *logger.Logger
	Ledger    expiryLedger
	TTLs      ttlResolver
	Notifier  ticketNotifier
	BatchSize int
}

type expiryLedger interface {
	ExpiryCandidates(ctx context.Context, query trades.ExpiryQuery) ([]models.TradeTicket, error)
	ExpireIfDue(ctx context.Context, input trades.ExpireInput) (*models.TradeTicket, error)
}

type ttlResolver interface {
	TradeTTL(ctx context.Context, communityID string) (time.Duration, error)
	MinTradeTTL(ctx context.Context) (time.Duration, error)
}

type ticketNotifier interface {
	TicketChanged(ctx context.Context, action, actorID string, ticket *models.TradeTicket) error
}

// NewTradeExpiryJob builds the job that closes rendered tickets left open past their community TTL.
func NewTradeExpiryJob(params TradeExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("trade ledger required")
	}
	if params.TTLs == nil {
		return nil, fmt.Errorf("ttl resolver required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &tradeExpiryJob{
		logg:     params.Logger,
		ledger:   params.Ledger,
		ttls:     params.TTLs,
		notifier: params.Notifier,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type tradeExpiryJob struct {
	logg     *logger.Logger
	ledger   expiryLedger
	ttls     ttlResolver
	notifier ticketNotifier
	batch    int
	now      func() time.Time
}

func (j *tradeExpiryJob) Name() string { return tradeExpiryJobName }

func (j *tradeExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	minTTL, err := j.ttls.MinTradeTTL(ctx)
	if err != nil {
		return fmt.Errorf("resolve minimum ttl: %w", err)
	}

	var (
		errs       []error
		candidates int
		pages      int
		expired    int
		skipped    int
		ttlCache   = map[string]time.Duration{}
		after      *pagination.Cursor
	)
	// every page is visited each tick so long-TTL tickets cannot crowd out due ones
	for {
		page, err := j.ledger.ExpiryCandidates(ctx, trades.ExpiryQuery{
			CreatedBefore: now.Add(-minTTL),
			After:         after,
			Limit:         j.batch,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("list expiry candidates: %w", err))
			break
		}
		pages++
		candidates += len(page)

		for i := range page {
			ticket := page[i]
			ttl, ok := ttlCache[ticket.CommunityID]
			if !ok {
				ttl, err = j.ttls.TradeTTL(ctx, ticket.CommunityID)
				if err != nil {
					errs = append(errs, fmt.Errorf("resolve ttl for community %s: %w", ticket.CommunityID, err))
					continue
				}
				ttlCache[ticket.CommunityID] = ttl
			}
			if ticket.CreatedAt.After(now.Add(-ttl)) {
				skipped++
				continue
			}

			closed, err := j.ledger.ExpireIfDue(ctx, trades.ExpireInput{TicketID: ticket.ID, Now: now, TTL: ttl})
			if err != nil {
				// raced with a participant action; the ticket moved on without us
				if pkgerrors.IsCode(err, pkgerrors.CodeInvalidState) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					skipped++
					continue
				}
				errs = append(errs, fmt.Errorf("expire ticket %s: %w", ticket.ID, err))
				continue
			}
			expired++

			if notifyErr := j.notifier.TicketChanged(ctx, expireAction, "", closed); notifyErr != nil {
				j.logg.Error(j.logg.WithTicketID(ctx, ticket.ID), "expiry notification failed", notifyErr)
			}
		}

		if len(page) < j.batch {
			break
		}
		last := page[len(page)-1]
		after = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": candidates,
		"pages":      pages,
		"expired":    expired,
		"skipped":    skipped,
		"failed":     len(errs),
	}), "trade expiry sweep complete")
	return multierr.Combine(errs...)
}
