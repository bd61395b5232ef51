package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/pkg/db/dbtest"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
)

type everyoneEligible struct{}

func (everyoneEligible) IsEligible(context.Context, string, string) (bool, error) { return true, nil }
func (everyoneEligible) IsStaff(context.Context, string, string) (bool, error)    { return false, nil }

type recordingNotifier struct {
	mu      sync.Mutex
	tickets []*models.TradeTicket
	err     error
}

func (r *recordingNotifier) TicketChanged(_ context.Context, action, _ string, ticket *models.TradeTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if action == expireAction {
		r.tickets = append(r.tickets, ticket)
	}
	return r.err
}

type expiryFixture struct {
	ledger   trades.Service
	settings communities.Service
	notifier *recordingNotifier
	job      *tradeExpiryJob
	opened   time.Time
	clock    *time.Time
}

func newExpiryFixture(t *testing.T) *expiryFixture {
	t.Helper()
	client := dbtest.Client(t)
	opened := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	clock := opened

	ledger, err := trades.NewService(trades.ServiceParams{
		Repo:        trades.NewRepository(client.DB()),
		Tx:          client,
		Eligibility: everyoneEligible{},
		Staff:       everyoneEligible{},
		Now:         func() time.Time { return clock },
	})
	require.NoError(t, err)
	settings, err := communities.NewService(communities.NewRepository(client.DB()), tiers.DefaultThresholds, 3*time.Hour)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	job, err := NewTradeExpiryJob(TradeExpiryJobParams{
		Logger:   testLogger(),
		Ledger:   ledger,
		TTLs:     settings,
		Notifier: notifier,
	})
	require.NoError(t, err)

	return &expiryFixture{
		ledger:   ledger,
		settings: settings,
		notifier: notifier,
		job:      job.(*tradeExpiryJob),
		opened:   opened,
		clock:    &clock,
	}
}

// rendered opens a ticket and attaches a status message reference.
func (f *expiryFixture) rendered(t *testing.T, community string) *models.TradeTicket {
	t.Helper()
	ctx := context.Background()
	ticket, err := f.ledger.Create(ctx, trades.CreateInput{CommunityID: community, OpenerID: "alice", PartnerID: "bob"})
	require.NoError(t, err)
	ticket, err = f.ledger.AttachExternalRef(ctx, trades.ExternalRefInput{CommunityID: community, TicketID: ticket.ID, Ref: "msg-" + ticket.ID})
	require.NoError(t, err)
	return ticket
}

func (f *expiryFixture) status(t *testing.T, community, id string) enums.TicketStatus {
	t.Helper()
	ticket, err := f.ledger.Get(context.Background(), community, id)
	require.NoError(t, err)
	return ticket.Status
}

func TestTradeExpiryClosesOverdueRenderedTickets(t *testing.T) {
	f := newExpiryFixture(t)
	ctx := context.Background()

	pending := f.rendered(t, "guild-1")
	active := f.rendered(t, "guild-1")
	_, err := f.ledger.Accept(ctx, trades.ActionInput{CommunityID: "guild-1", TicketID: active.ID, ActorID: "bob"})
	require.NoError(t, err)

	unrendered, err := f.ledger.Create(ctx, trades.CreateInput{CommunityID: "guild-1", OpenerID: "alice", PartnerID: "bob"})
	require.NoError(t, err)

	f.job.now = func() time.Time { return f.opened.Add(3 * time.Hour) }
	require.NoError(t, f.job.Run(ctx))

	assert.Equal(t, enums.TicketStatusExpired, f.status(t, "guild-1", pending.ID))
	assert.Equal(t, enums.TicketStatusExpired, f.status(t, "guild-1", active.ID))
	assert.Equal(t, enums.TicketStatusPending, f.status(t, "guild-1", unrendered.ID))
	require.Len(t, f.notifier.tickets, 2)
	for _, ticket := range f.notifier.tickets {
		assert.Equal(t, enums.TicketStatusExpired, ticket.Status)
		assert.False(t, ticket.OpenerConfirmed || ticket.PartnerConfirmed)
	}

	// a second sweep finds nothing left to do
	require.NoError(t, f.job.Run(ctx))
	assert.Len(t, f.notifier.tickets, 2)
}

func TestTradeExpiryLeavesTicketsBeforeTTL(t *testing.T) {
	f := newExpiryFixture(t)
	ctx := context.Background()
	ticket := f.rendered(t, "guild-1")

	f.job.now = func() time.Time { return f.opened.Add(3*time.Hour - time.Second) }
	require.NoError(t, f.job.Run(ctx))
	assert.Equal(t, enums.TicketStatusPending, f.status(t, "guild-1", ticket.ID))
	assert.Empty(t, f.notifier.tickets)
}

func TestTradeExpiryAppliesCommunityTTL(t *testing.T) {
	f := newExpiryFixture(t)
	ctx := context.Background()

	short := 30 * time.Minute
	_, err := f.settings.UpdateTradeTTL(ctx, "guild-fast", &short)
	require.NoError(t, err)
	long := 6 * time.Hour
	_, err = f.settings.UpdateTradeTTL(ctx, "guild-slow", &long)
	require.NoError(t, err)

	fast := f.rendered(t, "guild-fast")
	slow := f.rendered(t, "guild-slow")
	normal := f.rendered(t, "guild-1")

	f.job.now = func() time.Time { return f.opened.Add(time.Hour) }
	require.NoError(t, f.job.Run(ctx))
	assert.Equal(t, enums.TicketStatusExpired, f.status(t, "guild-fast", fast.ID))
	assert.Equal(t, enums.TicketStatusPending, f.status(t, "guild-slow", slow.ID))
	assert.Equal(t, enums.TicketStatusPending, f.status(t, "guild-1", normal.ID))

	f.job.now = func() time.Time { return f.opened.Add(4 * time.Hour) }
	require.NoError(t, f.job.Run(ctx))
	assert.Equal(t, enums.TicketStatusPending, f.status(t, "guild-slow", slow.ID))
	assert.Equal(t, enums.TicketStatusExpired, f.status(t, "guild-1", normal.ID))
}

func TestTradeExpiryReachesDueTicketsBehindFullBatches(t *testing.T) {
	f := newExpiryFixture(t)
	ctx := context.Background()
	f.job.batch = 2

	long := 24 * time.Hour
	_, err := f.settings.UpdateTradeTTL(ctx, "guild-slow", &long)
	require.NoError(t, err)
	short := 30 * time.Minute
	_, err = f.settings.UpdateTradeTTL(ctx, "guild-fast", &short)
	require.NoError(t, err)

	slowA := f.rendered(t, "guild-slow")
	slowB := f.rendered(t, "guild-slow")
	slowC := f.rendered(t, "guild-slow")
	*f.clock = f.opened.Add(time.Hour)
	fast := f.rendered(t, "guild-fast")

	f.job.now = func() time.Time { return f.opened.Add(3 * time.Hour) }
	require.NoError(t, f.job.Run(ctx))

	assert.Equal(t, enums.TicketStatusExpired, f.status(t, "guild-fast", fast.ID))
	for _, slow := range []*models.TradeTicket{slowA, slowB, slowC} {
		assert.Equal(t, enums.TicketStatusPending, f.status(t, "guild-slow", slow.ID))
	}
	require.Len(t, f.notifier.tickets, 1)
	assert.Equal(t, fast.ID, f.notifier.tickets[0].ID)
}

func TestTradeExpirySkipsCompletedTickets(t *testing.T) {
	f := newExpiryFixture(t)
	ctx := context.Background()
	ticket := f.rendered(t, "guild-1")
	_, err := f.ledger.Accept(ctx, trades.ActionInput{CommunityID: "guild-1", TicketID: ticket.ID, ActorID: "bob"})
	require.NoError(t, err)
	_, err = f.ledger.Confirm(ctx, trades.ConfirmInput{CommunityID: "guild-1", TicketID: ticket.ID, ActorID: "alice", Side: enums.ConfirmSideOpener})
	require.NoError(t, err)
	_, err = f.ledger.Confirm(ctx, trades.ConfirmInput{CommunityID: "guild-1", TicketID: ticket.ID, ActorID: "bob", Side: enums.ConfirmSidePartner})
	require.NoError(t, err)

	f.job.now = func() time.Time { return f.opened.Add(10 * time.Hour) }
	require.NoError(t, f.job.Run(ctx))
	assert.Equal(t, enums.TicketStatusCompleted, f.status(t, "guild-1", ticket.ID))
	assert.Empty(t, f.notifier.tickets)
}

func TestTradeExpiryNotificationFailureIsNotFatal(t *testing.T) {
	f := newExpiryFixture(t)
	f.notifier.err = errors.New("pubsub unavailable")
	ticket := f.rendered(t, "guild-1")

	f.job.now = func() time.Time { return f.opened.Add(5 * time.Hour) }
	require.NoError(t, f.job.Run(context.Background()))
	assert.Equal(t, enums.TicketStatusExpired, f.status(t, "guild-1", ticket.ID))
}

type raceLedger struct {
	expiryLedger
	candidates []models.TradeTicket
	err        error
}

func (r raceLedger) ExpiryCandidates(context.Context, trades.ExpiryQuery) ([]models.TradeTicket, error) {
	return r.candidates, nil
}

func (r raceLedger) ExpireIfDue(context.Context, trades.ExpireInput) (*models.TradeTicket, error) {
	return nil, r.err
}

type fixedTTL time.Duration

func (f fixedTTL) TradeTTL(context.Context, string) (time.Duration, error) { return time.Duration(f), nil }
func (f fixedTTL) MinTradeTTL(context.Context) (time.Duration, error)        { return time.Duration(f), nil }

func TestTradeExpiryReportsStoreFailures(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	candidates := []models.TradeTicket{
		{ID: "AAAA0001", CommunityID: "guild-1", CreatedAt: now.Add(-5 * time.Hour)},
		{ID: "AAAA0002", CommunityID: "guild-1", CreatedAt: now.Add(-5 * time.Hour)},
	}
	job, err := NewTradeExpiryJob(TradeExpiryJobParams{
		Logger:   testLogger(),
		Ledger:   raceLedger{candidates: candidates, err: errors.New("connection reset")},
		TTLs:     fixedTTL(3 * time.Hour),
		Notifier: &recordingNotifier{},
	})
	require.NoError(t, err)
	job.(*tradeExpiryJob).now = func() time.Time { return now }

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "AAAA0001")
	assert.ErrorContains(t, err, "AAAA0002")
}
