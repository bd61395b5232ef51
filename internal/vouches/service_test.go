package vouches

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/pkg/db/dbtest"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

const (
	guildID = "guild-1"
	alice   = "alice"
	bob     = "bob"
	carol   = "carol"
)

type allowAll struct {
	blocked map[string]bool
}

func (a allowAll) IsEligible(_ context.Context, _ string, memberID string) (bool, error) {
	return !a.blocked[memberID], nil
}

func (a allowAll) IsStaff(context.Context, string, string) (bool, error) { return true, nil }

type recordingReconciler struct {
	mu    sync.Mutex
	calls []enums.Tier
	err   error
}

func (r *recordingReconciler) Reconcile(_ context.Context, _, _ string, tier enums.Tier, _ tiers.RoleMap) (*tiers.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tier)
	if r.err != nil {
		return nil, r.err
	}
	return &tiers.Result{Tier: tier}, nil
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) RecordVouch(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

type fixture struct {
	trades     trades.Service
	vouches    Service
	settings   communities.Service
	reconciler *recordingReconciler
	outcomes   *outcomeCounter
	logs       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	gate := allowAll{blocked: map[string]bool{"bot-9": true}}

	tradeSvc, err := trades.NewService(trades.ServiceParams{
		Repo:        trades.NewRepository(client.DB()),
		Tx:          client,
		Eligibility: gate,
		Staff:       gate,
	})
	require.NoError(t, err)

	settings, err := communities.NewService(communities.NewRepository(client.DB()), tiers.DefaultThresholds, 3*time.Hour)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	f := &fixture{
		trades:     tradeSvc,
		settings:   settings,
		reconciler: &recordingReconciler{},
		outcomes:   &outcomeCounter{},
		logs:       logs,
	}
	f.vouches, err = NewService(ServiceParams{
		Repo:        NewRepository(client.DB()),
		Tickets:     tradeSvc,
		Eligibility: gate,
		Settings:    settings,
		Reconciler:  f.reconciler,
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: logs}),
		Recorder:    f.outcomes,
	})
	require.NoError(t, err)
	return f
}

// completedTrade drives a ticket between opener and partner through to completion.
func (f *fixture) completedTrade(t *testing.T, opener, partner string) *models.TradeTicket {
	t.Helper()
	ctx := context.Background()
	ticket, err := f.trades.Create(ctx, trades.CreateInput{CommunityID: guildID, OpenerID: opener, PartnerID: partner})
	require.NoError(t, err)
	_, err = f.trades.Accept(ctx, trades.ActionInput{CommunityID: guildID, TicketID: ticket.ID, ActorID: partner})
	require.NoError(t, err)
	_, err = f.trades.Confirm(ctx, trades.ConfirmInput{CommunityID: guildID, TicketID: ticket.ID, ActorID: opener, Side: enums.ConfirmSideOpener})
	require.NoError(t, err)
	ticket, err = f.trades.Confirm(ctx, trades.ConfirmInput{CommunityID: guildID, TicketID: ticket.ID, ActorID: partner, Side: enums.ConfirmSidePartner})
	require.NoError(t, err)
	require.Equal(t, enums.TicketStatusCompleted, ticket.Status)
	return ticket
}

func (f *fixture) vouch(ticketID, author, target string, rating int) (*FeedbackResult, error) {
	return f.vouches.AddFeedback(context.Background(), AddFeedbackInput{
		CommunityID: guildID,
		TicketID:    ticketID,
		AuthorID:    author,
		TargetID:    target,
		Rating:      rating,
		Note:        "smooth trade",
	})
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), typed.Error())
}

func TestCompletedTradeFeedbackAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.completedTrade(t, alice, bob)

	res, err := f.vouch(ticket.ID, alice, bob, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Reputation.Count)
	assert.Equal(t, enums.TierNew, res.Reputation.Tier)
	assert.Equal(t, "New Trader", res.Reputation.TierName)
	require.NotNil(t, res.TierSync)

	count, err := f.vouches.CountFor(ctx, guildID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	avg, err := f.vouches.AverageFor(ctx, guildID, bob)
	require.NoError(t, err)
	assert.Equal(t, 5.0, avg)

	assert.Equal(t, []enums.Tier{enums.TierNew}, f.reconciler.calls)
	assert.Equal(t, 1, f.outcomes.counts[outcomeRecorded])
}

func TestNoteLimitCountsCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.completedTrade(t, alice, bob)

	input := AddFeedbackInput{
		CommunityID: guildID,
		TicketID:    ticket.ID,
		AuthorID:    alice,
		TargetID:    bob,
		Rating:      5,
		Note:        strings.Repeat("ж", maxNoteLength+1),
	}
	_, err := f.vouches.AddFeedback(ctx, input)
	requireCode(t, err, pkgerrors.CodeValidation)

	// two bytes per rune, so this is well over the limit in bytes
	input.Note = strings.Repeat("ж", maxNoteLength)
	res, err := f.vouches.AddFeedback(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, maxNoteLength, utf8.RuneCountInString(res.Vouch.Note))
}

func TestDuplicateFeedbackIsAlreadyRated(t *testing.T) {
	f := newFixture(t)
	ticket := f.completedTrade(t, alice, bob)

	_, err := f.vouch(ticket.ID, alice, bob, 5)
	require.NoError(t, err)

	_, err = f.vouch(ticket.ID, alice, bob, 4)
	requireCode(t, err, pkgerrors.CodeAlreadyRated)

	count, err := f.vouches.CountFor(context.Background(), guildID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, f.outcomes.counts["already_rated"])

	// the other participant still has their own slot on the same ticket
	_, err = f.vouch(ticket.ID, bob, alice, 3)
	require.NoError(t, err)
}

func TestConcurrentDuplicateFeedbackStoresOne(t *testing.T) {
	f := newFixture(t)
	ticket := f.completedTrade(t, alice, bob)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.vouch(ticket.ID, alice, bob, 5)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireCode(t, err, pkgerrors.CodeAlreadyRated)
	}
	assert.Equal(t, 1, succeeded)

	count, err := f.vouches.CountFor(context.Background(), guildID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFeedbackValidation(t *testing.T) {
	f := newFixture(t)
	ticket := f.completedTrade(t, alice, bob)

	_, err := f.vouch(ticket.ID, alice, alice, 5)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.vouch(ticket.ID, alice, bob, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.vouch(ticket.ID, alice, bob, 6)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.vouch(ticket.ID, alice, "bot-9", 5)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestFeedbackRequiresParticipantsOfTheTicket(t *testing.T) {
	f := newFixture(t)
	ticket := f.completedTrade(t, alice, bob)

	_, err := f.vouch(ticket.ID, carol, bob, 5)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.vouch(ticket.ID, alice, carol, 5)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.vouch("MISSING0", alice, bob, 5)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.vouches.AddFeedback(context.Background(), AddFeedbackInput{
		CommunityID: "guild-2", TicketID: ticket.ID, AuthorID: alice, TargetID: bob, Rating: 5,
	})
	requireCode(t, err, pkgerrors.CodeWrongCommunity)
}

func TestFeedbackOnDeclinedTicketIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.trades.Create(ctx, trades.CreateInput{CommunityID: guildID, OpenerID: alice, PartnerID: bob})
	require.NoError(t, err)
	_, err = f.trades.Decline(ctx, trades.ActionInput{CommunityID: guildID, TicketID: ticket.ID, ActorID: bob})
	require.NoError(t, err)

	_, err = f.vouch(ticket.ID, alice, bob, 5)
	requireCode(t, err, pkgerrors.CodeInvalidState)
}

func TestFeedbackOnExpiredTicketIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.trades.Create(ctx, trades.CreateInput{CommunityID: guildID, OpenerID: alice, PartnerID: bob})
	require.NoError(t, err)

	_, err = f.trades.ExpireIfDue(ctx, trades.ExpireInput{TicketID: ticket.ID, Now: time.Now().Add(4 * time.Hour), TTL: 3 * time.Hour})
	require.NoError(t, err)

	_, err = f.vouch(ticket.ID, alice, bob, 5)
	requireCode(t, err, pkgerrors.CodeInvalidState)
}

func TestReconcileFailureDoesNotLoseFeedback(t *testing.T) {
	f := newFixture(t)
	f.reconciler.err = errors.New("missing permissions")
	ticket := f.completedTrade(t, alice, bob)

	res, err := f.vouch(ticket.ID, alice, bob, 4)
	require.NoError(t, err)
	assert.Nil(t, res.TierSync)
	assert.Contains(t, f.logs.String(), "tier role reconcile failed")

	count, err := f.vouches.CountFor(context.Background(), guildID, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAverageWithoutFeedbackIsZero(t *testing.T) {
	f := newFixture(t)
	avg, err := f.vouches.AverageFor(context.Background(), guildID, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	rep, err := f.vouches.Reputation(context.Background(), guildID, "nobody")
	require.NoError(t, err)
	assert.Equal(t, enums.TierUnranked, rep.Tier)
	assert.Equal(t, "0.00", rep.AverageDisplay)
}

func TestLeaderboardOrdering(t *testing.T) {
	f := newFixture(t)

	// bob: two vouches averaging 4.5; dave: two vouches averaging 5; erin: one 5; frank: one 5
	t1 := f.completedTrade(t, alice, bob)
	t2 := f.completedTrade(t, carol, bob)
	t3 := f.completedTrade(t, alice, "dave")
	t4 := f.completedTrade(t, carol, "dave")
	t5 := f.completedTrade(t, alice, "frank")
	t6 := f.completedTrade(t, carol, "erin")

	for _, v := range []struct {
		ticket *models.TradeTicket
		author string
		target string
		rating int
	}{
		{t1, alice, bob, 5},
		{t2, carol, bob, 4},
		{t3, alice, "dave", 5},
		{t4, carol, "dave", 5},
		{t5, alice, "frank", 5},
		{t6, carol, "erin", 5},
	} {
		_, err := f.vouch(v.ticket.ID, v.author, v.target, v.rating)
		require.NoError(t, err)
	}

	board, err := f.vouches.Leaderboard(context.Background(), guildID, 10)
	require.NoError(t, err)
	require.Len(t, board, 4)

	got := []string{}
	for _, entry := range board {
		got = append(got, entry.TargetID)
	}
	assert.Equal(t, []string{"dave", bob, "erin", "frank"}, got)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "4.50", board[1].AverageDisplay)

	again, err := f.vouches.Leaderboard(context.Background(), guildID, 10)
	require.NoError(t, err)
	assert.Equal(t, board, again)

	top, err := f.vouches.Leaderboard(context.Background(), guildID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "dave", top[0].TargetID)
}

func TestSyncTierSurfacesGatewayErrors(t *testing.T) {
	f := newFixture(t)
	f.reconciler.err = errors.New("forbidden")

	_, err := f.vouches.SyncTier(context.Background(), guildID, bob)
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Equal(t, []enums.Tier{enums.TierUnranked}, f.reconciler.calls)
}
