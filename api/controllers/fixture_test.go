package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradevouch/api/middleware"
	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/internal/vouches"
	"github.com/angelmondragon/tradevouch/pkg/db/dbtest"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

const guildID = "guild-1"

type memberGate struct {
	bots  map[string]bool
	staff map[string]bool
}

func (g memberGate) IsEligible(_ context.Context, _ string, memberID string) (bool, error) {
	return !g.bots[memberID], nil
}

func (g memberGate) IsStaff(_ context.Context, _ string, memberID string) (bool, error) {
	return g.staff[memberID], nil
}

type noopReconciler struct{}

func (noopReconciler) Reconcile(_ context.Context, _, _ string, tier enums.Tier, _ tiers.RoleMap) (*tiers.Result, error) {
	return &tiers.Result{Tier: tier}, nil
}

type notified struct {
	action string
	actor  string
	ticket models.TradeTicket
}

type recordingNotifier struct {
	mu      sync.Mutex
	tickets []notified
	vouches []vouches.FeedbackResult
	err     error
}

func (n *recordingNotifier) TicketChanged(_ context.Context, action, actorID string, ticket *models.TradeTicket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tickets = append(n.tickets, notified{action: action, actor: actorID, ticket: *ticket})
	return n.err
}

func (n *recordingNotifier) VouchRecorded(_ context.Context, result *vouches.FeedbackResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vouches = append(n.vouches, *result)
	return n.err
}

type fixture struct {
	trades   trades.Service
	vouches  vouches.Service
	settings communities.Service
	notifier *recordingNotifier
	logg     *logger.Logger
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	gate := memberGate{
		bots:  map[string]bool{"bot-9": true},
		staff: map[string]bool{"mod": true},
	}
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: logs})

	tradeSvc, err := trades.NewService(trades.ServiceParams{
		Repo:        trades.NewRepository(client.DB()),
		Tx:          client,
		Eligibility: gate,
		Staff:       gate,
	})
	require.NoError(t, err)

	settings, err := communities.NewService(communities.NewRepository(client.DB()), tiers.DefaultThresholds, 3*time.Hour)
	require.NoError(t, err)

	vouchSvc, err := vouches.NewService(vouches.ServiceParams{
		Repo:        vouches.NewRepository(client.DB()),
		Tickets:     tradeSvc,
		Eligibility: gate,
		Settings:    settings,
		Reconciler:  noopReconciler{},
		Logger:      logg,
	})
	require.NoError(t, err)

	return &fixture{
		trades:   tradeSvc,
		vouches:  vouchSvc,
		settings: settings,
		notifier: &recordingNotifier{},
		logg:     logg,
		logs:     logs,
	}
}

// call invokes handler as actor with the given route params and JSON body.
func call(handler http.HandlerFunc, method, actor, body string, params map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	rc := chi.NewRouteContext()
	rc.URLParams.Add(middleware.CommunityParam, guildID)
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx := middleware.WithActor(req.Context(), actor, guildID, false)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)

	resp := httptest.NewRecorder()
	handler(resp, req.WithContext(ctx))
	return resp
}

func ticketParam(id string) map[string]string {
	return map[string]string{"ticketId": id}
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func decodeErrorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	envelope := struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

// completed drives a ticket to completion through the service.
func (f *fixture) completed(t *testing.T, opener, partner string) *models.TradeTicket {
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
	return ticket
}
