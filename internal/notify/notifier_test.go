package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/internal/vouches"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

type published struct {
	topic string
	attrs map[string]string
	body  []byte
}

type fakeSink struct {
	messages []published
	err      error
}

func (f *fakeSink) Publish(_ context.Context, topic string, attrs map[string]string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, published{topic: topic, attrs: attrs, body: data})
	return "msg-1", nil
}

type fixedSettings struct {
	channel *string
	err     error
}

func (f fixedSettings) Get(_ context.Context, communityID string) (*communities.Settings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &communities.Settings{CommunityID: communityID, VouchChannelID: f.channel}, nil
}

func newTestNotifier(t *testing.T, sink Sink, settings SettingsReader) *Notifier {
	t.Helper()
	n, err := NewNotifier(sink, settings, Topics{Trades: "trades", Vouches: "vouches"}, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func decode(t *testing.T, body []byte, data any) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	require.NoError(t, json.Unmarshal(env.Data, data))
	return env
}

func TestTicketChangedPublishesSnapshot(t *testing.T) {
	sink := &fakeSink{}
	n := newTestNotifier(t, sink, fixedSettings{})
	ticket := &models.TradeTicket{
		ID: "K7M2Q9XA", CommunityID: "guild-1", OpenerID: "alice", PartnerID: "bob",
		Status: enums.TicketStatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	require.NoError(t, n.TicketChanged(context.Background(), "accept", "bob", ticket))
	require.Len(t, sink.messages, 1)
	msg := sink.messages[0]
	assert.Equal(t, "trades", msg.topic)
	assert.Equal(t, "active", msg.attrs["status"])
	assert.Equal(t, EventTicketChanged, msg.attrs["event_type"])

	var payload TicketChanged
	env := decode(t, msg.body, &payload)
	assert.Equal(t, envelopeVersion, env.Version)
	assert.Equal(t, "bob", env.ActorID)
	assert.Equal(t, msg.attrs["event_id"], env.EventID)
	assert.Equal(t, "accept", payload.Action)
	assert.Equal(t, "K7M2Q9XA", payload.Ticket.ID)
	assert.Equal(t, enums.TicketStatusActive, payload.Ticket.Status)
}

func TestVouchRecordedCarriesChannelAndTierChange(t *testing.T) {
	sink := &fakeSink{}
	channel := "chan-9"
	n := newTestNotifier(t, sink, fixedSettings{channel: &channel})

	result := &vouches.FeedbackResult{
		Vouch: models.Vouch{
			ID: uuid.New(), CommunityID: "guild-1", TicketID: "K7M2Q9XA",
			AuthorID: "alice", TargetID: "bob", Rating: 5, Note: "fast",
		},
		Reputation: vouches.Reputation{
			MemberID: "bob", Count: 5, Average: 4.8, AverageDisplay: "4.80",
			Tier: enums.TierVerified, TierName: enums.TierVerified.DisplayName(),
		},
		TierSync: &tiers.Result{Tier: enums.TierVerified, Added: []string{"role-v"}, Removed: []string{"role-n"}},
	}

	require.NoError(t, n.VouchRecorded(context.Background(), result))
	require.Len(t, sink.messages, 1)
	assert.Equal(t, "vouches", sink.messages[0].topic)

	var payload VouchRecorded
	env := decode(t, sink.messages[0].body, &payload)
	assert.Equal(t, EventVouchRecorded, env.Type)
	require.NotNil(t, payload.ChannelID)
	assert.Equal(t, "chan-9", *payload.ChannelID)
	assert.Equal(t, int64(5), payload.Count)
	assert.Equal(t, "Verified Trader", payload.TierName)
	assert.Equal(t, []string{"role-v"}, payload.RolesAdded)
	assert.Equal(t, []string{"role-n"}, payload.RolesRemoved)
}

func TestNotifierSurfacesFailures(t *testing.T) {
	n := newTestNotifier(t, &fakeSink{err: errors.New("unavailable")}, fixedSettings{})
	err := n.TicketChanged(context.Background(), "decline", "bob", &models.TradeTicket{ID: "X", CommunityID: "g"})
	assert.ErrorContains(t, err, "unavailable")

	n = newTestNotifier(t, &fakeSink{}, fixedSettings{err: errors.New("db down")})
	err = n.VouchRecorded(context.Background(), &vouches.FeedbackResult{Vouch: models.Vouch{CommunityID: "g"}})
	assert.ErrorContains(t, err, "db down")

	assert.Error(t, n.TicketChanged(context.Background(), "accept", "bob", nil))
}

func TestLogSinkNeverFails(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := LogSink{Logger: logger.New(logger.Options{ServiceName: "test", Output: buf})}
	_, err := sink.Publish(context.Background(), "trades", map[string]string{"event_type": EventTicketChanged}, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "pubsub disabled")
}
