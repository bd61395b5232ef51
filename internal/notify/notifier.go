package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/internal/vouches"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

const envelopeVersion = 1

// Event types published for the renderer.
const (
	EventTicketChanged = "trade.ticket_changed"
	EventVouchRecorded = "trade.vouch_recorded"
)

// Sink delivers one encoded event to a topic.
type Sink interface {
	Publish(ctx context.Context, topic string, attrs map[string]string, data []byte) (string, error)
}

// SettingsReader resolves the community's vouch log channel.
type SettingsReader interface {
	Get(ctx context.Context, communityID string) (*communities.Settings, error)
}

// Topics names where each event family is published.
type Topics struct {
	Trades  string
	Vouches string
}

// Envelope wraps every published payload.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    string          `json:"actor_id,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// TicketChanged carries a post-transition snapshot so the renderer can redraw the status message.
type TicketChanged struct {
	Action string            `json:"action"`
	Ticket trades.TicketView `json:"ticket"`
}

// VouchRecorded is posted to the community's vouch log.
type VouchRecorded struct {
	CommunityID    string     `json:"community_id"`
	TicketID       string     `json:"ticket_id"`
	AuthorID       string     `json:"author_id"`
	TargetID       string     `json:"target_id"`
	Rating         int        `json:"rating"`
	Note           string     `json:"note,omitempty"`
	ProofRef       *string    `json:"proof_ref,omitempty"`
	ChannelID      *string    `json:"channel_id,omitempty"`
	Count          int64      `json:"count"`
	AverageDisplay string     `json:"average_display"`
	Tier           enums.Tier `json:"tier"`
	TierName       string     `json:"tier_name"`
	RolesAdded     []string   `json:"roles_added,omitempty"`
	RolesRemoved   []string   `json:"roles_removed,omitempty"`
}

// Notifier publishes ledger events for the rendering side. Callers treat every failure as
// best-effort: the ledger write has already committed.
type Notifier struct {
	sink     Sink
	settings SettingsReader
	topics   Topics
	logg     *logger.Logger
	now      func() time.Time
}

func NewNotifier(sink Sink, settings SettingsReader, topics Topics, logg *logger.Logger) (*Notifier, error) {
	if sink == nil {
		return nil, fmt.Errorf("event sink required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{sink: sink, settings: settings, topics: topics, logg: logg, now: time.Now}, nil
}

// TicketChanged publishes the ticket snapshot after action by actorID.
func (n *Notifier) TicketChanged(ctx context.Context, action, actorID string, ticket *models.TradeTicket) error {
	if ticket == nil {
		return fmt.Errorf("ticket snapshot required")
	}
	payload := TicketChanged{Action: action, Ticket: trades.NewTicketView(ticket)}
	attrs := map[string]string{
		"community_id": ticket.CommunityID,
		"ticket_id":    ticket.ID,
		"status":       string(ticket.Status),
	}
	return n.publish(ctx, n.topics.Trades, EventTicketChanged, actorID, attrs, payload)
}

// VouchRecorded publishes a vouch log entry addressed to the community's configured channel.
func (n *Notifier) VouchRecorded(ctx context.Context, result *vouches.FeedbackResult) error {
	if result == nil {
		return fmt.Errorf("feedback result required")
	}
	v := result.Vouch
	settings, err := n.settings.Get(ctx, v.CommunityID)
	if err != nil {
		return fmt.Errorf("load vouch channel: %w", err)
	}
	payload := VouchRecorded{
		CommunityID:    v.CommunityID,
		TicketID:       v.TicketID,
		AuthorID:       v.AuthorID,
		TargetID:       v.TargetID,
		Rating:         v.Rating,
		Note:           v.Note,
		ProofRef:       v.ProofRef,
		ChannelID:      settings.VouchChannelID,
		Count:          result.Reputation.Count,
		AverageDisplay: result.Reputation.AverageDisplay,
		Tier:           result.Reputation.Tier,
		TierName:       result.Reputation.TierName,
	}
	if result.TierSync != nil {
		payload.RolesAdded = result.TierSync.Added
		payload.RolesRemoved = result.TierSync.Removed
	}
	attrs := map[string]string{
		"community_id": v.CommunityID,
		"ticket_id":    v.TicketID,
		"target_id":    v.TargetID,
	}
	return n.publish(ctx, n.topics.Vouches, EventVouchRecorded, v.AuthorID, attrs, payload)
}

func (n *Notifier) publish(ctx context.Context, topic, eventType, actorID string, attrs map[string]string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	envelope := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: n.now().UTC(),
		ActorID:    actorID,
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	attrs["event_id"] = envelope.EventID
	attrs["event_type"] = eventType

	id, err := n.sink.Publish(ctx, topic, attrs, body)
	if err != nil {
		return err
	}
	n.logg.Debug(n.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
		"topic":      topic,
		"message_id": id,
	}), "event published")
	return nil
}

// LogSink stands in for Pub/Sub when no GCP project is configured; events are only logged.
type LogSink struct {
	Logger *logger.Logger
}

func (s LogSink) Publish(ctx context.Context, topic string, attrs map[string]string, data []byte) (string, error) {
	if s.Logger != nil {
		s.Logger.Info(s.Logger.WithFields(ctx, map[string]any{
			"topic":      topic,
			"event_type": attrs["event_type"],
			"payload":    json.RawMessage(data),
		}), "event not published: pubsub disabled")
	}
	return "", nil
}
