package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/tradevouch/api/middleware"
	"github.com/angelmondragon/tradevouch/api/responses"
	"github.com/angelmondragon/tradevouch/api/validators"
	"github.com/angelmondragon/tradevouch/internal/trades"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

// Ticket actions reported to the renderer.
const (
	ActionCreate     = "create"
	ActionAccept     = "accept"
	ActionDecline    = "decline"
	ActionConfirm    = "confirm"
	ActionForceClose = "force_close"
)

const maxExternalRef = 512

// TicketNotifier tells the renderer a ticket changed.
type TicketNotifier interface {
	TicketChanged(ctx context.Context, action, actorID string, ticket *models.TradeTicket) error
}

type createTradeRequest struct {
	PartnerID string `json:"partner_id" validate:"required,memberid"`
}

type confirmTradeRequest struct {
	Side string `json:"side" validate:"required,oneof=opener partner"`
}

type externalRefRequest struct {
	Ref string `json:"ref" validate:"required,max=512"`
}

// CreateTrade opens a pending ticket between the caller and partner_id.
func CreateTrade(svc trades.Service, notifier TicketNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createTradeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ticket, err := svc.Create(ctx, trades.CreateInput{
			CommunityID: middleware.CommunityIDFromContext(ctx),
			OpenerID:    middleware.ActorIDFromContext(ctx),
			PartnerID:   req.PartnerID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		notifyTicket(ctx, notifier, logg, ActionCreate, ticket)
		responses.WriteSuccessStatus(w, http.StatusCreated, trades.NewTicketView(ticket))
	}
}

func GetTrade(svc trades.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ticketID, err := validators.PathID(r, "ticketId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ticket, err := svc.Get(ctx, middleware.CommunityIDFromContext(ctx), ticketID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, trades.NewTicketView(ticket))
	}
}

func AcceptTrade(svc trades.Service, notifier TicketNotifier, logg *logger.Logger) http.HandlerFunc {
	return ticketAction(ActionAccept, svc.Accept, notifier, logg)
}

func DeclineTrade(svc trades.Service, notifier TicketNotifier, logg *logger.Logger) http.HandlerFunc {
	return ticketAction(ActionDecline, svc.Decline, notifier, logg)
}

// ForceCloseTrade lets staff close a pending or active ticket.
func ForceCloseTrade(svc trades.Service, notifier TicketNotifier, logg *logger.Logger) http.HandlerFunc {
	return ticketAction(ActionForceClose, svc.ForceClose, notifier, logg)
}

func ConfirmTrade(svc trades.Service, notifier TicketNotifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ticketID, err := validators.PathID(r, "ticketId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req confirmTradeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		side, err := enums.ParseConfirmSide(req.Side)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid side"))
			return
		}

		ticket, err := svc.Confirm(ctx, trades.ConfirmInput{
			CommunityID: middleware.CommunityIDFromContext(ctx),
			TicketID:    ticketID,
			ActorID:     middleware.ActorIDFromContext(ctx),
			Side:        side,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		notifyTicket(ctx, notifier, logg, ActionConfirm, ticket)
		responses.WriteSuccess(w, trades.NewTicketView(ticket))
	}
}

// AttachExternalRef is called by the renderer once the ticket message is posted, so it
// does not notify.
func AttachExternalRef(svc trades.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ticketID, err := validators.PathID(r, "ticketId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req externalRefRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ticket, err := svc.AttachExternalRef(ctx, trades.ExternalRefInput{
			CommunityID: middleware.CommunityIDFromContext(ctx),
			TicketID:    ticketID,
			Ref:         validators.SanitizeString(req.Ref, maxExternalRef),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, trades.NewTicketView(ticket))
	}
}

func ticketAction(
	action string,
	apply func(context.Context, trades.ActionInput) (*models.TradeTicket, error),
	notifier TicketNotifier,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ticketID, err := validators.PathID(r, "ticketId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ticket, err := apply(ctx, trades.ActionInput{
			CommunityID: middleware.CommunityIDFromContext(ctx),
			TicketID:    ticketID,
			ActorID:     middleware.ActorIDFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		notifyTicket(ctx, notifier, logg, action, ticket)
		responses.WriteSuccess(w, trades.NewTicketView(ticket))
	}
}

// notifyTicket never fails the request; the ticket is already committed.
func notifyTicket(ctx context.Context, notifier TicketNotifier, logg *logger.Logger, action string, ticket *models.TradeTicket) {
	if notifier == nil || ticket == nil {
		return
	}
	if err := notifier.TicketChanged(ctx, action, middleware.ActorIDFromContext(ctx), ticket); err != nil && logg != nil {
		logg.Error(logg.WithFields(ctx, map[string]any{
			"ticket_id": ticket.ID,
			"action":    action,
		}), "ticket notification failed", err)
	}
}
