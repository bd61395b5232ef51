package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/tradevouch/api/middleware"
	"github.com/angelmondragon/tradevouch/api/responses"
	"github.com/angelmondragon/tradevouch/api/validators"
	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/pkg/logger"
)

type thresholdsRequest struct {
	New      *int `json:"new" validate:"required,gte=0"`
	Verified *int `json:"verified" validate:"required,gte=0"`
	Trusted  *int `json:"trusted" validate:"required,gte=0"`
}

// rolesRequest fields left out are unchanged; an empty string clears the tier's role.
type rolesRequest struct {
	New      *string `json:"new" validate:"omitempty,max=64"`
	Verified *string `json:"verified" validate:"omitempty,max=64"`
	Trusted  *string `json:"trusted" validate:"omitempty,max=64"`
}

type vouchChannelRequest struct {
	ChannelID *string `json:"channel_id" validate:"omitempty,max=64"`
}

// tradeTTLRequest with a null ttl_seconds restores the service default.
type tradeTTLRequest struct {
	TTLSeconds *int64 `json:"ttl_seconds" validate:"omitempty,gte=60,lte=2592000"`
}

func GetSettings(svc communities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		settings, err := svc.Get(ctx, middleware.CommunityIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

func UpdateThresholds(svc communities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req thresholdsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		settings, err := svc.UpdateThresholds(ctx, middleware.CommunityIDFromContext(ctx), tiers.Thresholds{
			New:      *req.New,
			Verified: *req.Verified,
			Trusted:  *req.Trusted,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

func UpdateRoles(svc communities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req rolesRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		settings, err := svc.UpdateRoles(ctx, middleware.CommunityIDFromContext(ctx), communities.RolesInput{
			New:      req.New,
			Verified: req.Verified,
			Trusted:  req.Trusted,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

func UpdateVouchChannel(svc communities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req vouchChannelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		settings, err := svc.UpdateVouchChannel(ctx, middleware.CommunityIDFromContext(ctx), req.ChannelID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}

func UpdateTradeTTL(svc communities.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req tradeTTLRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var ttl *time.Duration
		if req.TTLSeconds != nil {
			d := time.Duration(*req.TTLSeconds) * time.Second
			ttl = &d
		}
		settings, err := svc.UpdateTradeTTL(ctx, middleware.CommunityIDFromContext(ctx), ttl)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings)
	}
}
