package tiers

import (
	"context"
	"fmt"

	"github.com/angelmondragon/tradevouch/pkg/enums"
	"github.com/angelmondragon/tradevouch/pkg/logger"
	"go.uber.org/multierr"
)

// RoleGateway grants and revokes community roles on the chat platform.
type RoleGateway interface {
	MemberRoles(ctx context.Context, communityID, memberID string) ([]string, error)
	AddRole(ctx context.Context, communityID, memberID, roleID string) error
	RemoveRole(ctx context.Context, communityID, memberID, roleID string) error
}

// RoleMap holds the configured role id per tier. Tiers without a role are absent.
type RoleMap map[enums.Tier]string

// Result lists the role changes one reconcile applied.
type Result struct {
	Tier    enums.Tier `json:"tier"`
	Added   []string   `json:"added,omitempty"`
	Removed []string   `json:"removed,omitempty"`
}

// Reconciler converges a member's tier roles onto exactly the one for their tier.
type Reconciler struct {
	gateway RoleGateway
	logg    *logger.Logger
}

func NewReconciler(gateway RoleGateway, logg *logger.Logger) (*Reconciler, error) {
	if gateway == nil {
		return nil, fmt.Errorf("role gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{gateway: gateway, logg: logg}, nil
}

// Reconcile reads the member's current roles, removes every configured tier role other than
// the target, then grants the target role if it is configured and missing. Calling it again
// with the same inputs changes nothing.
func (r *Reconciler) Reconcile(ctx context.Context, communityID, memberID string, tier enums.Tier, roles RoleMap) (*Result, error) {
	result := &Result{Tier: tier}
	if len(roles) == 0 {
		return result, nil
	}

	current, err := r.gateway.MemberRoles(ctx, communityID, memberID)
	if err != nil {
		return result, fmt.Errorf("read member roles: %w", err)
	}
	held := make(map[string]bool, len(current))
	for _, id := range current {
		held[id] = true
	}

	want := roles[tier]
	ctx = r.logg.WithFields(ctx, map[string]any{"community_id": communityID, "member_id": memberID, "tier": tier})

	var errs error
	for _, t := range enums.RoleTiers {
		roleID := roles[t]
		if roleID == "" || roleID == want || !held[roleID] {
			continue
		}
		if err := r.gateway.RemoveRole(ctx, communityID, memberID, roleID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove %s role %s: %w", t, roleID, err))
			continue
		}
		result.Removed = append(result.Removed, roleID)
	}

	if want != "" && !held[want] {
		if err := r.gateway.AddRole(ctx, communityID, memberID, want); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("add %s role %s: %w", tier, want, err))
		} else {
			result.Added = append(result.Added, want)
		}
	}

	if len(result.Added) > 0 || len(result.Removed) > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{"added": result.Added, "removed": result.Removed}), "tier roles reconciled")
	}
	return result, errs
}
