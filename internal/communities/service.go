package communities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/tradevouch/internal/tiers"
	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
	"gorm.io/gorm"
)

// Settings is the resolved view of a community's configuration.
type Settings struct {
	CommunityID    string           `json:"community_id"`
	Thresholds     tiers.Thresholds `json:"thresholds"`
	Roles          tiers.RoleMap    `json:"roles"`
	VouchChannelID *string          `json:"vouch_channel_id,omitempty"`
	TradeTTL       time.Duration    `json:"-"`
	TradeTTLSecs   int64            `json:"trade_ttl_seconds"`
	TTLOverridden  bool             `json:"trade_ttl_overridden"`
}

// RolesInput sets or clears (empty string) the role id for each tier. Nil leaves a tier as is.
type RolesInput struct {
	New      *string
	Verified *string
	Trusted  *string
}

// Service reads and updates per-community settings, creating defaults on first use.
type Service interface {
	Get(ctx context.Context, communityID string) (*Settings, error)
	TradeTTL(ctx context.Context, communityID string) (time.Duration, error)
	MinTradeTTL(ctx context.Context) (time.Duration, error)
	UpdateThresholds(ctx context.Context, communityID string, thresholds tiers.Thresholds) (*Settings, error)
	UpdateRoles(ctx context.Context, communityID string, input RolesInput) (*Settings, error)
	UpdateVouchChannel(ctx context.Context, communityID string, channelID *string) (*Settings, error)
	UpdateTradeTTL(ctx context.Context, communityID string, ttl *time.Duration) (*Settings, error)
}

type service struct {
	repo       Repository
	thresholds tiers.Thresholds
	defaultTTL time.Duration
}

// NewService builds the settings service. thresholds and defaultTTL apply to communities
// that have not configured their own.
func NewService(repo Repository, thresholds tiers.Thresholds, defaultTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("communities repository required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("default thresholds: %w", err)
	}
	if defaultTTL <= 0 {
		return nil, fmt.Errorf("default trade ttl must be positive")
	}
	return &service{repo: repo, thresholds: thresholds, defaultTTL: defaultTTL}, nil
}

func (s *service) Get(ctx context.Context, communityID string) (*Settings, error) {
	row, err := s.load(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return s.resolve(row), nil
}

func (s *service) TradeTTL(ctx context.Context, communityID string) (time.Duration, error) {
	settings, err := s.Get(ctx, communityID)
	if err != nil {
		return 0, err
	}
	return settings.TradeTTL, nil
}

// MinTradeTTL is the shortest TTL any community can apply, bounding the sweeper's candidate query.
func (s *service) MinTradeTTL(ctx context.Context) (time.Duration, error) {
	secs, err := s.repo.MinTradeTTLSeconds(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load minimum trade ttl")
	}
	if secs == nil {
		return s.defaultTTL, nil
	}
	override := time.Duration(*secs) * time.Second
	if override < s.defaultTTL {
		return override, nil
	}
	return s.defaultTTL, nil
}

func (s *service) UpdateThresholds(ctx context.Context, communityID string, thresholds tiers.Thresholds) (*Settings, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return s.update(ctx, communityID, map[string]any{
		"new_threshold":      thresholds.New,
		"verified_threshold": thresholds.Verified,
		"trusted_threshold":  thresholds.Trusted,
	})
}

func (s *service) UpdateRoles(ctx context.Context, communityID string, input RolesInput) (*Settings, error) {
	updates := map[string]any{}
	for column, value := range map[string]*string{
		"role_new_id":      input.New,
		"role_verified_id": input.Verified,
		"role_trusted_id":  input.Trusted,
	} {
		if value != nil {
			updates[column] = nullable(*value)
		}
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one role must be provided")
	}
	return s.update(ctx, communityID, updates)
}

func (s *service) UpdateVouchChannel(ctx context.Context, communityID string, channelID *string) (*Settings, error) {
	var value any
	if channelID != nil {
		value = nullable(*channelID)
	}
	return s.update(ctx, communityID, map[string]any{"vouch_channel_id": value})
}

// UpdateTradeTTL sets the community override; nil restores the service default.
func (s *service) UpdateTradeTTL(ctx context.Context, communityID string, ttl *time.Duration) (*Settings, error) {
	var value any
	if ttl != nil {
		if *ttl < time.Minute {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "trade ttl must be at least one minute")
		}
		value = int64(ttl.Seconds())
	}
	return s.update(ctx, communityID, map[string]any{"trade_ttl_seconds": value})
}

func (s *service) update(ctx context.Context, communityID string, updates map[string]any) (*Settings, error) {
	if _, err := s.load(ctx, communityID); err != nil {
		return nil, err
	}
	if _, err := s.repo.Update(ctx, communityID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update community settings")
	}
	return s.Get(ctx, communityID)
}

// load returns the settings row, inserting defaults first when the community is new.
func (s *service) load(ctx context.Context, communityID string) (*models.CommunitySettings, error) {
	communityID = strings.TrimSpace(communityID)
	if communityID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "community id required")
	}

	row, err := s.repo.Find(ctx, communityID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load community settings")
	}

	defaults := &models.CommunitySettings{
		CommunityID:       communityID,
		NewThreshold:      s.thresholds.New,
		VerifiedThreshold: s.thresholds.Verified,
		TrustedThreshold:  s.thresholds.Trusted,
	}
	if err := s.repo.EnsureDefaults(ctx, defaults); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create community settings")
	}
	row, err = s.repo.Find(ctx, communityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load community settings")
	}
	return row, nil
}

func (s *service) resolve(row *models.CommunitySettings) *Settings {
	out := &Settings{
		CommunityID: row.CommunityID,
		Thresholds: tiers.Thresholds{
			New:      row.NewThreshold,
			Verified: row.VerifiedThreshold,
			Trusted:  row.TrustedThreshold,
		},
		Roles:          tiers.RoleMap{},
		VouchChannelID: row.VouchChannelID,
		TradeTTL:       s.defaultTTL,
	}
	for tier, id := range map[enums.Tier]*string{
		enums.TierNew:      row.RoleNewID,
		enums.TierVerified: row.RoleVerifiedID,
		enums.TierTrusted:  row.RoleTrustedID,
	} {
		if id != nil && *id != "" {
			out.Roles[tier] = *id
		}
	}
	if row.TradeTTLSeconds != nil && *row.TradeTTLSeconds > 0 {
		out.TradeTTL = time.Duration(*row.TradeTTLSeconds) * time.Second
		out.TTLOverridden = true
	}
	out.TradeTTLSecs = int64(out.TradeTTL.Seconds())
	return out
}

func nullable(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}
