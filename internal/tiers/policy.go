package tiers

import (
	"github.com/angelmondragon/tradevouch/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
)

// Thresholds are the minimum feedback counts for each tier.
type Thresholds struct {
	New      int `json:"new"`
	Verified int `json:"verified"`
	Trusted  int `json:"trusted"`
}

// DefaultThresholds mirrors the values communities start with.
var DefaultThresholds = Thresholds{New: 1, Verified: 5, Trusted: 15}

// Validate enforces 0 <= new <= verified <= trusted.
func (t Thresholds) Validate() error {
	if t.New < 0 || t.Verified < 0 || t.Trusted < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "thresholds cannot be negative")
	}
	if t.New > t.Verified || t.Verified > t.Trusted {
		return pkgerrors.New(pkgerrors.CodeValidation, "thresholds must satisfy new <= verified <= trusted").
			WithDetails(t)
	}
	return nil
}

// Classify returns the highest tier whose threshold count reaches, checking trusted first.
// Zero feedback is always unranked, even when the new threshold is 0.
func Classify(count int64, t Thresholds) enums.Tier {
	if count <= 0 {
		return enums.TierUnranked
	}
	switch {
	case count >= int64(t.Trusted):
		return enums.TierTrusted
	case count >= int64(t.Verified):
		return enums.TierVerified
	case count >= int64(t.New):
		return enums.TierNew
	default:
		return enums.TierUnranked
	}
}
