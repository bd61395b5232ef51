package enums

import "fmt"

// Tier is the reputation band derived from a member's feedback count.
type Tier string

const (
	TierUnranked Tier = "unranked"
	TierNew      Tier = "new"
	TierVerified Tier = "verified"
	TierTrusted  Tier = "trusted"
)

var validTiers = []Tier{
	TierUnranked,
	TierNew,
	TierVerified,
	TierTrusted,
}

// RoleTiers are the tiers that map to a community role.
var RoleTiers = []Tier{
	TierNew,
	TierVerified,
	TierTrusted,
}

var tierDisplayNames = map[Tier]string{
	TierUnranked: "Unranked",
	TierNew:      "New Trader",
	TierVerified: "Verified Trader",
	TierTrusted:  "Trusted Trader",
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	return string(t)
}

// DisplayName is the label shown to community members.
func (t Tier) DisplayName() string {
	if name, ok := tierDisplayNames[t]; ok {
		return name
	}
	return tierDisplayNames[TierUnranked]
}

// IsValid reports whether the value is a known Tier.
func (t Tier) IsValid() bool {
	for _, candidate := range validTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTier converts raw input into a Tier.
func ParseTier(value string) (Tier, error) {
	for _, candidate := range validTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tier %q", value)
}
