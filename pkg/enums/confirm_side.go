package enums

import "fmt"

// ConfirmSide identifies which participant is confirming a trade.
type ConfirmSide string

const (
	ConfirmSideOpener  ConfirmSide = "opener"
	ConfirmSidePartner ConfirmSide = "partner"
)

// String implements fmt.Stringer.
func (s ConfirmSide) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ConfirmSide.
func (s ConfirmSide) IsValid() bool {
	return s == ConfirmSideOpener || s == ConfirmSidePartner
}

// ParseConfirmSide converts raw input into a ConfirmSide.
func ParseConfirmSide(value string) (ConfirmSide, error) {
	side := ConfirmSide(value)
	if !side.IsValid() {
		return "", fmt.Errorf("invalid confirm side %q", value)
	}
	return side, nil
}
