package enums

import "fmt"

// TicketStatus tracks the lifecycle of a trade ticket.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusActive    TicketStatus = "active"
	TicketStatusCompleted TicketStatus = "completed"
	TicketStatusDeclined  TicketStatus = "declined"
	TicketStatusExpired   TicketStatus = "expired"
	TicketStatusCancelled TicketStatus = "cancelled"
)

var validTicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusActive,
	TicketStatusCompleted,
	TicketStatusDeclined,
	TicketStatusExpired,
	TicketStatusCancelled,
}

// NonTerminalTicketStatuses lists the statuses a ticket can still leave.
var NonTerminalTicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusActive,
}

// String implements fmt.Stringer.
func (s TicketStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TicketStatus.
func (s TicketStatus) IsValid() bool {
	for _, candidate := range validTicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s TicketStatus) IsTerminal() bool {
	switch s {
	case TicketStatusCompleted, TicketStatusDeclined, TicketStatusExpired, TicketStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(value string) (TicketStatus, error) {
	for _, candidate := range validTicketStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ticket status %q", value)
}
