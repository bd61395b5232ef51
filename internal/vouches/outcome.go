package vouches

import pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"

const (
	outcomeRecorded = "recorded"
	outcomeError    = "error"
)

// outcomeOf labels a failed feedback attempt for metrics.
func outcomeOf(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return outcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeAlreadyRated:
		return "already_rated"
	case pkgerrors.CodeInvalidState:
		return "invalid_state"
	case pkgerrors.CodeForbidden:
		return "forbidden"
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeNotFound, pkgerrors.CodeWrongCommunity:
		return "not_found"
	default:
		return outcomeError
	}
}
