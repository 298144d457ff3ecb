package router

import (
	"errors"

	"govnet/internal/governance/models"
	dErrors "govnet/pkg/domain-errors"
)

// translate attaches a domain-error code to a governance error. The
// original error stays reachable through errors.Is.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, codeFor(err), msg)
}

func codeFor(err error) dErrors.Code {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		return dErrors.CodeForbidden
	case errors.Is(err, models.ErrUnknownPeer):
		return dErrors.CodeNotFound
	case errors.Is(err, models.ErrInvalidAddress),
		errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrMisrouted):
		return dErrors.CodeValidation
	case errors.Is(err, models.ErrCallFailed):
		return dErrors.CodeBadRequest
	case errors.Is(err, models.ErrNotInitialized),
		errors.Is(err, models.ErrTimelockNotElapsed),
		errors.Is(err, models.ErrRecoveryNotPending),
		errors.Is(err, models.ErrRecoveryAlreadyPending),
		errors.Is(err, models.ErrRecoveryActive),
		errors.Is(err, models.ErrRecoveryConsumed),
		errors.Is(err, models.ErrStaleGovernorMessage):
		return dErrors.CodeInvalidState
	default:
		return dErrors.CodeInternal
	}
}

// result labels an operation outcome for metrics.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		return "denied"
	case dErrors.HasCode(err, dErrors.CodeInternal), dErrors.HasCode(err, dErrors.CodeUnavailable):
		return "error"
	default:
		return "rejected"
	}
}

// translateUnavailable marks transport failures as retryable by the caller.
func translateUnavailable(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}
