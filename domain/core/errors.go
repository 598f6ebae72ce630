package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Usage errors (caller's fault, no retry)
	ErrUsage              = errors.New("invalid usage")
	ErrContrastRequired   = fmt.Errorf("%w: contrast required for two-group comparison", ErrUsage)
	ErrModelGroupMismatch = fmt.Errorf("%w: zero-inflated log-normal model supports exactly two groups", ErrUsage)
	ErrUnknownRank        = fmt.Errorf("%w: unknown taxonomic rank", ErrUsage)
	ErrUnknownGroup       = fmt.Errorf("%w: group label not found", ErrUsage)
	ErrLabelCollision     = fmt.Errorf("%w: distinct group labels collide after sanitization", ErrUsage)
	ErrInvalidEnum        = fmt.Errorf("%w: invalid option value", ErrUsage)

	// Fit errors (delegated numerical service's fault)
	ErrFitFailed    = errors.New("model fit failed")
	ErrSingularFit  = fmt.Errorf("%w: singular design matrix", ErrFitFailed)
	ErrNoConverge   = fmt.Errorf("%w: did not converge", ErrFitFailed)
	ErrNoUsableData = fmt.Errorf("%w: no usable observations", ErrFitFailed)

	// Data errors
	ErrEmptyProfile     = errors.New("abundance profile is empty")
	ErrRaggedMatrix     = errors.New("abundance matrix is not rectangular")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrResultNotFound = fmt.Errorf("%w: analysis result", ErrNotFound)
)

// Error constructors with context

// NewUsageError wraps a usage sentinel with call-site context.
func NewUsageError(sentinel error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// NewFitError carries the delegated fitter's diagnostic plus a remediation
// hint. Fit failures abort the invocation; they never flow downstream as an
// undefined result.
func NewFitError(model string, cause error) error {
	return fmt.Errorf("%w: %s: %v (try the alternate model variant or filter low-prevalence features)",
		ErrFitFailed, model, cause)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: validation failed for %s: %s", ErrUsage, field, reason)
}

// Error checking helpers

func IsUsageError(err error) bool {
	return errors.Is(err, ErrUsage)
}

func IsFitError(err error) bool {
	return errors.Is(err, ErrFitFailed)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
