package sampler

import (
	"errors"
	"fmt"
)

// ErrIncomplete is the cause reported when a stored or passed-in fit is
// marked incomplete.
var ErrIncomplete = errors.New("sampling did not finish")

// SamplerFailureError reports a non-recoverable failure in one chain.
// It is surfaced to the caller and never retried: with a fixed seed a retry
// reproduces the same failure, and changing the seed is the caller's call.
type SamplerFailureError struct {
	// Chain identifies the originating chain.
	Chain int

	// Err is the backend's error.
	Err error
}

// Error implements the error interface.
func (e *SamplerFailureError) Error() string {
	return fmt.Sprintf("sampler failure in chain %d: %v", e.Chain, e.Err)
}

// Unwrap returns the backend's error.
func (e *SamplerFailureError) Unwrap() error { return e.Err }

// IsSamplerFailure reports whether err is a SamplerFailureError.
// Uses errors.As to handle wrapped errors.
func IsSamplerFailure(err error) bool {
	var se *SamplerFailureError
	return errors.As(err, &se)
}

// IncompleteFitError reports a fit stopped by cancellation.
type IncompleteFitError struct {
	FitID string

	// Draws counts the draws collected per chain before stopping.
	Draws []int

	Err error
}

// Error implements the error interface.
func (e *IncompleteFitError) Error() string {
	if e.FitID == "" {
		return fmt.Sprintf("incomplete fit: %v", e.Err)
	}
	return fmt.Sprintf("incomplete fit %s: %v (draws per chain %v)", e.FitID, e.Err, e.Draws)
}

// Unwrap returns the cancellation cause.
func (e *IncompleteFitError) Unwrap() error { return e.Err }

// IsIncompleteFit reports whether err is an IncompleteFitError.
// Uses errors.As to handle wrapped errors.
func IsIncompleteFit(err error) bool {
	var ie *IncompleteFitError
	return errors.As(err, &ie)
}
