package diagnostics

import (
	"errors"
	"fmt"
)

// InsufficientChainsError reports a fit with fewer than two chains.
// Between-chain comparison is impossible with a single chain.
type InsufficientChainsError struct {
	Chains int
}

// Error implements the error interface.
func (e *InsufficientChainsError) Error() string {
	return fmt.Sprintf("convergence diagnostics need at least 2 chains, got %d", e.Chains)
}

// IsInsufficientChains reports whether err is an InsufficientChainsError.
// Uses errors.As to handle wrapped errors.
func IsInsufficientChains(err error) bool {
	var ie *InsufficientChainsError
	return errors.As(err, &ie)
}
