package model

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports a series too short for the lag order: fewer
// than P+1 observations cannot form a single lagged row.
type InsufficientDataError struct {
	Lags   int
	Length int
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	if e.Lags < 1 {
		return fmt.Sprintf("insufficient data: lag order must be at least 1, got %d", e.Lags)
	}
	return fmt.Sprintf("insufficient data: AR(%d) needs at least %d observations, got %d", e.Lags, e.Lags+1, e.Length)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
// Uses errors.As to handle wrapped errors.
func IsInsufficientData(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}
