package series

import (
	"errors"
	"fmt"
)

// InvalidLengthError reports a data/shape mismatch: a missing index outside
// 0..T-1, a mask whose length differs from the values, or a block that
// overruns the series.
type InvalidLengthError struct {
	// Length is the series length T.
	Length int

	// Index is the offending index, or the offending length for mask errors.
	Index int

	Message string
}

// Error implements the error interface.
func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length: %s (index=%d, length=%d)", e.Message, e.Index, e.Length)
}

// IsInvalidLength reports whether err is an InvalidLengthError.
// Uses errors.As to handle wrapped errors.
func IsInvalidLength(err error) bool {
	var le *InvalidLengthError
	return errors.As(err, &le)
}

// NonFiniteValueError reports a NaN or infinite value at a present position.
// Absence must be declared through the missing set, never through the value.
type NonFiniteValueError struct {
	Index int
	Value float64
}

// Error implements the error interface.
func (e *NonFiniteValueError) Error() string {
	return fmt.Sprintf("non-finite value %v at index %d: declare it missing explicitly", e.Value, e.Index)
}
