// internal/hourglass/errors.go
package hourglass

import "errors"

var (
	// ErrInvalidDuration is returned when a countdown length is not positive.
	ErrInvalidDuration = errors.New("hourglass: invalid duration")
	// ErrInvalidState is returned when an operation is called in a state that does not allow it.
	ErrInvalidState = errors.New("hourglass: invalid state")
)
