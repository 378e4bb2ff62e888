package curve

import (
	"errors"
	"fmt"
)

// ErrInvalidCurveConstraint is returned when no curve of the requested type
// satisfies the given endpoints and direction locks.
var ErrInvalidCurveConstraint = errors.New("invalid curve constraint")

// Error describes an infeasible fit.
type Error struct {
	Type   Type
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s curve: %s: %s", e.Type, ErrInvalidCurveConstraint, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalidCurveConstraint }

func infeasible(t Type, format string, args ...any) error {
	return &Error{Type: t, Reason: fmt.Sprintf(format, args...)}
}
