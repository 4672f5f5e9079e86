package stack

import (
	"errors"
	"fmt"
)

// Precondition failures. Every error returned by this package wraps one of
// these in a *PreconditionError.
var (
	ErrEmpty               = errors.New("stack is empty")
	ErrNilStack            = errors.New("stack is nil")
	ErrNilCollection       = errors.New("collection is nil")
	ErrNegativeCapacity    = errors.New("capacity is negative")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrDestinationTooSmall = errors.New("destination too small")
)

// PreconditionError reports a call that was rejected before it touched the
// stack. It indicates a programming error on the caller's side and is never
// worth retrying.
type PreconditionError struct {
	Op     string // operation that rejected the call, e.g. "Pop"
	Clause string // the requirement that did not hold, e.g. "Len() > 0"
	Err    error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("stack: %s requires %s: %v", e.Op, e.Clause, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

func violation(op, clause string, err error) error {
	return &PreconditionError{Op: op, Clause: clause, Err: err}
}
