package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLive is returned for a handle whose slot was freed or never existed
	ErrNotLive = errors.New("handle not live")
	// ErrKindMismatch is returned when a handle is read as the wrong kind
	ErrKindMismatch = errors.New("pointer kind mismatch")
	// ErrNoFrame is returned when a frame operation needs a frame that is not open
	ErrNoFrame = errors.New("no open frame")
	// ErrBadShape is returned when a composite does not have the layout the caller asked for
	ErrBadShape = errors.New("composite shape mismatch")
)

// InvariantError reports a broken host invariant. It is raised with panic
// and never returned.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("store invariant violated in %s: %s", e.Op, e.Detail)
}

func invariant(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
}

func notLive(p Pointer) error {
	return fmt.Errorf("%w: %s", ErrNotLive, p)
}

func mismatch(p Pointer, want Kind) error {
	return fmt.Errorf("%w: %s read as %s", ErrKindMismatch, p, want)
}
