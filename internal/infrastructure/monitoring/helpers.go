package monitoring

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/uihost/internal/abi"
	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/store"
)

// trapCause buckets a guest error into a low-cardinality label
func trapCause(err error) string {
	switch {
	case errors.Is(err, sandbox.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, store.ErrNotLive), errors.Is(err, dom.ErrNodeNotLive):
		return "stale_handle"
	case errors.Is(err, abi.ErrNullHandle), errors.Is(err, abi.ErrBadHandle):
		return "bad_handle"
	case errors.Is(err, store.ErrKindMismatch), errors.Is(err, store.ErrBadShape):
		return "kind_mismatch"
	case errors.Is(err, abi.ErrFrameUnderflow), errors.Is(err, store.ErrNoFrame):
		return "frame"
	case errors.Is(err, dom.ErrUnknownKind), errors.Is(err, dom.ErrCycle), errors.Is(err, dom.ErrRootNode):
		return "tree"
	case errors.Is(err, sandbox.ErrClosed):
		return "closed"
	default:
		return "other"
	}
}
