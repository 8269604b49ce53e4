package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/abi"
	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/store"
)

// Session drives one guest instance against one document. Every guest entry
// is bracketed by a host frame, so values the guest allocates and does not
// attach are reclaimed when the call returns.
type Session struct {
	inst     Instance
	host     *abi.Host
	observer Observer
	logger   *zap.Logger
}

// NewSession binds inst to the document behind host
func NewSession(inst Instance, host *abi.Host) *Session {
	return &Session{inst: inst, host: host, logger: zap.NewNop()}
}

// WithLogger sets the logger used for trap reports
func (s *Session) WithLogger(l *zap.Logger) *Session {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithObserver reports every guest call to o
func (s *Session) WithObserver(o Observer) *Session {
	s.observer = o
	return s
}

// Engine returns the engine running the guest
func (s *Session) Engine() Engine {
	return s.inst.Engine()
}

// Document returns the bound document
func (s *Session) Document() *dom.Document {
	return s.host.Document()
}

// Main runs the guest entry point once
func (s *Session) Main(ctx context.Context) error {
	root, err := s.host.RootContainer()
	if err != nil {
		return err
	}
	return s.guard(ctx, "main", func(ctx context.Context) error {
		return s.inst.Main(ctx, root)
	})
}

// Recompute re-evaluates every dynamic binding whose captured value changed
// and returns how many properties were updated. Marks are taken before any
// guest call, so writes made during the pass stay pending for the next one.
// When a binding traps, the bindings not yet reached keep their marks.
func (s *Session) Recompute(ctx context.Context) (int, error) {
	doc := s.host.Document()
	pending := doc.DirtyBindings()
	doc.Store().ClearDirty()

	applied := 0
	for i, b := range pending {
		err := s.recompute(ctx, b)
		if errors.Is(err, ErrNoExport) {
			s.logger.Debug("Binding skipped", zap.String("node", b.Node.String()),
				zap.String("property", b.Property.String()), zap.Error(err))
			continue
		}
		if err != nil {
			for _, rest := range pending[i+1:] {
				doc.Store().MarkDirty(rest.Closure.Captured)
			}
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (s *Session) recompute(ctx context.Context, b dom.Binding) error {
	arg, err := abi.PointerHandle(b.Closure.Captured)
	if err != nil {
		return err
	}
	return s.guard(ctx, "recompute", func(ctx context.Context) error {
		var v dom.Value
		if b.Property == dom.BackgroundSolid {
			ref, err := s.inst.CallRef(ctx, b.Closure.TableIndex, arg)
			if err != nil {
				return err
			}
			p, err := ref.Pointer()
			if err != nil {
				return err
			}
			// read before the host frame closes and reclaims it
			if v, err = dom.ValueOf(s.host.Document().Store(), p); err != nil {
				return err
			}
		} else {
			n, err := s.inst.Call(ctx, b.Closure.TableIndex, arg)
			if err != nil {
				return err
			}
			v = dom.Number(float32(n))
		}
		return s.host.Document().ApplyBinding(b, v)
	})
}

// Dispatch runs the event handler registered for event on node
func (s *Session) Dispatch(ctx context.Context, node dom.NodeKey, event int32) error {
	h, ok := s.host.Document().Handler(node, event)
	if !ok {
		return fmt.Errorf("%w: node %s event %d", ErrNoHandler, node, event)
	}
	arg, err := abi.PointerHandle(h.Captured)
	if err != nil {
		return err
	}
	return s.guard(ctx, "event", func(ctx context.Context) error {
		_, err := s.inst.Call(ctx, h.TableIndex, arg)
		return err
	})
}

// Close releases the guest instance
func (s *Session) Close(ctx context.Context) error {
	return s.inst.Close(ctx)
}

// guard brackets fn with the host frame, applies the call timeout and
// classifies the outcome. Host invariant violations are re-raised.
func (s *Session) guard(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	start := time.Now()
	s.host.Enter()
	defer func() {
		s.host.Leave()
		if s.observer != nil {
			s.observer.GuestCall(s.inst.Engine(), op, time.Since(start), err)
		}
	}()

	err = fn(ctx)
	if err == nil {
		return nil
	}

	var inv *store.InvariantError
	if errors.As(err, &inv) {
		panic(inv)
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if !errors.Is(err, ErrNoExport) {
		s.logger.Warn("Guest call trapped", zap.String("engine", string(s.inst.Engine())),
			zap.String("op", op), zap.Error(err))
	}
	return err
}
