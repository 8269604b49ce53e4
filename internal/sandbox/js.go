package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/uihost/internal/abi"
)

// jsRef wraps a handle so scripts can pass it around but not forge one
type jsRef struct {
	h abi.Handle
}

// JSRuntime wraps a goja VM with the fastn object installed. It serves one
// document at a time; the pool hands it out and resets it on release.
type JSRuntime struct {
	vm     *goja.Runtime
	config Config
	host   *abi.Host
	mu     sync.Mutex

	console   []LogEntry
	consoleMu sync.Mutex
}

// NewJSRuntime creates a runtime with guest globals removed
func NewJSRuntime(config Config) (*JSRuntime, error) {
	r := &JSRuntime{config: config}
	if err := r.setup(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *JSRuntime) setup() error {
	r.vm = goja.New()
	r.vm.SetMaxCallStackSize(1024)
	r.console = nil

	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	// Timers would outlive the call that armed them
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	r.vm.Set("setTimeout", noop)
	r.vm.Set("setInterval", noop)

	fastn := r.vm.NewObject()
	for _, imp := range abi.Imports {
		if err := fastn.Set(imp.Name, r.makeImport(imp)); err != nil {
			return err
		}
	}
	if err := r.vm.Set(abi.ModuleName, fastn); err != nil {
		return err
	}
	return r.vm.Set("table", r.vm.NewArray())
}

func (r *JSRuntime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

func (r *JSRuntime) makeImport(imp abi.Import) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if r.host == nil {
			panic(r.vm.NewGoError(errNoHost))
		}
		args := make([]uint64, len(imp.Params))
		for i, t := range imp.Params {
			v, err := r.fromJS(call.Argument(i), t)
			if err != nil {
				panic(r.vm.NewGoError(fmt.Errorf("%s: %w", imp.Name, err)))
			}
			args[i] = v
		}
		v, err := imp.Fn(r.host, args)
		if err != nil {
			panic(r.vm.NewGoError(fmt.Errorf("%s: %w", imp.Name, err)))
		}
		if len(imp.Results) == 0 {
			return goja.Undefined()
		}
		return r.toJS(v, imp.Results[0])
	}
}

func (r *JSRuntime) fromJS(v goja.Value, t abi.ValueType) (uint64, error) {
	switch t {
	case abi.I32:
		return uint64(uint32(int32(v.ToInteger()))), nil
	case abi.F32:
		return uint64(math.Float32bits(float32(v.ToFloat()))), nil
	default:
		if goja.IsUndefined(v) || goja.IsNull(v) {
			return 0, nil
		}
		ref, ok := v.Export().(jsRef)
		if !ok {
			return 0, fmt.Errorf("%w: %s is not a handle", abi.ErrBadHandle, v.String())
		}
		return uint64(ref.h), nil
	}
}

func (r *JSRuntime) toJS(v uint64, t abi.ValueType) goja.Value {
	switch t {
	case abi.I32:
		return r.vm.ToValue(int32(uint32(v)))
	case abi.F32:
		return r.vm.ToValue(float64(math.Float32frombits(uint32(v))))
	default:
		return r.vm.ToValue(jsRef{h: abi.Handle(v)})
	}
}

// Bind attaches the runtime to a document's host functions
func (r *JSRuntime) Bind(host *abi.Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = host
}

// Console returns the output collected since the last reset
func (r *JSRuntime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry(nil), r.console...)
}

// run executes fn with the interrupt timer armed
func (r *JSRuntime) run(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	vm := r.vm
	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		wg.Wait()
		vm.ClearInterrupt()
	}()

	var timeout <-chan time.Time
	if r.config.CallTimeout > 0 {
		timer := time.NewTimer(r.config.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-timeout:
			vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := fn()
	return val, unwrapJSError(err)
}

func unwrapJSError(err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			if errors.Is(cause, ErrTimeout) {
				return ErrTimeout
			}
			return cause
		}
		return ErrTimeout
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if inner := exc.Unwrap(); inner != nil {
			return inner
		}
		return fmt.Errorf("guest threw: %s", exc.Value().String())
	}
	return err
}

// Load runs script top-level with host bound and returns an instance. The
// script is the guest's main; it reads fastn.root_container() itself.
func (r *JSRuntime) Load(script string, host *abi.Host) Instance {
	r.Bind(host)
	return &jsInstance{rt: r, script: script}
}

// Reset discards all guest state
func (r *JSRuntime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = nil
	return r.setup()
}

// Close releases resources
func (r *JSRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.host = nil
	r.console = nil
	return nil
}

type jsInstance struct {
	rt      *JSRuntime
	script  string
	release func(*JSRuntime)
	closed  bool
}

func (j *jsInstance) Engine() Engine {
	return EngineJS
}

func (j *jsInstance) Main(ctx context.Context, _ abi.Handle) error {
	_, err := j.rt.run(ctx, func() (goja.Value, error) {
		return j.rt.vm.RunString(j.script)
	})
	return err
}

func (j *jsInstance) slot(idx int32) (goja.Callable, error) {
	table := j.rt.vm.Get("table")
	if table == nil || goja.IsUndefined(table) || goja.IsNull(table) {
		return nil, fmt.Errorf("%w: table", ErrNoExport)
	}
	fn, ok := goja.AssertFunction(table.ToObject(j.rt.vm).Get(fmt.Sprint(idx)))
	if !ok {
		return nil, fmt.Errorf("%w: table[%d]", ErrNoExport, idx)
	}
	return fn, nil
}

func (j *jsInstance) invoke(ctx context.Context, idx int32, arg abi.Handle) (goja.Value, error) {
	return j.rt.run(ctx, func() (goja.Value, error) {
		fn, err := j.slot(idx)
		if err != nil {
			return nil, err
		}
		return fn(goja.Undefined(), j.rt.vm.ToValue(jsRef{h: arg}))
	})
}

func (j *jsInstance) Call(ctx context.Context, idx int32, arg abi.Handle) (int32, error) {
	v, err := j.invoke(ctx, idx, arg)
	if err != nil {
		return 0, err
	}
	if v == nil || goja.IsUndefined(v) {
		return 0, nil
	}
	return int32(v.ToInteger()), nil
}

func (j *jsInstance) CallRef(ctx context.Context, idx int32, arg abi.Handle) (abi.Handle, error) {
	v, err := j.invoke(ctx, idx, arg)
	if err != nil {
		return 0, err
	}
	h, err := j.rt.fromJS(v, abi.Ref)
	return abi.Handle(h), err
}

func (j *jsInstance) Close(context.Context) error {
	if j.closed {
		return nil
	}
	j.closed = true
	if j.release != nil {
		j.release(j.rt)
		return nil
	}
	return j.rt.Close()
}
