package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/abi"
	"github.com/GriffinCanCode/uihost/internal/shared/id"
	"github.com/GriffinCanCode/uihost/internal/shared/utils"
)

var errNoHost = errors.New("fastn import called outside a guest call")

type hostKey struct{}

func withHost(ctx context.Context, h *abi.Host) context.Context {
	return context.WithValue(ctx, hostKey{}, h)
}

func hostFrom(ctx context.Context) *abi.Host {
	h, _ := ctx.Value(hostKey{}).(*abi.Host)
	return h
}

// WasmEngine owns one wazero runtime shared by every WebAssembly guest. The
// fastn host module is instantiated once; each call carries its document's
// host through the context.
type WasmEngine struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	config  Config
	logger  *zap.Logger

	mu       sync.Mutex
	compiled map[string]wazero.CompiledModule
	hasher   *utils.Hasher
}

// NewWasmEngine creates the runtime and registers the fastn imports
func NewWasmEngine(ctx context.Context, config Config, logger *zap.Logger) (*WasmEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := wazero.NewCompilationCache()
	rc := wazero.NewRuntimeConfig().
		WithCompilationCache(cache).
		WithCloseOnContextDone(true)
	if config.MaxMemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MaxMemoryPages)
	}

	e := &WasmEngine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, rc),
		cache:    cache,
		config:   config,
		logger:   logger,
		compiled: make(map[string]wazero.CompiledModule),
		hasher:   utils.DefaultHasher(),
	}

	builder := e.runtime.NewHostModuleBuilder(abi.ModuleName)
	for _, imp := range abi.Imports {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(hostFunction(imp), valueTypes(imp.Params), valueTypes(imp.Results)).
			WithParameterNames(paramNames(imp)...).
			Export(imp.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		e.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate %s host module: %w", abi.ModuleName, err)
	}
	return e, nil
}

func hostFunction(imp abi.Import) api.GoModuleFunc {
	n := len(imp.Params)
	hasResult := len(imp.Results) > 0
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		h := hostFrom(ctx)
		if h == nil {
			panic(errNoHost)
		}
		v, err := imp.Fn(h, stack[:n])
		if err != nil {
			panic(fmt.Errorf("%s: %w", imp.Name, err))
		}
		if hasResult {
			stack[0] = v
		}
	}
}

func valueTypes(vs []abi.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(vs))
	for i, v := range vs {
		out[i] = api.ValueType(v)
	}
	return out
}

func paramNames(imp abi.Import) []string {
	names := make([]string, len(imp.Params))
	for i, v := range imp.Params {
		names[i] = fmt.Sprintf("%s%d", api.ValueTypeName(api.ValueType(v)), i)
	}
	return names
}

// Compile validates and compiles code, reusing earlier results for
// identical bytes. It returns the digest used as cache key.
func (e *WasmEngine) Compile(ctx context.Context, code []byte) (wazero.CompiledModule, string, error) {
	digest := e.hasher.Hash(code)

	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.compiled[digest]; ok {
		return m, digest, nil
	}
	m, err := e.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, digest, fmt.Errorf("failed to compile guest: %w", err)
	}
	e.compiled[digest] = m
	e.logger.Debug("Guest compiled", zap.String("digest", utils.ShortHash(digest)),
		zap.Int("imports", len(m.ImportedFunctions())))
	return m, digest, nil
}

// Load compiles code and instantiates it bound to host
func (e *WasmEngine) Load(ctx context.Context, code []byte, host *abi.Host) (Instance, error) {
	compiled, _, err := e.Compile(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, ok := compiled.ExportedFunctions()["main"]; !ok {
		return nil, fmt.Errorf("%w: main", ErrNoExport)
	}

	cfg := wazero.NewModuleConfig().WithName(id.NewGuestName()).WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(withHost(ctx, host), compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate guest: %w", err)
	}
	return &wasmInstance{
		mod:     mod,
		host:    host,
		config:  e.config,
		main:    mod.ExportedFunction("main"),
		call:    mod.ExportedFunction("call_by_index"),
		callRef: mod.ExportedFunction("call_by_index_ref"),
	}, nil
}

// Modules returns the number of distinct compiled guests
func (e *WasmEngine) Modules() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.compiled)
}

// Close tears down the runtime and every guest instantiated in it
func (e *WasmEngine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if cerr := e.cache.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

type wasmInstance struct {
	mod     api.Module
	host    *abi.Host
	config  Config

	main, call, callRef api.Function
}

func (w *wasmInstance) Engine() Engine {
	return EngineWasm
}

func (w *wasmInstance) invoke(ctx context.Context, fn api.Function, name string, params ...uint64) ([]uint64, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExport, name)
	}
	if w.mod.IsClosed() {
		return nil, ErrClosed
	}
	ctx = withHost(ctx, w.host)
	if w.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.CallTimeout)
		defer cancel()
	}
	return fn.Call(ctx, params...)
}

func (w *wasmInstance) Main(ctx context.Context, root abi.Handle) error {
	_, err := w.invoke(ctx, w.main, "main", api.EncodeExternref(uintptr(root)))
	return err
}

func (w *wasmInstance) Call(ctx context.Context, idx int32, arg abi.Handle) (int32, error) {
	out, err := w.invoke(ctx, w.call, "call_by_index", api.EncodeI32(idx), api.EncodeExternref(uintptr(arg)))
	if err != nil {
		return 0, err
	}
	return api.DecodeI32(out[0]), nil
}

func (w *wasmInstance) CallRef(ctx context.Context, idx int32, arg abi.Handle) (abi.Handle, error) {
	out, err := w.invoke(ctx, w.callRef, "call_by_index_ref", api.EncodeI32(idx), api.EncodeExternref(uintptr(arg)))
	if err != nil {
		return 0, err
	}
	return abi.Handle(api.DecodeExternref(out[0])), nil
}

func (w *wasmInstance) Close(ctx context.Context) error {
	return w.mod.Close(ctx)
}
