package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uihost/internal/abi"
	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/store"
)

const counterScript = `
const root = fastn.root_container();
const col = fastn.create_kernel(root, 0);
fastn.set_i32_prop(col, 7, 10);

const counter = fastn.create_i32(40);
const box = fastn.create_kernel(col, 4);
fastn.set_i32_prop(box, 1, 30);
fastn.set_ref_prop(box, 3, fastn.create_rgba(0, 0, 255, 1));

table[0] = (c) => fastn.get_i32(c) * 2;
table[1] = (c) => { fastn.set_i32(c, fastn.get_i32(c) + 10); return 0; };
table[2] = (c) => fastn.create_rgba(fastn.get_i32(c), 0, 0, 0.5);

fastn.set_dynamic_i32_prop(box, 0, 0, counter, 80);
fastn.attach_event_handler(box, 0, 1, counter);
fastn.set_dynamic_ref_prop(col, 3, 2, counter, fastn.create_rgba(40, 0, 0, 0.5));
console.log("built", 3);
`

func loadJS(t *testing.T, config Config, script string) (*Session, *JSRuntime) {
	t.Helper()
	rt, err := NewJSRuntime(config)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	host := abi.NewHost(dom.New(store.New()))
	return NewSession(rt.Load(script, host), host), rt
}

func TestJSCounterGuest(t *testing.T) {
	ctx := context.Background()
	s, rt := loadJS(t, DefaultConfig(), counterScript)
	doc := s.Document()

	require.NoError(t, s.Main(ctx))
	assert.Equal(t, EngineJS, s.Engine())

	cols := doc.Children(doc.Root())
	require.Len(t, cols, 1)
	boxes := doc.Children(cols[0])
	require.Len(t, boxes, 1)
	assert.Equal(t, 1, doc.Store().Stats().Total())

	console := rt.Console()
	require.Len(t, console, 1)
	assert.Equal(t, "log", console[0].Level)
	assert.Equal(t, "built 3", console[0].Message)

	require.NoError(t, s.Dispatch(ctx, boxes[0], 0))
	applied, err := s.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	info, err := doc.Node(boxes[0])
	require.NoError(t, err)
	assert.Equal(t, float32(100), info.Style.Width.Value)

	col, err := doc.Node(cols[0])
	require.NoError(t, err)
	require.NotNil(t, col.Style.Background)
	assert.Equal(t, store.RGBA{R: 50, A: 0.5}, *col.Style.Background)
	assert.Equal(t, 1, doc.Store().Stats().Total())
}

func TestJSGuestErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   error
	}{
		{"null handle", `fastn.get_i32(null)`, abi.ErrNullHandle},
		{"forged handle", `fastn.get_i32(42)`, abi.ErrBadHandle},
		{"node as value", `fastn.get_i32(fastn.root_container())`, abi.ErrBadHandle},
		{"unknown kind", `fastn.create_kernel(fastn.root_container(), 9)`, dom.ErrUnknownKind},
		{"frame underflow", `fastn.end_frame()`, abi.ErrFrameUnderflow},
		{"kind mismatch", `fastn.get_f32(fastn.create_i32(1))`, store.ErrKindMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := loadJS(t, DefaultConfig(), tt.script)
			err := s.Main(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, s.Document().Store().Depth())
			assert.True(t, s.Document().Store().IsEmpty())
		})
	}
}

func TestJSGuestCanCatchTraps(t *testing.T) {
	s, rt := loadJS(t, DefaultConfig(), `
		try { fastn.get_i32(null); } catch (e) { console.warn("caught"); }
		fastn.create_kernel(fastn.root_container(), 2);
	`)
	require.NoError(t, s.Main(context.Background()))
	assert.Len(t, s.Document().Children(s.Document().Root()), 1)
	require.Len(t, rt.Console(), 1)
	assert.Equal(t, "warn", rt.Console()[0].Level)
}

func TestJSGlobalsRemoved(t *testing.T) {
	s, _ := loadJS(t, DefaultConfig(), `
		if (typeof require !== "undefined" || typeof process !== "undefined") {
			throw new Error("host globals leaked");
		}
		setTimeout(() => { throw new Error("timer ran"); }, 0);
	`)
	assert.NoError(t, s.Main(context.Background()))
}

func TestJSTimeout(t *testing.T) {
	config := DefaultConfig()
	config.CallTimeout = 50 * time.Millisecond
	s, _ := loadJS(t, config, `while (true) {}`)

	start := time.Now()
	err := s.Main(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestJSMissingTableSlot(t *testing.T) {
	ctx := context.Background()
	s, _ := loadJS(t, DefaultConfig(), `
		const n = fastn.create_kernel(fastn.root_container(), 0);
		fastn.set_dynamic_i32_prop(n, 0, 5, fastn.create_i32(1), 1);
	`)
	require.NoError(t, s.Main(ctx))

	b := s.Document().Bindings()
	require.Len(t, b, 1)
	require.NoError(t, s.Document().Store().SetInteger(b[0].Closure.Captured, 2))
	applied, err := s.Recompute(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestPoolLifecycle(t *testing.T) {
	ctx := context.Background()
	config := DefaultConfig()
	config.JSPoolSize = 2
	pool, err := NewPool(config)
	require.NoError(t, err)

	assert.Equal(t, PoolStats{Size: 2, Available: 2}, pool.Stats())

	host := abi.NewHost(dom.New(store.New()))
	inst, err := pool.Load(ctx, `globalThis.leaked = 1; fastn.create_kernel(fastn.root_container(), 0);`, host)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Stats().InUse)

	s := NewSession(inst, host)
	require.NoError(t, s.Main(ctx))
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx), "second close is a no-op")
	assert.Equal(t, 2, pool.Stats().Available)

	// released runtimes come back clean
	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	for _, rt := range []*JSRuntime{a, b} {
		other := abi.NewHost(dom.New(store.New()))
		inst := rt.Load(`if (typeof leaked !== "undefined") throw new Error("state leaked");`, other)
		assert.NoError(t, NewSession(inst, other).Main(ctx))
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, pool.Release(a))
	require.NoError(t, pool.Release(b))
	require.NoError(t, pool.Close())
	assert.True(t, pool.Stats().Closed)

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)
}
