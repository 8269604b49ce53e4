package abi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/shared/slot"
	"github.com/GriffinCanCode/uihost/internal/store"
)

func newHost() *Host {
	return NewHost(dom.New(store.New()))
}

func call(t *testing.T, h *Host, name string, args ...uint64) uint64 {
	t.Helper()
	imp, ok := Lookup(name)
	require.True(t, ok, name)
	require.Len(t, args, len(imp.Params), name)
	v, err := imp.Fn(h, args)
	require.NoError(t, err, name)
	return v
}

func TestHandleRoundTrip(t *testing.T) {
	k := slot.Key{Index: 7, Gen: 3}
	for _, kind := range store.Kinds {
		p := store.Pointer{Kind: kind, Key: k}
		h, err := PointerHandle(p)
		require.NoError(t, err)
		assert.False(t, h.IsNode())

		got, err := h.Pointer()
		require.NoError(t, err)
		assert.Equal(t, p, got)

		_, err = h.Node()
		assert.ErrorIs(t, err, ErrBadHandle)
	}

	h, err := NodeHandle(k)
	require.NoError(t, err)
	assert.True(t, h.IsNode())
	got, err := h.Node()
	require.NoError(t, err)
	assert.Equal(t, k, got)
	_, err = h.Pointer()
	assert.ErrorIs(t, err, ErrBadHandle)
}

func TestHandleRejects(t *testing.T) {
	_, err := Handle(0).Pointer()
	assert.ErrorIs(t, err, ErrNullHandle)
	_, err = Handle(0).Node()
	assert.ErrorIs(t, err, ErrNullHandle)

	unknownTag := Handle(1<<32 | 1<<8 | 0x42)
	_, err = unknownTag.Pointer()
	assert.ErrorIs(t, err, ErrBadHandle)

	zeroGen := Handle(1<<8 | 1)
	_, err = zeroGen.Pointer()
	assert.ErrorIs(t, err, ErrBadHandle)

	_, err = NodeHandle(slot.Key{Index: 1 << 24, Gen: 1})
	assert.ErrorIs(t, err, ErrHandleSpace)
}

func TestImportSignatures(t *testing.T) {
	seen := map[string]bool{}
	for _, imp := range Imports {
		assert.False(t, seen[imp.Name], "duplicate import %s", imp.Name)
		seen[imp.Name] = true
		assert.LessOrEqual(t, len(imp.Results), 1, imp.Name)
		assert.NotNil(t, imp.Fn, imp.Name)
	}
	for _, name := range []string{
		"create_boolean", "create_i32", "create_f32", "create_rgba",
		"create_list_1", "create_list_2", "create_or_type_0", "create_or_type_1",
		"create_frame", "end_frame", "return_frame",
		"get_boolean", "get_i32", "get_f32", "set_boolean", "set_i32", "set_f32",
		"get_func_arg_i32", "get_func_arg_f32", "get_func_arg_ref",
		"root_container", "create_kernel", "add_child", "destroy_kernel",
		"set_i32_prop", "set_f32_prop", "set_ref_prop",
		"set_dynamic_i32_prop", "set_dynamic_ref_prop", "attach_event_handler",
	} {
		assert.True(t, seen[name], name)
	}
}

func TestGuestBuildsDocument(t *testing.T) {
	h := newHost()
	s := h.Document().Store()

	h.Enter()
	root := call(t, h, "root_container")
	col := call(t, h, "create_kernel", root, uint64(dom.Column))
	call(t, h, "set_i32_prop", col, uint64(dom.WidthFixedPx), 200)
	call(t, h, "set_f32_prop", col, uint64(dom.HeightFixedPx), uint64(math.Float32bits(40.5)))

	color := call(t, h, "create_rgba", 10, 20, 30, uint64(math.Float32bits(1)))
	call(t, h, "set_ref_prop", col, uint64(dom.BackgroundSolid), color)

	counter := call(t, h, "create_i32", 5)
	captured := call(t, h, "create_list_1", counter)
	call(t, h, "set_dynamic_i32_prop", root, uint64(dom.SpacingFixedPx), 4, captured, 5)

	freed := h.Leave()
	assert.Equal(t, 5, freed, "color composite and its members")
	assert.Equal(t, 0, s.Depth())

	cp, err := Handle(captured).Pointer()
	require.NoError(t, err)
	assert.True(t, s.IsLive(cp))

	ck, err := Handle(col).Node()
	require.NoError(t, err)
	info, err := h.Document().Node(ck)
	require.NoError(t, err)
	require.NotNil(t, info.Style.Background)
	assert.Equal(t, store.RGBA{R: 10, G: 20, B: 30, A: 1}, *info.Style.Background)
	assert.Equal(t, float32(40.5), info.Style.Height.Value)

	bindings := h.Document().Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, int32(4), bindings[0].Closure.TableIndex)
}

func TestValueReadsAndWrites(t *testing.T) {
	h := newHost()
	h.Enter()
	defer h.Leave()

	b := call(t, h, "create_boolean", 7)
	assert.Equal(t, uint64(1), call(t, h, "get_boolean", b))
	call(t, h, "set_boolean", b, 0)
	assert.Equal(t, uint64(0), call(t, h, "get_boolean", b))

	neg := call(t, h, "create_i32", fromI32(-12))
	assert.Equal(t, int32(-12), i32(call(t, h, "get_i32", neg)))
	call(t, h, "set_i32", neg, 9)
	assert.Equal(t, int32(9), i32(call(t, h, "get_i32", neg)))

	f := call(t, h, "create_f32", fromF32(1.25))
	assert.Equal(t, float32(1.25), f32(call(t, h, "get_f32", f)))
	call(t, h, "set_f32", f, fromF32(2.5))

	args := call(t, h, "create_list_2", neg, f)
	assert.Equal(t, int32(9), i32(call(t, h, "get_func_arg_i32", args, 0)))
	assert.Equal(t, float32(2.5), f32(call(t, h, "get_func_arg_f32", args, 1)))
	assert.Equal(t, neg, call(t, h, "get_func_arg_ref", args, 0))

	_, err := h.GetI32(Handle(f))
	assert.ErrorIs(t, err, store.ErrKindMismatch)
	_, err = h.GetFuncArgI32(Handle(args), 5)
	assert.ErrorIs(t, err, store.ErrBadShape)

	u := call(t, h, "create_or_type_1", 3, f)
	up, _ := Handle(u).Pointer()
	disc, payload, err := h.Document().Store().Union(up)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), disc)
	require.Len(t, payload, 1)

	_, err = h.CreateOrType(300)
	assert.ErrorIs(t, err, ErrBadHandle)
}

func TestEndFrameCannotCloseHostFrame(t *testing.T) {
	h := newHost()
	s := h.Document().Store()

	h.Enter()
	call(t, h, "create_frame")
	call(t, h, "end_frame")
	assert.Equal(t, 1, s.Depth())

	assert.ErrorIs(t, h.EndFrame(), ErrFrameUnderflow)
	assert.Equal(t, 1, s.Depth())

	p := call(t, h, "create_i32", 1)
	_, err := h.ReturnFrame(Handle(p))
	assert.ErrorIs(t, err, ErrFrameUnderflow)

	h.Leave()
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, 0, h.Leave(), "leave without enter is a no-op")
}

func TestLeaveClosesGuestFrames(t *testing.T) {
	h := newHost()
	s := h.Document().Store()

	h.Enter()
	call(t, h, "create_frame")
	call(t, h, "create_i32", 1)
	call(t, h, "create_frame")
	kept := call(t, h, "create_i32", 2)
	call(t, h, "return_frame", kept)
	assert.Equal(t, 3, s.Depth())

	assert.Equal(t, 2, h.Leave())
	assert.Equal(t, 0, s.Depth())
	assert.True(t, s.IsEmpty())
}

func TestStaleHandlesFail(t *testing.T) {
	h := newHost()

	h.Enter()
	p := call(t, h, "create_i32", 1)
	root := call(t, h, "root_container")
	n := call(t, h, "create_kernel", root, uint64(dom.Text))
	h.Leave()

	h.Enter()
	defer h.Leave()

	_, err := h.GetI32(Handle(p))
	assert.ErrorIs(t, err, store.ErrNotLive)
	_, err = h.CreateList(Handle(p))
	assert.ErrorIs(t, err, store.ErrNotLive)

	require.NoError(t, h.DestroyKernel(Handle(n)))
	assert.ErrorIs(t, h.DestroyKernel(Handle(n)), dom.ErrNodeNotLive)
	_, err = h.CreateKernel(Handle(n), int32(dom.Column))
	assert.ErrorIs(t, err, dom.ErrNodeNotLive)
	_, err = h.CreateKernel(Handle(root), 99)
	assert.ErrorIs(t, err, dom.ErrUnknownKind)

	assert.ErrorIs(t, h.AddChild(Handle(root), 0), ErrNullHandle)
}

func TestEventHandlerRetainsCapture(t *testing.T) {
	h := newHost()
	s := h.Document().Store()

	h.Enter()
	root := call(t, h, "root_container")
	btn := call(t, h, "create_kernel", root, uint64(dom.Container))
	arg := call(t, h, "create_boolean", 0)
	call(t, h, "attach_event_handler", btn, 0, 11, arg)
	h.Leave()

	ap, _ := Handle(arg).Pointer()
	assert.True(t, s.IsLive(ap))

	h.Enter()
	call(t, h, "destroy_kernel", btn)
	h.Leave()
	assert.False(t, s.IsLive(ap))
}
