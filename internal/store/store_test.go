package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/uihost/internal/shared/slot"
)

var (
	nodeA = slot.Key{Index: 1, Gen: 1}
	nodeB = slot.Key{Index: 2, Gen: 1}
)

func TestCreateGetAndSet(t *testing.T) {
	s := New()
	s.OpenFrame()

	b := s.CreateBoolean(true)
	got, err := s.Boolean(b)
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, s.SetBoolean(b, false))
	got, err = s.Boolean(b)
	require.NoError(t, err)
	assert.False(t, got)

	i := s.CreateInteger(-7)
	n, err := s.Integer(i)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), n)

	d := s.CreateDecimal(0.5)
	f, err := s.Decimal(d)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), f)

	s.CloseFrame()
	assert.True(t, s.IsEmpty())
}

func TestKindMismatch(t *testing.T) {
	s := New()
	s.OpenFrame()
	defer s.CloseFrame()

	i := s.CreateInteger(1)
	_, err := s.Boolean(i)
	assert.ErrorIs(t, err, ErrKindMismatch)

	forged := Pointer{Kind: Boolean, Key: i.Key}
	_, err = s.Boolean(forged)
	assert.ErrorIs(t, err, ErrNotLive, "a key from another table must not resolve")
}

func TestUnattachedPointerFreedAtFrameClose(t *testing.T) {
	s := New()
	s.OpenFrame()
	j := s.CreateInteger(100)
	freed := s.CloseFrame()

	assert.Equal(t, 1, freed)
	_, err := s.Integer(j)
	assert.ErrorIs(t, err, ErrNotLive)
}

func TestAttachedPointerOutlivesFrame(t *testing.T) {
	s := New()
	s.OpenFrame()
	i := s.CreateInteger(200)
	require.NoError(t, s.Attach(nodeA, i))
	s.CloseFrame()

	v, err := s.Integer(i)
	require.NoError(t, err)
	assert.Equal(t, int32(200), v)

	s.DetachAll(nodeA)
	_, err = s.Integer(i)
	assert.ErrorIs(t, err, ErrNotLive)
	assert.True(t, s.IsEmpty())
}

func TestCompositeAttachAndDetach(t *testing.T) {
	s := New()
	s.OpenFrame()
	i := s.CreateInteger(1)
	c, err := s.CreateComposite(i)
	require.NoError(t, err)
	require.NoError(t, s.Attach(nodeA, c))
	s.CloseFrame()

	assert.True(t, s.IsLive(c))
	assert.True(t, s.IsLive(i))
	assert.ElementsMatch(t, []SDep{{Node: nodeA, Source: c}}, s.Attachments(i))

	freed := s.DetachAll(nodeA)
	assert.Equal(t, 2, freed)
	assert.False(t, s.IsLive(c))
	assert.False(t, s.IsLive(i))
	assert.True(t, s.IsEmpty())
}

func TestNestedFramesLIFO(t *testing.T) {
	s := New()
	s.OpenFrame()
	outer := s.CreateBoolean(true)

	s.OpenFrame()
	inner := s.CreateBoolean(false)
	assert.Equal(t, 2, s.Depth())
	s.CloseFrame()

	assert.True(t, s.IsLive(outer))
	assert.False(t, s.IsLive(inner))

	s.CloseFrame()
	assert.False(t, s.IsLive(outer))
	assert.True(t, s.IsEmpty())
}

func TestCloseFrameUnderflowPanics(t *testing.T) {
	s := New()
	assert.PanicsWithError(t, "store invariant violated in CloseFrame: frame stack underflow", func() {
		s.CloseFrame()
	})
}

func TestAllocationWithoutFramePanics(t *testing.T) {
	s := New()
	assert.Panics(t, func() { s.CreateInteger(1) })
}

func TestReturnFrame(t *testing.T) {
	s := New()
	s.OpenFrame()
	p := s.CreateBoolean(true)

	s.OpenFrame()
	p2 := s.CreateBoolean(false)
	moved, err := s.ReturnFrame(p2)
	require.NoError(t, err)
	assert.Equal(t, p2, moved)
	s.CloseFrame()

	assert.True(t, s.IsLive(p))
	assert.True(t, s.IsLive(p2))

	s.CloseFrame()
	assert.False(t, s.IsLive(p))
	assert.False(t, s.IsLive(p2))
	assert.True(t, s.IsEmpty())
}

func TestReturnFrameNeedsOuterFrame(t *testing.T) {
	s := New()
	s.OpenFrame()
	defer s.CloseFrame()

	_, err := s.ReturnFrame(s.CreateBoolean(true))
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestCompositeKeepsChildFromOuterFrame(t *testing.T) {
	s := New()
	s.OpenFrame()
	x := s.CreateInteger(5)

	s.OpenFrame()
	c, err := s.CreateComposite(x)
	require.NoError(t, err)
	s.CloseFrame()

	assert.False(t, s.IsLive(c))
	assert.True(t, s.IsLive(x), "x belongs to the outer frame")
	s.CloseFrame()
	assert.True(t, s.IsEmpty())
}

func TestCreateCompositeRejectsDeadChild(t *testing.T) {
	s := New()
	s.OpenFrame()
	dead := s.CreateInteger(1)
	s.CloseFrame()

	s.OpenFrame()
	defer s.CloseFrame()
	_, err := s.CreateComposite(dead)
	assert.ErrorIs(t, err, ErrNotLive)
}

func TestRGBA(t *testing.T) {
	s := New()
	s.OpenFrame()
	c := s.CreateRGBA(RGBA{R: 10, G: 20, B: 30, A: 0.5})

	st := s.Stats()
	assert.Equal(t, 3, st.Live[Integer])
	assert.Equal(t, 1, st.Live[Decimal])
	assert.Equal(t, 1, st.Live[Composite])

	got, err := s.Color(c)
	require.NoError(t, err)
	assert.Equal(t, RGBA{R: 10, G: 20, B: 30, A: 0.5}, got)

	_, err = s.Color(s.CreateInteger(1))
	assert.ErrorIs(t, err, ErrKindMismatch)

	assert.Equal(t, 6, s.CloseFrame())
}

func TestUnionAndMembers(t *testing.T) {
	s := New()
	s.OpenFrame()
	defer s.CloseFrame()

	payload := s.CreateInteger(9)
	u, err := s.CreateUnion(2, payload)
	require.NoError(t, err)

	tag, members, err := s.Union(u)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), tag)
	assert.Equal(t, []Pointer{payload}, members)

	list, err := s.CreateComposite(payload, payload)
	require.NoError(t, err)
	m, err := s.Member(list, 1)
	require.NoError(t, err)
	assert.Equal(t, payload, m)

	_, err = s.Member(list, 2)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestDirtyPropagatesToParents(t *testing.T) {
	s := New()
	s.OpenFrame()
	defer s.CloseFrame()

	i := s.CreateInteger(1)
	c, err := s.CreateComposite(i)
	require.NoError(t, err)
	other := s.CreateInteger(2)

	require.NoError(t, s.SetInteger(i, 3))
	assert.True(t, s.IsDirty(i))
	assert.True(t, s.IsDirty(c))
	assert.False(t, s.IsDirty(other))

	s.ClearDirty()
	assert.False(t, s.IsDirty(c))
}

func TestDirtyReachesParentsBuiltAfterMark(t *testing.T) {
	s := New()
	s.OpenFrame()
	defer s.CloseFrame()

	i := s.CreateInteger(1)
	c, err := s.CreateComposite(i)
	require.NoError(t, err)

	require.NoError(t, s.SetInteger(i, 2))
	d, err := s.CreateComposite(c)
	require.NoError(t, err)
	assert.False(t, s.IsDirty(d))

	require.NoError(t, s.SetInteger(i, 3))
	assert.True(t, s.IsDirty(i))
	assert.True(t, s.IsDirty(c))
	assert.True(t, s.IsDirty(d), "second write reaches the new parent")
}

func TestMarkDirty(t *testing.T) {
	s := New()
	s.OpenFrame()
	i := s.CreateInteger(1)
	c, err := s.CreateComposite(i)
	require.NoError(t, err)

	s.MarkDirty(i)
	assert.True(t, s.IsDirty(c))
	v, err := s.Integer(i)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v, "marking does not write")

	s.CloseFrame()
	s.ClearDirty()
	s.MarkDirty(i)
	assert.False(t, s.IsDirty(i), "freed pointers are not marked")
}

type countingObserver struct {
	allocated map[Kind]int
	freed     map[Kind]int
}

func (o *countingObserver) PointerAllocated(k Kind) { o.allocated[k]++ }
func (o *countingObserver) PointerFreed(k Kind)     { o.freed[k]++ }

func TestObserver(t *testing.T) {
	o := &countingObserver{allocated: map[Kind]int{}, freed: map[Kind]int{}}
	s := New().WithObserver(o)

	s.OpenFrame()
	s.CreateRGBA(RGBA{A: 1})
	s.CloseFrame()

	assert.Equal(t, 3, o.allocated[Integer])
	assert.Equal(t, 1, o.allocated[Composite])
	assert.Equal(t, o.allocated, o.freed)
}
