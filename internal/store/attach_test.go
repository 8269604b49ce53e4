package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachIsIdempotent(t *testing.T) {
	s := New()
	s.OpenFrame()
	defer s.CloseFrame()

	leaf := s.CreateInteger(1)
	inner, err := s.CreateComposite(leaf)
	require.NoError(t, err)
	outer, err := s.CreateComposite(inner, leaf)
	require.NoError(t, err)

	require.NoError(t, s.Attach(nodeA, outer))
	first := s.Stats().Attachments

	require.NoError(t, s.Attach(nodeA, outer))
	assert.Equal(t, first, s.Stats().Attachments, "second attach must add no edges")
	assert.ElementsMatch(t, []SDep{
		{Node: nodeA, Source: inner},
		{Node: nodeA, Source: outer},
	}, s.Attachments(leaf))
}

func TestAttachRemovesFromFrame(t *testing.T) {
	s := New()
	s.OpenFrame()
	i := s.CreateInteger(1)
	c, err := s.CreateComposite(i)
	require.NoError(t, err)
	require.True(t, s.InFrame(c))

	require.NoError(t, s.Attach(nodeA, c))
	assert.False(t, s.InFrame(c))
	assert.False(t, s.InFrame(i))

	assert.Zero(t, s.CloseFrame())
	s.DetachAll(nodeA)
	assert.True(t, s.IsEmpty())
}

func TestAttachDeadPointer(t *testing.T) {
	s := New()
	s.OpenFrame()
	p := s.CreateBoolean(true)
	s.CloseFrame()

	assert.ErrorIs(t, s.Attach(nodeA, p), ErrNotLive)
}

func TestDetachAllKeepsSharedValues(t *testing.T) {
	s := New()
	s.OpenFrame()
	shared := s.CreateInteger(1)
	onlyA := s.CreateInteger(2)
	a, err := s.CreateComposite(shared, onlyA)
	require.NoError(t, err)
	b, err := s.CreateComposite(shared)
	require.NoError(t, err)
	require.NoError(t, s.Attach(nodeA, a))
	require.NoError(t, s.Attach(nodeB, b))
	s.CloseFrame()

	s.DetachAll(nodeA)
	assert.False(t, s.IsLive(a))
	assert.False(t, s.IsLive(onlyA))
	assert.True(t, s.IsLive(shared), "still retained by nodeB")
	assert.True(t, s.IsLive(b))
	assert.ElementsMatch(t, []SDep{{Node: nodeB, Source: b}}, s.Attachments(shared))

	s.DetachAll(nodeB)
	assert.True(t, s.IsEmpty())
}

func TestDetachAllLeavesFramedPointers(t *testing.T) {
	s := New()
	s.OpenFrame()
	i := s.CreateInteger(1)
	holder, err := s.CreateComposite(i)
	require.NoError(t, err)
	require.NoError(t, s.Attach(nodeA, i))

	s.DetachAll(nodeA)
	assert.True(t, s.IsLive(i), "a live composite in the open frame still owns i")

	s.CloseFrame()
	assert.False(t, s.IsLive(holder))
	assert.False(t, s.IsLive(i))
	assert.True(t, s.IsEmpty())
}

func TestDetachAllUnknownNodeIsNoop(t *testing.T) {
	s := New()
	s.OpenFrame()
	i := s.CreateInteger(1)
	require.NoError(t, s.Attach(nodeA, i))
	s.CloseFrame()

	assert.Zero(t, s.DetachAll(nodeB))
	assert.True(t, s.IsLive(i))
}

func TestDetachSinglePath(t *testing.T) {
	s := New()
	s.OpenFrame()
	old := s.CreateInteger(1)
	keep := s.CreateInteger(2)
	require.NoError(t, s.Attach(nodeA, old))
	require.NoError(t, s.Attach(nodeA, keep))
	s.CloseFrame()

	s.Detach(nodeA, old)
	assert.False(t, s.IsLive(old))
	assert.True(t, s.IsLive(keep))

	s.Detach(nodeA, old)
	assert.True(t, s.IsLive(keep))
}

func TestDetachCountsDirectAttachments(t *testing.T) {
	s := New()
	s.OpenFrame()
	p := s.CreateInteger(1)
	require.NoError(t, s.Attach(nodeA, p))
	require.NoError(t, s.Attach(nodeA, p))
	s.CloseFrame()

	s.Detach(nodeA, p)
	assert.True(t, s.IsLive(p), "one binding still holds p")
	s.Detach(nodeA, p)
	assert.False(t, s.IsLive(p))
}

func TestDetachKeepsAlternatePath(t *testing.T) {
	s := New()
	s.OpenFrame()
	leaf := s.CreateInteger(1)
	mid, err := s.CreateComposite(leaf)
	require.NoError(t, err)
	top, err := s.CreateComposite(mid)
	require.NoError(t, err)
	require.NoError(t, s.Attach(nodeA, top))
	require.NoError(t, s.Attach(nodeA, mid))
	s.CloseFrame()

	s.Detach(nodeA, mid)
	assert.True(t, s.IsLive(mid))
	assert.True(t, s.Retains(nodeA, leaf), "leaf still flows from top through mid")

	s.Detach(nodeA, top)
	assert.True(t, s.IsEmpty())
}

func TestAttachmentMonotonicAcrossFrames(t *testing.T) {
	s := New()
	s.OpenFrame()
	s.OpenFrame()
	i := s.CreateInteger(1)
	c, err := s.CreateComposite(i)
	require.NoError(t, err)
	require.NoError(t, s.Attach(nodeA, c))
	s.CloseFrame()
	s.CloseFrame()

	assert.True(t, s.IsLive(c))
	assert.True(t, s.IsLive(i))
	assert.Equal(t, 1, s.Stats().AttachedNodes)
}
