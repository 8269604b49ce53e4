/*
Package store holds every value a guest program allocates and decides when
each one may be reclaimed.

# Overview

Values live in per-kind slot tables (boolean, integer, decimal, composite,
tagged union). A Pointer is a kind plus a generation-stamped slot key, so a
handle to a freed value is detected instead of aliasing whatever reused the
slot.

# Lifetimes

A value is reachable while any of the following holds:

  - it is recorded in an open frame
  - some document node retains it (its attachment set is non-empty)
  - a live composite or tagged union holds it as a child

Frames are opened and closed in strict LIFO order around batches of guest
calls. Closing a frame reclaims whatever it recorded that is no longer
reachable.

Attach binds a value to a document node. The node is propagated to every
child with the parent as provenance, stopping at the first pointer that
already carried the entry, so re-attaching shared structure costs nothing.
DetachAll removes a node's entries and frees values that lost their last
owner, cascading into their children.

# Errors

  - ErrNotLive, ErrKindMismatch: the caller handed in a bad handle. These
    terminate the guest call that produced them.
  - InvariantError: raised with panic. Only host bugs reach it.

# Concurrency

A Store is single-writer and has no internal locking. Callers serialize
access (see the document manager).

# Usage

	s := store.New()
	s.OpenFrame()
	p := s.CreateInteger(200)
	_ = s.Attach(node, p)
	s.CloseFrame() // p survives, node retains it
	s.DetachAll(node) // p is freed
*/
package store
