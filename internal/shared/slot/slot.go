// Package slot provides a generation-stamped slot table.
//
// A Key pairs a slot index with the generation that was current when the
// value was inserted. Removing a value bumps the slot's generation, so any
// Key handed out earlier stops resolving even after the slot is reused.
package slot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedKey is returned when a key string is not of the form {index}v{gen}
var ErrMalformedKey = errors.New("malformed slot key")

// Key identifies a value in a Table
type Key struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether k is the zero key, which never resolves
func (k Key) IsZero() bool {
	return k.Gen == 0
}

// String renders the key as {index}v{gen}
func (k Key) String() string {
	return strconv.FormatUint(uint64(k.Index), 10) + "v" + strconv.FormatUint(uint64(k.Gen), 10)
}

// ParseKey parses the {index}v{gen} form produced by Key.String
func ParseKey(s string) (Key, error) {
	idx, gen, ok := strings.Cut(s, "v")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return Key{Index: uint32(i), Gen: uint32(g)}, nil
}

type entry[T any] struct {
	value    T
	gen      uint32
	occupied bool
}

// Table stores values of type T addressed by Key.
// Not safe for concurrent use.
type Table[T any] struct {
	entries []entry[T]
	free    []uint32
	len     int
}

// Insert stores v and returns its key
func (t *Table[T]) Insert(v T) Key {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		e := &t.entries[idx]
		e.value = v
		e.occupied = true
		t.len++
		return Key{Index: idx, Gen: e.gen}
	}
	if len(t.entries) == math.MaxUint32 {
		panic("slot: table exhausted")
	}
	t.entries = append(t.entries, entry[T]{value: v, gen: 1, occupied: true})
	t.len++
	return Key{Index: uint32(len(t.entries) - 1), Gen: 1}
}

// Get returns a pointer to the value stored under k. The pointer is valid
// until the next Insert.
func (t *Table[T]) Get(k Key) (*T, bool) {
	if int(k.Index) >= len(t.entries) {
		return nil, false
	}
	e := &t.entries[k.Index]
	if !e.occupied || e.gen != k.Gen {
		return nil, false
	}
	return &e.value, true
}

// Contains reports whether k resolves to a live value
func (t *Table[T]) Contains(k Key) bool {
	_, ok := t.Get(k)
	return ok
}

// Remove deletes the value stored under k and returns it
func (t *Table[T]) Remove(k Key) (T, bool) {
	var zero T
	if !t.Contains(k) {
		return zero, false
	}
	e := &t.entries[k.Index]
	v := e.value
	e.value = zero
	e.occupied = false
	t.len--
	// a slot whose generation would wrap is retired rather than reused
	if e.gen == math.MaxUint32 {
		return v, true
	}
	e.gen++
	t.free = append(t.free, k.Index)
	return v, true
}

// Len returns the number of live values
func (t *Table[T]) Len() int {
	return t.len
}

// Each calls fn for every live value in index order until fn returns false
func (t *Table[T]) Each(fn func(Key, *T) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.occupied {
			continue
		}
		if !fn(Key{Index: uint32(i), Gen: e.gen}, &e.value) {
			return
		}
	}
}
