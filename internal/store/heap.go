package store

import (
	"github.com/GriffinCanCode/uihost/internal/shared/slot"
)

// links is stored next to every payload. children are the pointers a
// composite or union owns; parents are the composites and unions that own
// this pointer (one entry per occurrence).
type links struct {
	children []Pointer
	parents  []Pointer
}

type cell[T any] struct {
	value T
	links
}

type heap[T any] struct {
	slot.Table[cell[T]]
}

func (h *heap[T]) insert(v T, children []Pointer) slot.Key {
	return h.Insert(cell[T]{value: v, links: links{children: children}})
}

func (h *heap[T]) links(k slot.Key) *links {
	c, ok := h.Get(k)
	if !ok {
		return nil
	}
	return &c.links
}

func (h *heap[T]) value(k slot.Key) (*T, bool) {
	c, ok := h.Get(k)
	if !ok {
		return nil, false
	}
	return &c.value, true
}

// arena groups the per-kind tables
type arena struct {
	booleans   heap[bool]
	integers   heap[int32]
	decimals   heap[float32]
	composites heap[struct{}]
	unions     heap[uint8]
}

func (a *arena) links(p Pointer) *links {
	switch p.Kind {
	case Boolean:
		return a.booleans.links(p.Key)
	case Integer:
		return a.integers.links(p.Key)
	case Decimal:
		return a.decimals.links(p.Key)
	case Composite:
		return a.composites.links(p.Key)
	case TaggedUnion:
		return a.unions.links(p.Key)
	default:
		return nil
	}
}

func (a *arena) live(p Pointer) bool {
	return a.links(p) != nil
}

func (a *arena) remove(p Pointer) bool {
	var ok bool
	switch p.Kind {
	case Boolean:
		_, ok = a.booleans.Remove(p.Key)
	case Integer:
		_, ok = a.integers.Remove(p.Key)
	case Decimal:
		_, ok = a.decimals.Remove(p.Key)
	case Composite:
		_, ok = a.composites.Remove(p.Key)
	case TaggedUnion:
		_, ok = a.unions.Remove(p.Key)
	}
	return ok
}

func (a *arena) count(k Kind) int {
	switch k {
	case Boolean:
		return a.booleans.Len()
	case Integer:
		return a.integers.Len()
	case Decimal:
		return a.decimals.Len()
	case Composite:
		return a.composites.Len()
	case TaggedUnion:
		return a.unions.Len()
	default:
		return 0
	}
}

func removeOne(ps []Pointer, p Pointer) []Pointer {
	for i, q := range ps {
		if q == p {
			return append(ps[:i], ps[i+1:]...)
		}
	}
	return ps
}
