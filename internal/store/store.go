package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/shared/slot"
)

// Observer receives allocation events, typically a metrics sink
type Observer interface {
	PointerAllocated(kind Kind)
	PointerFreed(kind Kind)
}

// Store owns the arena, the frame stack and the attachment graph
type Store struct {
	arena arena

	frames []frame
	// framed maps a pointer to the index of the frame that currently owns it
	framed map[Pointer]int

	attachments map[Pointer]map[SDep]struct{}
	// roots counts direct attachments per node
	roots map[slot.Key]map[Pointer]int

	dirty map[Pointer]struct{}

	observer Observer
	logger   *zap.Logger
}

// New creates an empty store
func New() *Store {
	return &Store{
		framed:      make(map[Pointer]int),
		attachments: make(map[Pointer]map[SDep]struct{}),
		roots:       make(map[slot.Key]map[Pointer]int),
		dirty:       make(map[Pointer]struct{}),
		logger:      zap.NewNop(),
	}
}

// WithObserver sets the allocation observer
func (s *Store) WithObserver(o Observer) *Store {
	s.observer = o
	return s
}

// WithLogger sets the logger used for reclamation tracing
func (s *Store) WithLogger(l *zap.Logger) *Store {
	if l != nil {
		s.logger = l
	}
	return s
}

// ============================================================================
// Allocation
// ============================================================================

// CreateBoolean allocates a boolean in the current frame
func (s *Store) CreateBoolean(v bool) Pointer {
	return s.record(Pointer{Kind: Boolean, Key: s.arena.booleans.insert(v, nil)})
}

// CreateInteger allocates an integer in the current frame
func (s *Store) CreateInteger(v int32) Pointer {
	return s.record(Pointer{Kind: Integer, Key: s.arena.integers.insert(v, nil)})
}

// CreateDecimal allocates a decimal in the current frame
func (s *Store) CreateDecimal(v float32) Pointer {
	return s.record(Pointer{Kind: Decimal, Key: s.arena.decimals.insert(v, nil)})
}

// CreateComposite allocates a composite that takes ownership of children.
// Every child must be live.
func (s *Store) CreateComposite(children ...Pointer) (Pointer, error) {
	owned, err := s.adopt(children)
	if err != nil {
		return Pointer{}, err
	}
	p := Pointer{Kind: Composite, Key: s.arena.composites.insert(struct{}{}, owned)}
	s.link(p, owned)
	return s.record(p), nil
}

// CreateUnion allocates a tagged union holding the payload of one variant
func (s *Store) CreateUnion(discriminant uint8, payload ...Pointer) (Pointer, error) {
	owned, err := s.adopt(payload)
	if err != nil {
		return Pointer{}, err
	}
	p := Pointer{Kind: TaggedUnion, Key: s.arena.unions.insert(discriminant, owned)}
	s.link(p, owned)
	return s.record(p), nil
}

// CreateRGBA allocates three integers, a decimal and the composite that
// holds them. All five are recorded in the current frame.
func (s *Store) CreateRGBA(c RGBA) Pointer {
	p, err := s.CreateComposite(
		s.CreateInteger(c.R),
		s.CreateInteger(c.G),
		s.CreateInteger(c.B),
		s.CreateDecimal(c.A),
	)
	if err != nil {
		invariant("CreateRGBA", "fresh channel not live: %v", err)
	}
	return p
}

func (s *Store) adopt(children []Pointer) ([]Pointer, error) {
	for _, c := range children {
		if !s.arena.live(c) {
			return nil, notLive(c)
		}
	}
	return append([]Pointer(nil), children...), nil
}

func (s *Store) link(parent Pointer, children []Pointer) {
	for _, c := range children {
		l := s.arena.links(c)
		l.parents = append(l.parents, parent)
	}
}

func (s *Store) record(p Pointer) Pointer {
	n := len(s.frames)
	if n == 0 {
		invariant("record", "allocation of %s with no open frame", p)
	}
	s.frames[n-1].pointers = append(s.frames[n-1].pointers, p)
	s.framed[p] = n - 1
	if s.observer != nil {
		s.observer.PointerAllocated(p.Kind)
	}
	return p
}

// ============================================================================
// Reads and writes
// ============================================================================

// IsLive reports whether p resolves to an allocated slot
func (s *Store) IsLive(p Pointer) bool {
	return s.arena.live(p)
}

// Children returns the pointers p owns. The slice must not be modified.
func (s *Store) Children(p Pointer) []Pointer {
	if l := s.arena.links(p); l != nil {
		return l.children
	}
	return nil
}

// Boolean reads a boolean payload
func (s *Store) Boolean(p Pointer) (bool, error) {
	v, err := read(s, p, Boolean, &s.arena.booleans)
	if err != nil {
		return false, err
	}
	return *v, nil
}

// Integer reads an integer payload
func (s *Store) Integer(p Pointer) (int32, error) {
	v, err := read(s, p, Integer, &s.arena.integers)
	if err != nil {
		return 0, err
	}
	return *v, nil
}

// Decimal reads a decimal payload
func (s *Store) Decimal(p Pointer) (float32, error) {
	v, err := read(s, p, Decimal, &s.arena.decimals)
	if err != nil {
		return 0, err
	}
	return *v, nil
}

// Members returns a copy of a composite's children
func (s *Store) Members(p Pointer) ([]Pointer, error) {
	if _, err := read(s, p, Composite, &s.arena.composites); err != nil {
		return nil, err
	}
	return append([]Pointer(nil), s.Children(p)...), nil
}

// Union returns a tagged union's discriminant and a copy of its payload
func (s *Store) Union(p Pointer) (uint8, []Pointer, error) {
	v, err := read(s, p, TaggedUnion, &s.arena.unions)
	if err != nil {
		return 0, nil, err
	}
	return *v, append([]Pointer(nil), s.Children(p)...), nil
}

// Member returns the idx-th child of a composite
func (s *Store) Member(p Pointer, idx int) (Pointer, error) {
	members, err := s.Members(p)
	if err != nil {
		return Pointer{}, err
	}
	if idx < 0 || idx >= len(members) {
		return Pointer{}, fmt.Errorf("%w: %s has %d members, index %d", ErrBadShape, p, len(members), idx)
	}
	return members[idx], nil
}

// Color decodes a composite created by CreateRGBA
func (s *Store) Color(p Pointer) (RGBA, error) {
	members, err := s.Members(p)
	if err != nil {
		return RGBA{}, err
	}
	if len(members) != 4 {
		return RGBA{}, fmt.Errorf("%w: color %s has %d members", ErrBadShape, p, len(members))
	}
	var c RGBA
	if c.R, err = s.Integer(members[0]); err != nil {
		return RGBA{}, err
	}
	if c.G, err = s.Integer(members[1]); err != nil {
		return RGBA{}, err
	}
	if c.B, err = s.Integer(members[2]); err != nil {
		return RGBA{}, err
	}
	if c.A, err = s.Decimal(members[3]); err != nil {
		return RGBA{}, err
	}
	return c, nil
}

// SetBoolean overwrites a boolean and marks it dirty
func (s *Store) SetBoolean(p Pointer, v bool) error {
	return write(s, p, Boolean, &s.arena.booleans, v)
}

// SetInteger overwrites an integer and marks it dirty
func (s *Store) SetInteger(p Pointer, v int32) error {
	return write(s, p, Integer, &s.arena.integers, v)
}

// SetDecimal overwrites a decimal and marks it dirty
func (s *Store) SetDecimal(p Pointer, v float32) error {
	return write(s, p, Decimal, &s.arena.decimals, v)
}

func read[T any](s *Store, p Pointer, want Kind, h *heap[T]) (*T, error) {
	if p.Kind != want {
		if !s.arena.live(p) {
			return nil, notLive(p)
		}
		return nil, mismatch(p, want)
	}
	v, ok := h.value(p.Key)
	if !ok {
		return nil, notLive(p)
	}
	return v, nil
}

func write[T any](s *Store, p Pointer, want Kind, h *heap[T], v T) error {
	cur, err := read(s, p, want, h)
	if err != nil {
		return err
	}
	*cur = v
	s.markDirty(p)
	return nil
}

// ============================================================================
// Change tracking
// ============================================================================

// markDirty flags p and every transitive parent as changed. Parents are
// walked even when p is already marked, since a parent may have been built
// after the earlier mark.
func (s *Store) markDirty(p Pointer) {
	s.walkDirty(p, make(map[Pointer]struct{}))
}

func (s *Store) walkDirty(p Pointer, seen map[Pointer]struct{}) {
	if _, ok := seen[p]; ok {
		return
	}
	seen[p] = struct{}{}
	s.dirty[p] = struct{}{}
	l := s.arena.links(p)
	if l == nil {
		return
	}
	for _, parent := range l.parents {
		s.walkDirty(parent, seen)
	}
}

// MarkDirty flags a live pointer and its parents as changed without
// writing it
func (s *Store) MarkDirty(p Pointer) {
	if s.arena.live(p) {
		s.markDirty(p)
	}
}

// IsDirty reports whether p or something it owns changed since ClearDirty
func (s *Store) IsDirty(p Pointer) bool {
	_, ok := s.dirty[p]
	return ok
}

// ClearDirty forgets all change marks
func (s *Store) ClearDirty() {
	clear(s.dirty)
}

// ============================================================================
// Introspection
// ============================================================================

// Stats is a point-in-time summary of the store
type Stats struct {
	Live          map[Kind]int
	Frames        int
	Attachments   int
	AttachedNodes int
}

// Total returns the number of live pointers across kinds
func (st Stats) Total() int {
	n := 0
	for _, c := range st.Live {
		n += c
	}
	return n
}

// Stats reports live counts and graph sizes
func (s *Store) Stats() Stats {
	st := Stats{
		Live:          make(map[Kind]int, len(Kinds)),
		Frames:        len(s.frames),
		AttachedNodes: len(s.roots),
	}
	for _, k := range Kinds {
		st.Live[k] = s.arena.count(k)
	}
	for _, set := range s.attachments {
		st.Attachments += len(set)
	}
	return st
}

// IsEmpty reports whether nothing is allocated, attached or framed
func (s *Store) IsEmpty() bool {
	st := s.Stats()
	return st.Total() == 0 && st.Frames == 0 && st.Attachments == 0 && st.AttachedNodes == 0
}
