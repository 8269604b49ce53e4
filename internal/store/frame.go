package store

import (
	"go.uber.org/zap"
)

type frame struct {
	pointers []Pointer
}

// OpenFrame pushes an empty frame
func (s *Store) OpenFrame() {
	s.frames = append(s.frames, frame{})
}

// Depth returns the number of open frames
func (s *Store) Depth() int {
	return len(s.frames)
}

// CloseFrame pops the top frame and reclaims every pointer it still owns
// that nothing else keeps alive. It returns the number of freed pointers.
// Closing with no open frame panics.
func (s *Store) CloseFrame() int {
	n := len(s.frames)
	if n == 0 {
		invariant("CloseFrame", "frame stack underflow")
	}
	top := s.frames[n-1]
	s.frames = s.frames[:n-1]

	owned := top.pointers[:0]
	for _, p := range top.pointers {
		if idx, ok := s.framed[p]; ok && idx == n-1 {
			delete(s.framed, p)
			owned = append(owned, p)
		}
	}

	// newest first so composites release their children before the
	// children themselves are checked
	freed := 0
	for i := len(owned) - 1; i >= 0; i-- {
		freed += s.reclaim(owned[i])
	}
	if freed > 0 {
		s.logger.Debug("Frame closed", zap.Int("depth", n), zap.Int("freed", freed))
	}
	return freed
}

// ReturnFrame moves p from the top frame into the frame below it so it
// outlives the current frame. Pointers the top frame does not own are
// returned unchanged.
func (s *Store) ReturnFrame(p Pointer) (Pointer, error) {
	if !s.arena.live(p) {
		return Pointer{}, notLive(p)
	}
	n := len(s.frames)
	if n < 2 {
		return Pointer{}, ErrNoFrame
	}
	if idx, ok := s.framed[p]; !ok || idx != n-1 {
		return p, nil
	}
	s.framed[p] = n - 2
	s.frames[n-2].pointers = append(s.frames[n-2].pointers, p)
	return p, nil
}

// InFrame reports whether p is owned by an open frame
func (s *Store) InFrame(p Pointer) bool {
	_, ok := s.framed[p]
	return ok
}
