package store

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/shared/slot"
)

// Attach makes node retain p and everything p owns. Repeating an attach
// adds no entries. p leaves frame bookkeeping once it gains an entry.
func (s *Store) Attach(node slot.Key, p Pointer) error {
	if !s.arena.live(p) {
		return notLive(p)
	}
	direct := s.roots[node]
	if direct == nil {
		direct = make(map[Pointer]int)
		s.roots[node] = direct
	}
	direct[p]++
	s.propagate(p, []slot.Key{node}, p)
	return nil
}

// propagate merges nodes into p's attachment set under source and recurses
// into p's children with p as the new source, but only for the nodes that
// were actually new to p.
func (s *Store) propagate(p Pointer, nodes []slot.Key, source Pointer) {
	set := s.attachments[p]
	if set == nil {
		set = make(map[SDep]struct{}, len(nodes))
		s.attachments[p] = set
	}
	var added []slot.Key
	for _, n := range nodes {
		d := SDep{Node: n, Source: source}
		if _, ok := set[d]; ok {
			continue
		}
		set[d] = struct{}{}
		added = append(added, n)
	}
	if len(added) == 0 {
		return
	}
	delete(s.framed, p)
	for _, c := range s.Children(p) {
		s.propagate(c, added, p)
	}
}

// Attachments returns a copy of p's attachment set
func (s *Store) Attachments(p Pointer) []SDep {
	set := s.attachments[p]
	out := make([]SDep, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	return out
}

// Retains reports whether node retains p through any path
func (s *Store) Retains(node slot.Key, p Pointer) bool {
	for d := range s.attachments[p] {
		if d.Node == node {
			return true
		}
	}
	return false
}

// Detach undoes one Attach(node, p). Entries are removed only along paths
// rooted at p, and only once the direct attachment count reaches zero.
func (s *Store) Detach(node slot.Key, p Pointer) {
	direct := s.roots[node]
	n, ok := direct[p]
	if !ok {
		return
	}
	if n > 1 {
		direct[p] = n - 1
		return
	}
	delete(direct, p)
	if len(direct) == 0 {
		delete(s.roots, node)
	}

	var touched []Pointer
	s.retract(p, node, p, &touched)
	s.reclaimAll(touched)
}

func (s *Store) retract(p Pointer, node slot.Key, source Pointer, touched *[]Pointer) {
	set := s.attachments[p]
	d := SDep{Node: node, Source: source}
	if _, ok := set[d]; !ok {
		return
	}
	delete(set, d)
	if len(set) == 0 {
		delete(s.attachments, p)
	}
	*touched = append(*touched, p)
	if s.Retains(node, p) {
		return
	}
	for _, c := range s.Children(p) {
		s.retract(c, node, p, touched)
	}
}

// DetachAll removes every entry naming node and frees what that orphans.
// Detaching a node that retains nothing is a no-op.
func (s *Store) DetachAll(node slot.Key) int {
	direct, ok := s.roots[node]
	if !ok {
		return 0
	}
	delete(s.roots, node)

	work := make([]Pointer, 0, len(direct))
	for p := range direct {
		work = append(work, p)
	}

	var touched []Pointer
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]

		set := s.attachments[p]
		removed := false
		for d := range set {
			if d.Node == node {
				delete(set, d)
				removed = true
			}
		}
		if !removed {
			continue
		}
		if len(set) == 0 {
			delete(s.attachments, p)
		}
		touched = append(touched, p)
		work = append(work, s.Children(p)...)
	}

	freed := s.reclaimAll(touched)
	s.logger.Debug("Node detached",
		zap.String("node", node.String()),
		zap.Int("touched", len(touched)),
		zap.Int("freed", freed),
	)
	return freed
}

func (s *Store) reclaimAll(ps []Pointer) int {
	freed := 0
	for _, p := range ps {
		freed += s.reclaim(p)
	}
	return freed
}

// reclaim frees p if nothing keeps it alive and cascades into its children
func (s *Store) reclaim(p Pointer) int {
	l := s.arena.links(p)
	if l == nil {
		return 0
	}
	if len(s.attachments[p]) > 0 || len(l.parents) > 0 {
		return 0
	}
	if _, ok := s.framed[p]; ok {
		return 0
	}

	children := l.children
	if !s.arena.remove(p) {
		invariant("reclaim", "live pointer %s could not be removed", p)
	}
	delete(s.attachments, p)
	delete(s.dirty, p)
	if s.observer != nil {
		s.observer.PointerFreed(p.Kind)
	}

	freed := 1
	for _, c := range children {
		if cl := s.arena.links(c); cl != nil {
			cl.parents = removeOne(cl.parents, p)
		}
		freed += s.reclaim(c)
	}
	return freed
}
