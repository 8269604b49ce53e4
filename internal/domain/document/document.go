package document

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/shared/id"
	"github.com/GriffinCanCode/uihost/internal/shared/utils"
)

// Document is one hosted guest with its own store and tree. All access is
// serialized on mu; the store and tree are single-writer.
type Document struct {
	ID        id.DocumentID
	Name      string
	Engine    sandbox.Engine
	Digest    string
	Origin    string
	CreatedAt time.Time

	mu      sync.Mutex
	dom     *dom.Document
	session *sandbox.Session
	closed  bool
}

// Info is the JSON view of a document
type Info struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Engine    sandbox.Engine `json:"engine"`
	Digest    string         `json:"digest"`
	Origin    string         `json:"origin,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Stats     Stats          `json:"stats"`
}

// Stats summarizes a document's store and tree
type Stats struct {
	Nodes         int            `json:"nodes"`
	Bindings      int            `json:"bindings"`
	Live          map[string]int `json:"live"`
	Pointers      int            `json:"pointers"`
	Frames        int            `json:"frames"`
	Attachments   int            `json:"attachments"`
	AttachedNodes int            `json:"attached_nodes"`
}

// Info returns a snapshot for listings
func (d *Document) Info() Info {
	return Info{
		ID:        d.ID.String(),
		Name:      d.Name,
		Engine:    d.Engine,
		Digest:    d.Digest,
		Origin:    d.Origin,
		CreatedAt: d.CreatedAt,
		Stats:     d.Stats(),
	}
}

// Stats reports live pointers per kind, frames and attachment sizes
func (d *Document) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.dom.Store().Stats()
	live := make(map[string]int, len(st.Live))
	for k, n := range st.Live {
		live[k.String()] = n
	}
	return Stats{
		Nodes:         d.dom.Len(),
		Bindings:      len(d.dom.Bindings()),
		Live:          live,
		Pointers:      st.Total(),
		Frames:        st.Frames,
		Attachments:   st.Attachments,
		AttachedNodes: st.AttachedNodes,
	}
}

func (d *Document) lock() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrClosed, d.ID)
	}
	return nil
}

// Layout computes paint operations for a width x height viewport
func (d *Document) Layout(width, height float32) ([]dom.Operation, error) {
	if err := utils.ValidateViewport(width, height); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidViewport, err)
	}
	if err := d.lock(); err != nil {
		return nil, err
	}
	defer d.mu.Unlock()

	ops := d.dom.Layout(width, height)
	if ops == nil {
		ops = []dom.Operation{}
	}
	return ops, nil
}

// HTML renders the sanitized tree
func (d *Document) HTML() (string, error) {
	if err := d.lock(); err != nil {
		return "", err
	}
	defer d.mu.Unlock()
	return d.dom.RenderHTML()
}

// Node describes the node with the stable key string
func (d *Document) Node(key string) (dom.NodeInfo, error) {
	if err := d.lock(); err != nil {
		return dom.NodeInfo{}, err
	}
	defer d.mu.Unlock()

	k, err := d.dom.Lookup(key)
	if err != nil {
		return dom.NodeInfo{}, err
	}
	return d.dom.Node(k)
}

// Destroy removes a node and its subtree, returning how many nodes went
func (d *Document) Destroy(key string) (int, error) {
	if err := d.lock(); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()

	k, err := d.dom.Lookup(key)
	if err != nil {
		return 0, err
	}
	return d.dom.Destroy(k)
}

// Recompute re-runs dynamic bindings whose captured values changed
func (d *Document) Recompute(ctx context.Context) (int, error) {
	if err := d.lock(); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	return d.session.Recompute(ctx)
}

// Dispatch fires event on the node with the given key and recomputes the
// bindings the handler invalidated
func (d *Document) Dispatch(ctx context.Context, key string, event int32) (int, error) {
	if err := d.lock(); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()

	k, err := d.dom.Lookup(key)
	if err != nil {
		return 0, err
	}
	if err := d.session.Dispatch(ctx, k, event); err != nil {
		return 0, err
	}
	return d.session.Recompute(ctx)
}

// close tears the tree down, checks that nothing leaked and releases the
// guest. Calling it twice is a no-op.
func (d *Document) close(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, nil
	}
	d.closed = true

	n := d.dom.Clear()
	var leak error
	if s := d.dom.Store(); !s.IsEmpty() {
		st := s.Stats()
		leak = fmt.Errorf("%w: %d pointers, %d frames, %d attachments", ErrLeak, st.Total(), st.Frames, st.Attachments)
	}
	if err := d.session.Close(ctx); err != nil {
		return n, err
	}
	return n, leak
}
