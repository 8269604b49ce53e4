package dom

import (
	"github.com/GriffinCanCode/uihost/internal/layout"
	"github.com/GriffinCanCode/uihost/internal/store"
)

// Operation is a single paint instruction in viewport coordinates
type Operation struct {
	Op     string     `json:"op"`
	Node   string     `json:"node"`
	Kind   string     `json:"kind"`
	X      float32    `json:"x"`
	Y      float32    `json:"y"`
	Width  float32    `json:"width"`
	Height float32    `json:"height"`
	Color  store.RGBA `json:"color"`
}

// Layout computes geometry for a width x height viewport and returns paint
// operations in depth-first order. Nodes without a visible fill emit nothing.
func (d *Document) Layout(width, height float32) []Operation {
	root, err := d.element(d.root)
	if err != nil {
		return nil
	}
	layout.Compute(root.box, width, height)

	var ops []Operation
	d.paint(d.root, 0, 0, &ops)
	return ops
}

func (d *Document) paint(key NodeKey, ox, oy float32, ops *[]Operation) {
	e, err := d.element(key)
	if err != nil {
		return
	}
	r := e.box.Layout
	x, y := ox+r.X, oy+r.Y
	if bg := e.style.Background; bg != nil && bg.A > 0 && r.Width > 0 && r.Height > 0 {
		*ops = append(*ops, Operation{
			Op:     "rect",
			Node:   key.String(),
			Kind:   e.kind.String(),
			X:      x,
			Y:      y,
			Width:  r.Width,
			Height: r.Height,
			Color:  *bg,
		})
	}
	for _, c := range d.children[key] {
		d.paint(c, x, y, ops)
	}
}
