// Package layout is a small flexbox subset used to turn a style tree into
// geometry. It supports column and row directions, fixed and percent
// sizes, margin, padding and a uniform gap between children. Children
// without a cross-axis size stretch to fill their parent; children without
// a main-axis size take their content size.
package layout

// Direction is the main axis of a container
type Direction uint8

const (
	Column Direction = iota
	Row
)

// Unit says how a Value is resolved
type Unit uint8

const (
	Auto Unit = iota
	Points
	Percent
)

// Value is a length in points or a percentage of the parent's content box
type Value struct {
	Unit  Unit
	Value float32
}

// Px returns a fixed length
func Px(v float32) Value { return Value{Unit: Points, Value: v} }

// Pct returns a percentage of the parent's content box
func Pct(v float32) Value { return Value{Unit: Percent, Value: v} }

func (v Value) resolve(parent float32) (float32, bool) {
	switch v.Unit {
	case Points:
		return v.Value, true
	case Percent:
		return parent * v.Value / 100, true
	default:
		return 0, false
	}
}

// Edges holds per-side lengths
type Edges struct {
	Top, Right, Bottom, Left float32
}

// All returns edges with the same length on every side
func All(v float32) Edges {
	return Edges{Top: v, Right: v, Bottom: v, Left: v}
}

// Style is the layout input of a node
type Style struct {
	Direction Direction
	Width     Value
	Height    Value
	Margin    Edges
	Padding   Edges
	Gap       float32
}

// Rect is a border box. X and Y are relative to the parent's border box.
type Rect struct {
	X, Y, Width, Height float32
}

// Node is one box in the layout tree
type Node struct {
	Style  Style
	Layout Rect

	parent   *Node
	children []*Node
}

// NewNode returns a detached node with auto sizing
func NewNode() *Node {
	return &Node{}
}

// Parent returns the owning node or nil
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the node's children in order. The slice must not be modified.
func (n *Node) Children() []*Node {
	return n.children
}

// Append adds child as the last child of n. Appending a child n already
// owns is a no-op; a child owned elsewhere is moved.
func (n *Node) Append(child *Node) {
	if child.parent == n {
		return
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n
func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Compute lays out the tree rooted at root inside a width x height viewport
func Compute(root *Node, width, height float32) {
	w, ok := root.Style.Width.resolve(width)
	if !ok {
		w = width - root.Style.Margin.Left - root.Style.Margin.Right
	}
	h, ok := root.Style.Height.resolve(height)
	if !ok {
		h = height - root.Style.Margin.Top - root.Style.Margin.Bottom
	}
	place(root, root.Style.Margin.Left, root.Style.Margin.Top, w, h)
}

func place(n *Node, x, y, w, h float32) {
	n.Layout = Rect{X: x, Y: y, Width: max(w, 0), Height: max(h, 0)}

	pad := n.Style.Padding
	cw := max(w-pad.Left-pad.Right, 0)
	ch := max(h-pad.Top-pad.Bottom, 0)
	row := n.Style.Direction == Row

	cursor := pad.Top
	if row {
		cursor = pad.Left
	}
	for i, c := range n.children {
		if i > 0 {
			cursor += n.Style.Gap
		}
		m := c.Style.Margin
		if row {
			cw2 := size(c, c.Style.Width, cw, true)
			ch2, ok := c.Style.Height.resolve(ch)
			if !ok {
				ch2 = ch - m.Top - m.Bottom
			}
			place(c, cursor+m.Left, pad.Top+m.Top, cw2, ch2)
			cursor += m.Left + cw2 + m.Right
			continue
		}
		cw2, ok := c.Style.Width.resolve(cw)
		if !ok {
			cw2 = cw - m.Left - m.Right
		}
		ch2 := size(c, c.Style.Height, ch, false)
		place(c, pad.Left+m.Left, cursor+m.Top, cw2, ch2)
		cursor += m.Top + ch2 + m.Bottom
	}
}

// size resolves v against parent, falling back to n's content size
func size(n *Node, v Value, parent float32, horizontal bool) float32 {
	if s, ok := v.resolve(parent); ok {
		return s
	}
	return measure(n, horizontal)
}

// measure returns the content size of n along one axis
func measure(n *Node, horizontal bool) float32 {
	pad := n.Style.Padding
	total := pad.Top + pad.Bottom
	if horizontal {
		total = pad.Left + pad.Right
	}
	alongMain := (n.Style.Direction == Row) == horizontal

	var acc float32
	for i, c := range n.children {
		m := c.Style.Margin
		v := c.Style.Height
		lead, trail := m.Top, m.Bottom
		if horizontal {
			v = c.Style.Width
			lead, trail = m.Left, m.Right
		}
		// percentages have nothing to resolve against while measuring
		s := v.Value
		if v.Unit != Points {
			s = measure(c, horizontal)
		}
		extent := lead + s + trail
		if alongMain {
			if i > 0 {
				acc += n.Style.Gap
			}
			acc += extent
		} else {
			acc = max(acc, extent)
		}
	}
	return total + acc
}
