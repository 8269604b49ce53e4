package dom

import (
	"fmt"

	"github.com/GriffinCanCode/uihost/internal/layout"
	"github.com/GriffinCanCode/uihost/internal/shared/slot"
	"github.com/GriffinCanCode/uihost/internal/store"
)

// NodeKey identifies a node. Its String form is the stable external handle.
type NodeKey = slot.Key

// ParseNodeKey parses the string form of a NodeKey
func ParseNodeKey(s string) (NodeKey, error) {
	return slot.ParseKey(s)
}

// Kind is the kernel kind a guest asks for
type Kind int32

const (
	Column Kind = iota
	Row
	Text
	Image
	Container
)

// ParseKind validates a guest-supplied kernel kind
func ParseKind(v int32) (Kind, error) {
	k := Kind(v)
	if k < Column || k > Container {
		return 0, fmt.Errorf("%w: %d", ErrUnknownKind, v)
	}
	return k, nil
}

func (k Kind) String() string {
	switch k {
	case Column:
		return "column"
	case Row:
		return "row"
	case Text:
		return "text"
	case Image:
		return "image"
	case Container:
		return "container"
	default:
		return "unknown"
	}
}

// Element reports the payload category: container, text or image
func (k Kind) Element() string {
	switch k {
	case Text, Image:
		return k.String()
	default:
		return "container"
	}
}

// Style holds the style fields of a node
type Style struct {
	Width      layout.Value
	Height     layout.Value
	Background *store.RGBA
	Padding    float32
	Spacing    float32
	Margin     float32
	Dynamic    PropertySet
}

type element struct {
	kind  Kind
	style Style
	box   *layout.Node
}

func newElement(kind Kind) *element {
	box := layout.NewNode()
	if kind == Row {
		box.Style.Direction = layout.Row
	}
	return &element{kind: kind, box: box}
}

// apply writes v into the style field for p and mirrors layout-affecting
// fields into the box. Unknown properties and mismatched value types are
// ignored.
func (e *element) apply(p Property, v Value) {
	if p == BackgroundSolid {
		if c, ok := v.AsColor(); ok {
			e.style.Background = &c
		}
		return
	}
	n, ok := v.AsNumber()
	if !ok {
		return
	}
	switch p {
	case WidthFixedPx:
		e.style.Width = layout.Px(n)
		e.box.Style.Width = e.style.Width
	case HeightFixedPx:
		e.style.Height = layout.Px(n)
		e.box.Style.Height = e.style.Height
	case HeightFixedPercent:
		e.style.Height = layout.Pct(n)
		e.box.Style.Height = e.style.Height
	case SpacingFixedPx:
		e.style.Spacing = n
		e.box.Style.Gap = n
	case MarginFixedPx:
		e.style.Margin = n
		e.box.Style.Margin = layout.All(n)
	case PaddingFixedPx:
		e.style.Padding = n
		e.box.Style.Padding = layout.All(n)
	}
}
