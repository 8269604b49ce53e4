package dom

import (
	"fmt"

	"github.com/GriffinCanCode/uihost/internal/store"
)

// Property identifies a style field a guest may set
type Property int32

const (
	WidthFixedPx Property = iota
	HeightFixedPx
	HeightFixedPercent
	BackgroundSolid
	SpacingFixedPx
	MarginFixedPx
	Event
	PaddingFixedPx
)

func (p Property) String() string {
	switch p {
	case WidthFixedPx:
		return "width-fixed-px"
	case HeightFixedPx:
		return "height-fixed-px"
	case HeightFixedPercent:
		return "height-fixed-percent"
	case BackgroundSolid:
		return "background-solid"
	case SpacingFixedPx:
		return "spacing-fixed-px"
	case MarginFixedPx:
		return "margin-fixed-px"
	case Event:
		return "event"
	case PaddingFixedPx:
		return "padding-fixed-px"
	default:
		return fmt.Sprintf("property(%d)", int32(p))
	}
}

// Known reports whether p is a recognized property
func (p Property) Known() bool {
	return p >= WidthFixedPx && p <= PaddingFixedPx
}

type valueKind uint8

const (
	numberValue valueKind = iota + 1
	colorValue
)

// Value is a literal property value
type Value struct {
	kind   valueKind
	number float32
	color  store.RGBA
}

// Number returns a numeric property value
func Number(v float32) Value {
	return Value{kind: numberValue, number: v}
}

// Color returns a color property value
func Color(c store.RGBA) Value {
	return Value{kind: colorValue, color: c}
}

// AsNumber returns the numeric payload
func (v Value) AsNumber() (float32, bool) {
	return v.number, v.kind == numberValue
}

// AsColor returns the color payload
func (v Value) AsColor() (store.RGBA, bool) {
	return v.color, v.kind == colorValue
}

// ValueOf reads a property value out of a store pointer. Integers and
// decimals become numbers; a four-member composite becomes a color.
func ValueOf(s *store.Store, p store.Pointer) (Value, error) {
	switch p.Kind {
	case store.Integer:
		v, err := s.Integer(p)
		if err != nil {
			return Value{}, err
		}
		return Number(float32(v)), nil
	case store.Decimal:
		v, err := s.Decimal(p)
		if err != nil {
			return Value{}, err
		}
		return Number(v), nil
	case store.Composite:
		c, err := s.Color(p)
		if err != nil {
			return Value{}, err
		}
		return Color(c), nil
	default:
		if !s.IsLive(p) {
			return Value{}, fmt.Errorf("%w: %s", store.ErrNotLive, p)
		}
		return Value{}, fmt.Errorf("%w: %s is not a property value", store.ErrKindMismatch, p)
	}
}

// PropertySet is a bitmask of properties
type PropertySet uint16

// With returns s with p set
func (s PropertySet) With(p Property) PropertySet {
	return s | 1<<uint(p)
}

// Has reports whether p is in s
func (s PropertySet) Has(p Property) bool {
	return s&(1<<uint(p)) != 0
}
