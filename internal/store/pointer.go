package store

import (
	"github.com/GriffinCanCode/uihost/internal/shared/slot"
)

// Kind is the value kind a Pointer refers to
type Kind uint8

const (
	Boolean Kind = iota + 1
	Integer
	Decimal
	Composite
	TaggedUnion
)

// Kinds lists every value kind in table order
var Kinds = []Kind{Boolean, Integer, Decimal, Composite, TaggedUnion}

// String returns the lowercase kind name
func (k Kind) String() string {
	switch k {
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Composite:
		return "composite"
	case TaggedUnion:
		return "tagged_union"
	default:
		return "unknown"
	}
}

// Valid reports whether k names a value kind
func (k Kind) Valid() bool {
	return k >= Boolean && k <= TaggedUnion
}

// Pointer is a typed handle into the store. Equality is structural.
type Pointer struct {
	Kind Kind
	Key  slot.Key
}

func (p Pointer) String() string {
	return p.Kind.String() + ":" + p.Key.String()
}

// SDep records that a node retains a pointer through Source. A pointer
// attached directly to a node carries itself as Source.
type SDep struct {
	Node   slot.Key
	Source Pointer
}

// RGBA is the decoded payload of a color composite
type RGBA struct {
	R int32   `json:"r"`
	G int32   `json:"g"`
	B int32   `json:"b"`
	A float32 `json:"a"`
}
