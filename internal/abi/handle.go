package abi

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/shared/slot"
	"github.com/GriffinCanCode/uihost/internal/store"
)

var (
	// ErrNullHandle is returned when the guest passes a null reference
	ErrNullHandle = errors.New("null handle")
	// ErrBadHandle is returned for a handle the host never issued
	ErrBadHandle = errors.New("malformed handle")
	// ErrHandleSpace is returned when a slot index does not fit in a handle
	ErrHandleSpace = errors.New("handle index space exhausted")
)

const (
	nodeTag  = 0x80
	maxIndex = 1<<24 - 1
)

// Handle is the opaque reference a guest holds. It packs
// generation:32 | index:24 | tag:8 and is never zero.
type Handle uint64

func pack(tag uint8, k slot.Key) (Handle, error) {
	if k.Index > maxIndex {
		return 0, fmt.Errorf("%w: index %d", ErrHandleSpace, k.Index)
	}
	return Handle(uint64(k.Gen)<<32 | uint64(k.Index)<<8 | uint64(tag)), nil
}

func (h Handle) tag() uint8 {
	return uint8(h)
}

func (h Handle) key() slot.Key {
	return slot.Key{Index: uint32(h>>8) & maxIndex, Gen: uint32(h >> 32)}
}

// PointerHandle packs a store pointer
func PointerHandle(p store.Pointer) (Handle, error) {
	return pack(uint8(p.Kind), p.Key)
}

// NodeHandle packs a node key
func NodeHandle(k dom.NodeKey) (Handle, error) {
	return pack(nodeTag, k)
}

func (h Handle) check() error {
	if h == 0 {
		return ErrNullHandle
	}
	if h.key().IsZero() {
		return fmt.Errorf("%w: %#x", ErrBadHandle, uint64(h))
	}
	return nil
}

// Pointer unpacks a pointer handle
func (h Handle) Pointer() (store.Pointer, error) {
	if err := h.check(); err != nil {
		return store.Pointer{}, err
	}
	k := store.Kind(h.tag())
	if !k.Valid() {
		return store.Pointer{}, fmt.Errorf("%w: %#x is not a value", ErrBadHandle, uint64(h))
	}
	return store.Pointer{Kind: k, Key: h.key()}, nil
}

// Node unpacks a node handle
func (h Handle) Node() (dom.NodeKey, error) {
	if err := h.check(); err != nil {
		return dom.NodeKey{}, err
	}
	if h.tag() != nodeTag {
		return dom.NodeKey{}, fmt.Errorf("%w: %#x is not a node", ErrBadHandle, uint64(h))
	}
	return h.key(), nil
}

// IsNode reports whether h carries the node tag
func (h Handle) IsNode() bool {
	return h.tag() == nodeTag
}
