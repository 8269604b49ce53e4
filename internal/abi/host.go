package abi

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/uihost/internal/dom"
	"github.com/GriffinCanCode/uihost/internal/store"
)

// ErrFrameUnderflow is returned when a guest closes a frame it did not open
var ErrFrameUnderflow = errors.New("guest closed a frame it did not open")

// Host implements the fastn imports against one document. It is driven by
// a single guest call at a time.
type Host struct {
	doc   *dom.Document
	store *store.Store
	base  int
}

// NewHost binds the imports to doc
func NewHost(doc *dom.Document) *Host {
	return &Host{doc: doc, store: doc.Store()}
}

// Document returns the bound document
func (h *Host) Document() *dom.Document {
	return h.doc
}

// Enter opens the host frame that brackets one guest call. Frames opened
// by the guest nest inside it.
func (h *Host) Enter() {
	h.store.OpenFrame()
	h.base = h.store.Depth()
}

// Leave closes any frames the guest left open plus the host frame and
// returns the number of pointers reclaimed
func (h *Host) Leave() int {
	if h.base == 0 {
		return 0
	}
	freed := 0
	for h.store.Depth() >= h.base && h.store.Depth() > 0 {
		freed += h.store.CloseFrame()
	}
	h.base = 0
	return freed
}

func (h *Host) pointer(ref Handle) (store.Pointer, error) {
	p, err := ref.Pointer()
	if err != nil {
		return store.Pointer{}, err
	}
	if !h.store.IsLive(p) {
		return store.Pointer{}, fmt.Errorf("%w: %s", store.ErrNotLive, p)
	}
	return p, nil
}

func (h *Host) node(ref Handle) (dom.NodeKey, error) {
	k, err := ref.Node()
	if err != nil {
		return dom.NodeKey{}, err
	}
	if !h.doc.Contains(k) {
		return dom.NodeKey{}, fmt.Errorf("%w: %s", dom.ErrNodeNotLive, k)
	}
	return k, nil
}

// ============================================================================
// Values
// ============================================================================

// CreateBoolean allocates a boolean; any non-zero input is true
func (h *Host) CreateBoolean(v int32) (Handle, error) {
	return PointerHandle(h.store.CreateBoolean(v != 0))
}

// CreateI32 allocates an integer
func (h *Host) CreateI32(v int32) (Handle, error) {
	return PointerHandle(h.store.CreateInteger(v))
}

// CreateF32 allocates a decimal
func (h *Host) CreateF32(v float32) (Handle, error) {
	return PointerHandle(h.store.CreateDecimal(v))
}

// CreateRGBA allocates a color composite
func (h *Host) CreateRGBA(r, g, b int32, a float32) (Handle, error) {
	return PointerHandle(h.store.CreateRGBA(store.RGBA{R: r, G: g, B: b, A: a}))
}

// CreateList allocates a composite over existing values
func (h *Host) CreateList(refs ...Handle) (Handle, error) {
	members := make([]store.Pointer, 0, len(refs))
	for _, ref := range refs {
		p, err := h.pointer(ref)
		if err != nil {
			return 0, err
		}
		members = append(members, p)
	}
	p, err := h.store.CreateComposite(members...)
	if err != nil {
		return 0, err
	}
	return PointerHandle(p)
}

// CreateOrType allocates a tagged union
func (h *Host) CreateOrType(variant int32, refs ...Handle) (Handle, error) {
	if variant < 0 || variant > 255 {
		return 0, fmt.Errorf("%w: variant %d out of range", ErrBadHandle, variant)
	}
	payload := make([]store.Pointer, 0, len(refs))
	for _, ref := range refs {
		p, err := h.pointer(ref)
		if err != nil {
			return 0, err
		}
		payload = append(payload, p)
	}
	p, err := h.store.CreateUnion(uint8(variant), payload...)
	if err != nil {
		return 0, err
	}
	return PointerHandle(p)
}

// CreateFrame opens a guest frame
func (h *Host) CreateFrame() {
	h.store.OpenFrame()
}

// EndFrame closes the innermost guest frame
func (h *Host) EndFrame() error {
	if h.store.Depth() <= h.base {
		return ErrFrameUnderflow
	}
	h.store.CloseFrame()
	return nil
}

// ReturnFrame hands ref to the enclosing frame
func (h *Host) ReturnFrame(ref Handle) (Handle, error) {
	p, err := h.pointer(ref)
	if err != nil {
		return 0, err
	}
	if h.store.Depth() <= h.base {
		return 0, ErrFrameUnderflow
	}
	if _, err := h.store.ReturnFrame(p); err != nil {
		return 0, err
	}
	return ref, nil
}

// GetBoolean reads a boolean as 0 or 1
func (h *Host) GetBoolean(ref Handle) (int32, error) {
	p, err := ref.Pointer()
	if err != nil {
		return 0, err
	}
	v, err := h.store.Boolean(p)
	if err != nil || !v {
		return 0, err
	}
	return 1, nil
}

// GetI32 reads an integer
func (h *Host) GetI32(ref Handle) (int32, error) {
	p, err := ref.Pointer()
	if err != nil {
		return 0, err
	}
	return h.store.Integer(p)
}

// GetF32 reads a decimal
func (h *Host) GetF32(ref Handle) (float32, error) {
	p, err := ref.Pointer()
	if err != nil {
		return 0, err
	}
	return h.store.Decimal(p)
}

// SetBoolean overwrites a boolean
func (h *Host) SetBoolean(ref Handle, v int32) error {
	p, err := ref.Pointer()
	if err != nil {
		return err
	}
	return h.store.SetBoolean(p, v != 0)
}

// SetI32 overwrites an integer
func (h *Host) SetI32(ref Handle, v int32) error {
	p, err := ref.Pointer()
	if err != nil {
		return err
	}
	return h.store.SetInteger(p, v)
}

// SetF32 overwrites a decimal
func (h *Host) SetF32(ref Handle, v float32) error {
	p, err := ref.Pointer()
	if err != nil {
		return err
	}
	return h.store.SetDecimal(p, v)
}

// FuncArg returns the idx-th member of a composite argument bundle
func (h *Host) FuncArg(ref Handle, idx int32) (Handle, error) {
	p, err := ref.Pointer()
	if err != nil {
		return 0, err
	}
	m, err := h.store.Member(p, int(idx))
	if err != nil {
		return 0, err
	}
	return PointerHandle(m)
}

// GetFuncArgI32 reads the idx-th member of a composite as an integer
func (h *Host) GetFuncArgI32(ref Handle, idx int32) (int32, error) {
	m, err := h.FuncArg(ref, idx)
	if err != nil {
		return 0, err
	}
	return h.GetI32(m)
}

// GetFuncArgF32 reads the idx-th member of a composite as a decimal
func (h *Host) GetFuncArgF32(ref Handle, idx int32) (float32, error) {
	m, err := h.FuncArg(ref, idx)
	if err != nil {
		return 0, err
	}
	return h.GetF32(m)
}

// ============================================================================
// Document
// ============================================================================

// RootContainer returns the document root
func (h *Host) RootContainer() (Handle, error) {
	return NodeHandle(h.doc.Root())
}

// CreateKernel creates a node under parent
func (h *Host) CreateKernel(parent Handle, kind int32) (Handle, error) {
	pk, err := h.node(parent)
	if err != nil {
		return 0, err
	}
	k, err := dom.ParseKind(kind)
	if err != nil {
		return 0, err
	}
	key, err := h.doc.CreateKernel(pk, k)
	if err != nil {
		return 0, err
	}
	return NodeHandle(key)
}

// AddChild moves child under parent
func (h *Host) AddChild(parent, child Handle) error {
	pk, err := h.node(parent)
	if err != nil {
		return err
	}
	ck, err := h.node(child)
	if err != nil {
		return err
	}
	return h.doc.AddChild(pk, ck)
}

// DestroyKernel removes a node and its subtree
func (h *Host) DestroyKernel(ref Handle) error {
	k, err := h.node(ref)
	if err != nil {
		return err
	}
	_, err = h.doc.Destroy(k)
	return err
}

// SetProperty writes a literal value
func (h *Host) SetProperty(ref Handle, prop int32, v dom.Value) error {
	k, err := h.node(ref)
	if err != nil {
		return err
	}
	return h.doc.SetProperty(k, dom.Property(prop), v)
}

// SetRefProperty writes the value held by a store pointer
func (h *Host) SetRefProperty(ref Handle, prop int32, value Handle) error {
	v, err := h.value(value)
	if err != nil {
		return err
	}
	return h.SetProperty(ref, prop, v)
}

// SetDynamicProperty binds prop to a guest closure over captured
func (h *Host) SetDynamicProperty(ref Handle, prop, tableIndex int32, captured Handle, initial dom.Value) error {
	k, err := h.node(ref)
	if err != nil {
		return err
	}
	p, err := h.pointer(captured)
	if err != nil {
		return err
	}
	return h.doc.SetDynamicProperty(k, dom.Property(prop), dom.Closure{TableIndex: tableIndex, Captured: p}, initial)
}

// SetDynamicRefProperty is SetDynamicProperty with the initial value read from a pointer
func (h *Host) SetDynamicRefProperty(ref Handle, prop, tableIndex int32, captured, initial Handle) error {
	v, err := h.value(initial)
	if err != nil {
		return err
	}
	return h.SetDynamicProperty(ref, prop, tableIndex, captured, v)
}

// AttachEventHandler registers a guest closure for event on a node
func (h *Host) AttachEventHandler(ref Handle, event, tableIndex int32, captured Handle) error {
	k, err := h.node(ref)
	if err != nil {
		return err
	}
	p, err := h.pointer(captured)
	if err != nil {
		return err
	}
	return h.doc.AttachEventHandler(k, event, dom.Closure{TableIndex: tableIndex, Captured: p})
}

func (h *Host) value(ref Handle) (dom.Value, error) {
	p, err := ref.Pointer()
	if err != nil {
		return dom.Value{}, err
	}
	return dom.ValueOf(h.store, p)
}
