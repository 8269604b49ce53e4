package dom

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/shared/slot"
	"github.com/GriffinCanCode/uihost/internal/store"
)

var (
	// ErrNodeNotLive is returned for a node key that does not resolve
	ErrNodeNotLive = errors.New("node not live")
	// ErrUnknownKind is returned for an unrecognized kernel kind
	ErrUnknownKind = errors.New("unknown kernel kind")
	// ErrCycle is returned when an edge would make a node its own ancestor
	ErrCycle = errors.New("edge would create a cycle")
	// ErrRootNode is returned for operations the root does not support
	ErrRootNode = errors.New("operation not allowed on the root node")
)

// Document is a node tree bound to a value store. Not safe for concurrent use.
type Document struct {
	store *store.Store
	nodes slot.Table[*element]

	children map[NodeKey][]NodeKey
	parent   map[NodeKey]NodeKey
	root     NodeKey

	bindings map[NodeKey]map[Property]Closure
	handlers map[NodeKey]map[int32]Closure

	logger *zap.Logger
}

// New creates a document with a root column
func New(s *store.Store) *Document {
	d := &Document{
		store:    s,
		children: make(map[NodeKey][]NodeKey),
		parent:   make(map[NodeKey]NodeKey),
		bindings: make(map[NodeKey]map[Property]Closure),
		handlers: make(map[NodeKey]map[int32]Closure),
		logger:   zap.NewNop(),
	}
	d.root = d.nodes.Insert(newElement(Column))
	return d
}

// WithLogger sets the document logger
func (d *Document) WithLogger(l *zap.Logger) *Document {
	if l != nil {
		d.logger = l
	}
	return d
}

// Store returns the value store backing the document
func (d *Document) Store() *store.Store {
	return d.store
}

// Root returns the root node
func (d *Document) Root() NodeKey {
	return d.root
}

// Len returns the number of live nodes, root included
func (d *Document) Len() int {
	return d.nodes.Len()
}

// Contains reports whether key names a live node
func (d *Document) Contains(key NodeKey) bool {
	return d.nodes.Contains(key)
}

func (d *Document) element(key NodeKey) (*element, error) {
	e, ok := d.nodes.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotLive, key)
	}
	return *e, nil
}

// CreateKernel creates a node of kind under parent
func (d *Document) CreateKernel(parent NodeKey, kind Kind) (NodeKey, error) {
	if _, err := d.element(parent); err != nil {
		return NodeKey{}, err
	}
	if kind < Column || kind > Container {
		return NodeKey{}, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	key := d.nodes.Insert(newElement(kind))
	if err := d.AddChild(parent, key); err != nil {
		d.nodes.Remove(key)
		return NodeKey{}, err
	}
	return key, nil
}

// AddChild makes child the last child of parent. A child already under
// parent stays where it is; a child under another parent is moved.
func (d *Document) AddChild(parent, child NodeKey) error {
	pe, err := d.element(parent)
	if err != nil {
		return err
	}
	ce, err := d.element(child)
	if err != nil {
		return err
	}
	if child == d.root {
		return ErrRootNode
	}
	for n := parent; ; {
		if n == child {
			return fmt.Errorf("%w: %s under %s", ErrCycle, child, parent)
		}
		up, ok := d.parent[n]
		if !ok {
			break
		}
		n = up
	}

	if old, ok := d.parent[child]; ok {
		if old == parent {
			return nil
		}
		d.unlink(old, child)
	}
	d.children[parent] = append(d.children[parent], child)
	d.parent[child] = parent
	pe.box.Append(ce.box)
	return nil
}

func (d *Document) unlink(parent, child NodeKey) {
	siblings := d.children[parent]
	for i, c := range siblings {
		if c == child {
			d.children[parent] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(d.children[parent]) == 0 {
		delete(d.children, parent)
	}
	delete(d.parent, child)
	if pe, ok := d.nodes.Get(parent); ok {
		if ce, ok := d.nodes.Get(child); ok {
			(*pe).box.Remove((*ce).box)
		}
	}
}

// Children returns the children of key in order
func (d *Document) Children(key NodeKey) []NodeKey {
	return append([]NodeKey(nil), d.children[key]...)
}

// Parent returns the parent of key; the root has none
func (d *Document) Parent(key NodeKey) (NodeKey, bool) {
	p, ok := d.parent[key]
	return p, ok
}

// SetProperty writes a literal style value. Unknown properties are ignored.
func (d *Document) SetProperty(key NodeKey, p Property, v Value) error {
	e, err := d.element(key)
	if err != nil {
		return err
	}
	e.apply(p, v)
	return nil
}

// Attach makes key retain ptr. A node that does not exist retains nothing.
func (d *Document) Attach(key NodeKey, ptr store.Pointer) error {
	if !d.nodes.Contains(key) {
		return nil
	}
	return d.store.Attach(key, ptr)
}

// Destroy removes key and its subtree, releasing everything the removed
// nodes retained. It returns the number of removed nodes.
func (d *Document) Destroy(key NodeKey) (int, error) {
	if _, err := d.element(key); err != nil {
		return 0, err
	}
	if key == d.root {
		return 0, ErrRootNode
	}
	if p, ok := d.parent[key]; ok {
		d.unlink(p, key)
	}
	return d.destroy(key), nil
}

// Clear destroys every node below the root and releases the root's own
// attachments. The document stays usable.
func (d *Document) Clear() int {
	n := 0
	for _, c := range d.Children(d.root) {
		d.unlink(d.root, c)
		n += d.destroy(c)
	}
	d.release(d.root)
	return n
}

func (d *Document) destroy(key NodeKey) int {
	n := 1
	for _, c := range d.children[key] {
		delete(d.parent, c)
		n += d.destroy(c)
	}
	delete(d.children, key)
	d.release(key)
	d.nodes.Remove(key)
	return n
}

func (d *Document) release(key NodeKey) {
	delete(d.bindings, key)
	delete(d.handlers, key)
	if freed := d.store.DetachAll(key); freed > 0 {
		d.logger.Debug("Released node values", zap.String("node", key.String()), zap.Int("freed", freed))
	}
}

// NodeInfo describes a node for remote peers
type NodeInfo struct {
	Key      string   `json:"key"`
	Kind     string   `json:"kind"`
	Element  string   `json:"element"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children"`
	Dynamic  []string `json:"dynamic,omitempty"`
	Style    Style    `json:"-"`
}

// Node returns a description of key
func (d *Document) Node(key NodeKey) (NodeInfo, error) {
	e, err := d.element(key)
	if err != nil {
		return NodeInfo{}, err
	}
	info := NodeInfo{
		Key:      key.String(),
		Kind:     e.kind.String(),
		Element:  e.kind.Element(),
		Children: make([]string, 0, len(d.children[key])),
		Style:    e.style,
	}
	if p, ok := d.parent[key]; ok {
		info.Parent = p.String()
	}
	for _, c := range d.children[key] {
		info.Children = append(info.Children, c.String())
	}
	for p := WidthFixedPx; p <= PaddingFixedPx; p++ {
		if e.style.Dynamic.Has(p) {
			info.Dynamic = append(info.Dynamic, p.String())
		}
	}
	return info, nil
}

// Lookup resolves the string form of a node key to a live node
func (d *Document) Lookup(s string) (NodeKey, error) {
	key, err := ParseNodeKey(s)
	if err != nil {
		return NodeKey{}, err
	}
	if !d.nodes.Contains(key) {
		return NodeKey{}, fmt.Errorf("%w: %s", ErrNodeNotLive, s)
	}
	return key, nil
}
