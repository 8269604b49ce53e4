package dom

import (
	"fmt"
	"sort"

	"github.com/GriffinCanCode/uihost/internal/store"
)

// Closure is a guest function-table entry plus the pointer it captured
type Closure struct {
	TableIndex int32
	Captured   store.Pointer
}

// Binding is a dynamic property of one node
type Binding struct {
	Node     NodeKey
	Property Property
	Closure  Closure
}

// SetDynamicProperty applies initial, then binds p on key to closure and
// attaches the captured pointer to key. A previous binding for the same
// property is released. Unknown properties and Event are applied but never
// bound.
func (d *Document) SetDynamicProperty(key NodeKey, p Property, closure Closure, initial Value) error {
	e, err := d.element(key)
	if err != nil {
		return err
	}
	if !d.store.IsLive(closure.Captured) {
		return fmt.Errorf("%w: %s", store.ErrNotLive, closure.Captured)
	}

	e.apply(p, initial)
	if !p.Known() || p == Event {
		return nil
	}
	byProp := d.bindings[key]
	if byProp == nil {
		byProp = make(map[Property]Closure)
		d.bindings[key] = byProp
	}
	old, replaced := byProp[p]
	byProp[p] = closure
	e.style.Dynamic = e.style.Dynamic.With(p)

	if err := d.store.Attach(key, closure.Captured); err != nil {
		return err
	}
	if replaced {
		d.store.Detach(key, old.Captured)
	}
	return nil
}

// AttachEventHandler records closure as the handler for event on key and
// attaches its captured pointer. A previous handler for the event is
// released.
func (d *Document) AttachEventHandler(key NodeKey, event int32, closure Closure) error {
	if _, err := d.element(key); err != nil {
		return err
	}
	if err := d.store.Attach(key, closure.Captured); err != nil {
		return err
	}
	byEvent := d.handlers[key]
	if byEvent == nil {
		byEvent = make(map[int32]Closure)
		d.handlers[key] = byEvent
	}
	if old, ok := byEvent[event]; ok {
		d.store.Detach(key, old.Captured)
	}
	byEvent[event] = closure
	return nil
}

// Handler returns the event handler registered for event on key
func (d *Document) Handler(key NodeKey, event int32) (Closure, bool) {
	c, ok := d.handlers[key][event]
	return c, ok
}

// Bindings returns every dynamic binding ordered by node then property
func (d *Document) Bindings() []Binding {
	var out []Binding
	for key, byProp := range d.bindings {
		for p, c := range byProp {
			out = append(out, Binding{Node: key, Property: p, Closure: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Node.Index != b.Node.Index {
			return a.Node.Index < b.Node.Index
		}
		return a.Property < b.Property
	})
	return out
}

// DirtyBindings returns the bindings whose captured value changed since the
// store's dirty marks were last cleared
func (d *Document) DirtyBindings() []Binding {
	var out []Binding
	for _, b := range d.Bindings() {
		if d.store.IsDirty(b.Closure.Captured) {
			out = append(out, b)
		}
	}
	return out
}

// ApplyBinding writes a recomputed value for b. Bindings whose node was
// destroyed or rebound in the meantime are skipped.
func (d *Document) ApplyBinding(b Binding, v Value) error {
	cur, ok := d.bindings[b.Node][b.Property]
	if !ok || cur != b.Closure {
		return nil
	}
	return d.SetProperty(b.Node, b.Property, v)
}
