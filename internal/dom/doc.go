// Package dom implements the document tree a guest program builds.
//
// Every node has a generation-stamped key whose {index}v{gen} string form
// is the only node identifier exposed outside the host. Each node owns a
// layout box; parent/child edges are kept in the document's adjacency list
// and mirrored into the layout tree.
//
// Style properties are written either as literals (SetProperty) or as
// dynamic bindings (SetDynamicProperty), which keep a closure over a
// captured store pointer. A binding attaches its pointer to the node so the
// value survives frame reclamation until the node is destroyed or the
// binding is replaced.
//
// Layout walks the tree, computes geometry and returns a flat list of paint
// operations. RenderHTML produces a sanitized HTML snapshot.
package dom
