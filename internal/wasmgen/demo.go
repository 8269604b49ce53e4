package wasmgen

import "github.com/GriffinCanCode/uihost/internal/dom"

// Counter builds the demo guest served when no guests are configured. It
// lays out a padded column holding two boxes whose width and color are
// bound to one counter; clicking the first box adds 10 to the counter.
func Counter() []byte {
	g := NewGuest()

	// table slot 0: width = counter * 2
	width := g.Func(Vals(ExternRef), Vals(I32), nil, NewCode().
		LocalGet(0).Call(g.Fn("get_i32")).
		I32Const(2).I32Mul())

	// table slot 1: counter += 10
	click := g.Func(Vals(ExternRef), Vals(I32), nil, NewCode().
		LocalGet(0).
		LocalGet(0).Call(g.Fn("get_i32")).I32Const(10).I32Add().
		Call(g.Fn("set_i32")).
		I32Const(0))

	// table slot 2: rgba(counter, 80, 160, 1)
	tint := g.Func(Vals(ExternRef), Vals(ExternRef), nil, NewCode().
		LocalGet(0).Call(g.Fn("get_i32")).
		I32Const(80).I32Const(160).F32Const(1).
		Call(g.Fn("create_rgba")))

	slots := g.Table(width, click, tint)
	g.Dispatchers()

	const (
		root = iota
		col
		counter
		first
		second
	)
	prop := func(c *Code, node uint32, p dom.Property, v int32) *Code {
		return c.LocalGet(node).I32Const(int32(p)).I32Const(v).Call(g.Fn("set_i32_prop"))
	}

	body := NewCode().
		LocalGet(root).I32Const(int32(dom.Column)).Call(g.Fn("create_kernel")).LocalSet(col)
	prop(body, col, dom.PaddingFixedPx, 10)
	prop(body, col, dom.SpacingFixedPx, 8)

	body.I32Const(40).Call(g.Fn("create_i32")).LocalSet(counter)

	body.LocalGet(col).I32Const(int32(dom.Container)).Call(g.Fn("create_kernel")).LocalSet(first)
	prop(body, first, dom.HeightFixedPx, 30)
	body.LocalGet(first).I32Const(int32(dom.BackgroundSolid)).
		I32Const(30).I32Const(120).I32Const(200).F32Const(1).Call(g.Fn("create_rgba")).
		Call(g.Fn("set_ref_prop"))
	body.LocalGet(first).I32Const(int32(dom.WidthFixedPx)).I32Const(slots[0]).
		LocalGet(counter).I32Const(80).Call(g.Fn("set_dynamic_i32_prop"))
	body.LocalGet(first).I32Const(0).I32Const(slots[1]).LocalGet(counter).
		Call(g.Fn("attach_event_handler"))

	body.LocalGet(col).I32Const(int32(dom.Row)).Call(g.Fn("create_kernel")).LocalSet(second)
	prop(body, second, dom.HeightFixedPx, 30)
	prop(body, second, dom.WidthFixedPx, 120)
	body.LocalGet(second).I32Const(int32(dom.BackgroundSolid)).I32Const(slots[2]).LocalGet(counter).
		I32Const(40).I32Const(80).I32Const(160).F32Const(1).Call(g.Fn("create_rgba")).
		Call(g.Fn("set_dynamic_ref_prop"))

	g.Export("main", g.Func(Vals(ExternRef), nil, Vals(ExternRef, ExternRef, ExternRef, ExternRef), body))
	return g.Bytes()
}
