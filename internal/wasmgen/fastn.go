package wasmgen

import (
	"fmt"

	"github.com/GriffinCanCode/uihost/internal/abi"
)

// Guest is a module that imports the whole fastn table up front
type Guest struct {
	*Module
	imports map[string]uint32
}

// NewGuest returns a module with every fastn import declared
func NewGuest() *Guest {
	g := &Guest{Module: New(), imports: make(map[string]uint32, len(abi.Imports))}
	for _, imp := range abi.Imports {
		g.imports[imp.Name] = g.Import(abi.ModuleName, imp.Name, convert(imp.Params), convert(imp.Results))
	}
	return g
}

// Fn returns the function index of a fastn import
func (g *Guest) Fn(name string) uint32 {
	idx, ok := g.imports[name]
	if !ok {
		panic(fmt.Sprintf("wasmgen: unknown fastn import %q", name))
	}
	return idx
}

// Dispatchers exports call_by_index and call_by_index_ref, which forward to
// the function table with signatures (externref) -> i32 and
// (externref) -> externref
func (g *Guest) Dispatchers() {
	numeric := g.Type(Vals(ExternRef), Vals(I32))
	g.Export("call_by_index", g.Func(Vals(I32, ExternRef), Vals(I32), nil,
		NewCode().LocalGet(1).LocalGet(0).CallIndirect(numeric)))

	ref := g.Type(Vals(ExternRef), Vals(ExternRef))
	g.Export("call_by_index_ref", g.Func(Vals(I32, ExternRef), Vals(ExternRef), nil,
		NewCode().LocalGet(1).LocalGet(0).CallIndirect(ref)))
}

func convert(vs []abi.ValueType) []ValType {
	out := make([]ValType, len(vs))
	for i, v := range vs {
		out[i] = ValType(v)
	}
	return out
}
