package abi

import (
	"math"

	"github.com/GriffinCanCode/uihost/internal/dom"
)

// ModuleName is the import module every guest links against
const ModuleName = "fastn"

// ValueType uses the WebAssembly binary encoding so engines can map it directly
type ValueType byte

const (
	I32 ValueType = 0x7f
	F32 ValueType = 0x7d
	Ref ValueType = 0x6f
)

// Import is one host function. Arguments and the optional result use the raw
// WebAssembly stack encoding: i32 as its low 32 bits, f32 as IEEE bits and
// externref as the handle itself.
type Import struct {
	Name    string
	Params  []ValueType
	Results []ValueType
	Fn      func(h *Host, args []uint64) (uint64, error)
}

func i32(v uint64) int32 { return int32(uint32(v)) }

func f32(v uint64) float32 { return math.Float32frombits(uint32(v)) }

func ref(v uint64) Handle { return Handle(v) }

func fromI32(v int32) uint64 { return uint64(uint32(v)) }

func fromF32(v float32) uint64 { return uint64(math.Float32bits(v)) }

func handle(h Handle, err error) (uint64, error) {
	return uint64(h), err
}

func none(err error) (uint64, error) {
	return 0, err
}

func params(vs ...ValueType) []ValueType { return vs }

// Imports lists the fastn host functions in a stable order
var Imports = []Import{
	{"create_boolean", params(I32), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateBoolean(i32(a[0])))
	}},
	{"create_i32", params(I32), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateI32(i32(a[0])))
	}},
	{"create_f32", params(F32), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateF32(f32(a[0])))
	}},
	{"create_rgba", params(I32, I32, I32, F32), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateRGBA(i32(a[0]), i32(a[1]), i32(a[2]), f32(a[3])))
	}},
	{"create_list_1", params(Ref), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateList(ref(a[0])))
	}},
	{"create_list_2", params(Ref, Ref), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateList(ref(a[0]), ref(a[1])))
	}},
	{"create_or_type_0", params(I32), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateOrType(i32(a[0])))
	}},
	{"create_or_type_1", params(I32, Ref), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateOrType(i32(a[0]), ref(a[1])))
	}},
	{"create_frame", nil, nil, func(h *Host, _ []uint64) (uint64, error) {
		h.CreateFrame()
		return 0, nil
	}},
	{"end_frame", nil, nil, func(h *Host, _ []uint64) (uint64, error) {
		return none(h.EndFrame())
	}},
	{"return_frame", params(Ref), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.ReturnFrame(ref(a[0])))
	}},
	{"get_boolean", params(Ref), params(I32), func(h *Host, a []uint64) (uint64, error) {
		v, err := h.GetBoolean(ref(a[0]))
		return fromI32(v), err
	}},
	{"get_i32", params(Ref), params(I32), func(h *Host, a []uint64) (uint64, error) {
		v, err := h.GetI32(ref(a[0]))
		return fromI32(v), err
	}},
	{"get_f32", params(Ref), params(F32), func(h *Host, a []uint64) (uint64, error) {
		v, err := h.GetF32(ref(a[0]))
		return fromF32(v), err
	}},
	{"set_boolean", params(Ref, I32), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.SetBoolean(ref(a[0]), i32(a[1])))
	}},
	{"set_i32", params(Ref, I32), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.SetI32(ref(a[0]), i32(a[1])))
	}},
	{"set_f32", params(Ref, F32), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.SetF32(ref(a[0]), f32(a[1])))
	}},
	{"get_func_arg_i32", params(Ref, I32), params(I32), func(h *Host, a []uint64) (uint64, error) {
		v, err := h.GetFuncArgI32(ref(a[0]), i32(a[1]))
		return fromI32(v), err
	}},
	{"get_func_arg_f32", params(Ref, I32), params(F32), func(h *Host, a []uint64) (uint64, error) {
		v, err := h.GetFuncArgF32(ref(a[0]), i32(a[1]))
		return fromF32(v), err
	}},
	{"get_func_arg_ref", params(Ref, I32), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.FuncArg(ref(a[0]), i32(a[1])))
	}},
	{"root_container", nil, params(Ref), func(h *Host, _ []uint64) (uint64, error) {
		return handle(h.RootContainer())
	}},
	{"create_kernel", params(Ref, I32), params(Ref), func(h *Host, a []uint64) (uint64, error) {
		return handle(h.CreateKernel(ref(a[0]), i32(a[1])))
	}},
	{"add_child", params(Ref, Ref), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.AddChild(ref(a[0]), ref(a[1])))
	}},
	{"destroy_kernel", params(Ref), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.DestroyKernel(ref(a[0])))
	}},
	{"set_i32_prop", params(Ref, I32, I32), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.SetProperty(ref(a[0]), i32(a[1]), dom.Number(float32(i32(a[2])))))
	}},
	{"set_f32_prop", params(Ref, I32, F32), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.SetProperty(ref(a[0]), i32(a[1]), dom.Number(f32(a[2]))))
	}},
	{"set_ref_prop", params(Ref, I32, Ref), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.SetRefProperty(ref(a[0]), i32(a[1]), ref(a[2])))
	}},
	{"set_dynamic_i32_prop", params(Ref, I32, I32, Ref, I32), nil, func(h *Host, a []uint64) (uint64, error) {
		initial := dom.Number(float32(i32(a[4])))
		return none(h.SetDynamicProperty(ref(a[0]), i32(a[1]), i32(a[2]), ref(a[3]), initial))
	}},
	{"set_dynamic_ref_prop", params(Ref, I32, I32, Ref, Ref), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.SetDynamicRefProperty(ref(a[0]), i32(a[1]), i32(a[2]), ref(a[3]), ref(a[4])))
	}},
	{"attach_event_handler", params(Ref, I32, I32, Ref), nil, func(h *Host, a []uint64) (uint64, error) {
		return none(h.AttachEventHandler(ref(a[0]), i32(a[1]), i32(a[2]), ref(a[3])))
	}},
}

// Lookup finds an import by name
func Lookup(name string) (Import, bool) {
	for _, imp := range Imports {
		if imp.Name == name {
			return imp, true
		}
	}
	return Import{}, false
}
