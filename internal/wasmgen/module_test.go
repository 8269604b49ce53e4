package wasmgen

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/GriffinCanCode/uihost/internal/abi"
)

func TestLEB128(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-1, []byte{0x7f}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tt := range tests {
		var b bytes.Buffer
		putI32(&b, tt.v)
		assert.Equal(t, tt.want, b.Bytes(), "%d", tt.v)
	}

	var b bytes.Buffer
	putU32(&b, 300)
	assert.Equal(t, []byte{0xac, 0x02}, b.Bytes())
}

func TestTypeDeduplication(t *testing.T) {
	m := New()
	a := m.Type(Vals(I32), Vals(ExternRef))
	b := m.Type(Vals(I32), Vals(ExternRef))
	c := m.Type(Vals(ExternRef), nil)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEmptyModule(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, New().Bytes())
}

func TestImportAfterFuncPanics(t *testing.T) {
	m := New()
	m.Func(nil, nil, nil, NewCode())
	assert.Panics(t, func() { m.Import("env", "f", nil, nil) })
}

func TestModuleRuns(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	m := New()
	double := m.Func(Vals(I32), Vals(I32), nil, NewCode().LocalGet(0).I32Const(2).I32Mul())
	inc := m.Func(Vals(I32), Vals(I32), nil, NewCode().LocalGet(0).I32Const(1).I32Add())
	slots := m.Table(double, inc)
	sig := m.Type(Vals(I32), Vals(I32))
	m.Export("dispatch", m.Func(Vals(I32, I32), Vals(I32), Vals(I32), NewCode().
		LocalGet(1).LocalGet(0).CallIndirect(sig).LocalSet(2).LocalGet(2)))

	inst, err := r.Instantiate(ctx, m.Bytes())
	require.NoError(t, err)

	out, err := inst.ExportedFunction("dispatch").Call(ctx, uint64(slots[0]), 21)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), out[0])

	out, err = inst.ExportedFunction("dispatch").Call(ctx, uint64(slots[1]), api.EncodeI32(-5))
	require.NoError(t, err)
	assert.Equal(t, int32(-4), api.DecodeI32(out[0]))
}

func TestCounterCompiles(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, Counter())
	require.NoError(t, err)

	imports := compiled.ImportedFunctions()
	assert.Len(t, imports, len(abi.Imports))
	for _, f := range imports {
		mod, _, _ := f.Import()
		assert.Equal(t, abi.ModuleName, mod)
	}

	exports := compiled.ExportedFunctions()
	for _, name := range []string{"main", "call_by_index", "call_by_index_ref"} {
		assert.Contains(t, exports, name)
	}
	assert.Equal(t, []api.ValueType{api.ValueTypeExternref}, exports["main"].ParamTypes())
}

func TestDispatchersWithoutTableCompile(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	g := NewGuest()
	g.Dispatchers()
	compiled, err := r.CompileModule(ctx, g.Bytes())
	require.NoError(t, err, "call_indirect needs a table even when it is empty")
	assert.Contains(t, compiled.ExportedFunctions(), "call_by_index")
	assert.NotContains(t, compiled.ExportedFunctions(), "main")
}

func TestUnknownFastnImportPanics(t *testing.T) {
	g := NewGuest()
	assert.Panics(t, func() { g.Fn("no_such_import") })
}
