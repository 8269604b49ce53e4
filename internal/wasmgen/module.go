// Package wasmgen assembles small WebAssembly binaries. It covers the
// subset guests of the fastn host need: imported and defined functions,
// a funcref table with one active element segment, and exports.
package wasmgen

import (
	"bytes"
	"encoding/binary"
	"math"
)

// ValType is a WebAssembly value type in binary encoding
type ValType byte

const (
	I32       ValType = 0x7f
	F32       ValType = 0x7d
	ExternRef ValType = 0x6f
	FuncRef   ValType = 0x70
)

// Vals is shorthand for a signature list
func Vals(vs ...ValType) []ValType { return vs }

const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secExport   = 7
	secElement  = 9
	secCode     = 10
)

type signature struct {
	params, results []ValType
}

func (s signature) equal(o signature) bool {
	return bytes.Equal(vtBytes(s.params), vtBytes(o.params)) && bytes.Equal(vtBytes(s.results), vtBytes(o.results))
}

type importFunc struct {
	module, name string
	typ          uint32
}

type function struct {
	typ    uint32
	locals []ValType
	body   *Code
}

type export struct {
	name string
	fn   uint32
}

// Module is an in-progress WebAssembly module. Imports must be declared
// before any defined function so function indices stay stable.
type Module struct {
	types   []signature
	imports []importFunc
	funcs   []function
	exports []export
	table   []uint32
}

// New returns an empty module
func New() *Module {
	return &Module{}
}

// Type returns the index of a function signature, adding it if needed
func (m *Module) Type(params, results []ValType) uint32 {
	sig := signature{params: params, results: results}
	for i, t := range m.types {
		if t.equal(sig) {
			return uint32(i)
		}
	}
	m.types = append(m.types, sig)
	return uint32(len(m.types) - 1)
}

// Import declares an imported function and returns its function index
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmgen: imports must precede defined functions")
	}
	m.imports = append(m.imports, importFunc{module: module, name: name, typ: m.Type(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its function index. Parameters are
// locals 0..len(params)-1; extra locals follow.
func (m *Module) Func(params, results []ValType, locals []ValType, body *Code) uint32 {
	m.funcs = append(m.funcs, function{typ: m.Type(params, results), locals: locals, body: body})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Export exposes a function under name
func (m *Module) Export(name string, fn uint32) {
	m.exports = append(m.exports, export{name: name, fn: fn})
}

// Table places fns into table 0 starting at slot 0. The returned indices
// are the slots, usable with CallIndirect.
func (m *Module) Table(fns ...uint32) []int32 {
	slots := make([]int32, len(fns))
	for i, fn := range fns {
		slots[i] = int32(len(m.table))
		m.table = append(m.table, fn)
	}
	return slots
}

// Bytes encodes the module
func (m *Module) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(m.types) > 0 {
		var b bytes.Buffer
		putU32(&b, uint32(len(m.types)))
		for _, t := range m.types {
			b.WriteByte(0x60)
			putVals(&b, t.params)
			putVals(&b, t.results)
		}
		section(&out, secType, b.Bytes())
	}

	if len(m.imports) > 0 {
		var b bytes.Buffer
		putU32(&b, uint32(len(m.imports)))
		for _, imp := range m.imports {
			putName(&b, imp.module)
			putName(&b, imp.name)
			b.WriteByte(0x00)
			putU32(&b, imp.typ)
		}
		section(&out, secImport, b.Bytes())
	}

	if len(m.funcs) > 0 {
		var b bytes.Buffer
		putU32(&b, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			putU32(&b, f.typ)
		}
		section(&out, secFunction, b.Bytes())
	}

	// call_indirect validates against table 0 even when nothing fills it
	if len(m.table) > 0 || m.indirect() {
		var b bytes.Buffer
		putU32(&b, 1)
		b.WriteByte(byte(FuncRef))
		b.WriteByte(0x00)
		putU32(&b, uint32(len(m.table)))
		section(&out, secTable, b.Bytes())
	}

	if len(m.exports) > 0 {
		var b bytes.Buffer
		putU32(&b, uint32(len(m.exports)))
		for _, e := range m.exports {
			putName(&b, e.name)
			b.WriteByte(0x00)
			putU32(&b, e.fn)
		}
		section(&out, secExport, b.Bytes())
	}

	if len(m.table) > 0 {
		var b bytes.Buffer
		putU32(&b, 1)
		putU32(&b, 0)
		b.Write(NewCode().I32Const(0).bytes())
		b.WriteByte(opEnd)
		putU32(&b, uint32(len(m.table)))
		for _, fn := range m.table {
			putU32(&b, fn)
		}
		section(&out, secElement, b.Bytes())
	}

	if len(m.funcs) > 0 {
		var b bytes.Buffer
		putU32(&b, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var fb bytes.Buffer
			putLocals(&fb, f.locals)
			if f.body != nil {
				fb.Write(f.body.bytes())
			}
			fb.WriteByte(opEnd)
			putU32(&b, uint32(fb.Len()))
			b.Write(fb.Bytes())
		}
		section(&out, secCode, b.Bytes())
	}

	return out.Bytes()
}

func (m *Module) indirect() bool {
	for _, f := range m.funcs {
		if f.body != nil && f.body.indirect {
			return true
		}
	}
	return false
}

func section(out *bytes.Buffer, id byte, body []byte) {
	out.WriteByte(id)
	putU32(out, uint32(len(body)))
	out.Write(body)
}

func putLocals(b *bytes.Buffer, locals []ValType) {
	type group struct {
		n  uint32
		vt ValType
	}
	var groups []group
	for _, vt := range locals {
		if n := len(groups); n > 0 && groups[n-1].vt == vt {
			groups[n-1].n++
			continue
		}
		groups = append(groups, group{n: 1, vt: vt})
	}
	putU32(b, uint32(len(groups)))
	for _, g := range groups {
		putU32(b, g.n)
		b.WriteByte(byte(g.vt))
	}
}

func putVals(b *bytes.Buffer, vs []ValType) {
	putU32(b, uint32(len(vs)))
	b.Write(vtBytes(vs))
}

func vtBytes(vs []ValType) []byte {
	out := make([]byte, len(vs))
	for i, v := range vs {
		out[i] = byte(v)
	}
	return out
}

func putName(b *bytes.Buffer, s string) {
	putU32(b, uint32(len(s)))
	b.WriteString(s)
}

func putU32(b *bytes.Buffer, v uint32) {
	b.Write(binary.AppendUvarint(nil, uint64(v)))
}

func putI32(b *bytes.Buffer, v int32) {
	x := int64(v)
	for {
		c := byte(x & 0x7f)
		x >>= 7
		if (x == 0 && c&0x40 == 0) || (x == -1 && c&0x40 != 0) {
			b.WriteByte(c)
			return
		}
		b.WriteByte(c | 0x80)
	}
}

func putF32(b *bytes.Buffer, v float32) {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], math.Float32bits(v))
	b.Write(raw[:])
}
