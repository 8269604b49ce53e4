package wasmgen

import "bytes"

const (
	opUnreachable  = 0x00
	opLoop         = 0x03
	opEnd          = 0x0b
	opBr           = 0x0c
	opCall         = 0x10
	opCallIndirect = 0x11
	opDrop         = 0x1a
	opLocalGet     = 0x20
	opLocalSet     = 0x21
	opI32Const     = 0x41
	opF32Const     = 0x43
	opI32Add       = 0x6a
	opI32Mul       = 0x6c
	opRefNull      = 0xd0
)

// Code is a function body under construction. The closing end opcode is
// appended by Module.Bytes.
type Code struct {
	buf      bytes.Buffer
	indirect bool
}

// NewCode starts an empty body
func NewCode() *Code {
	return &Code{}
}

func (c *Code) bytes() []byte {
	return c.buf.Bytes()
}

func (c *Code) op(b byte) *Code {
	c.buf.WriteByte(b)
	return c
}

// LocalGet pushes local i
func (c *Code) LocalGet(i uint32) *Code {
	c.op(opLocalGet)
	putU32(&c.buf, i)
	return c
}

// LocalSet pops into local i
func (c *Code) LocalSet(i uint32) *Code {
	c.op(opLocalSet)
	putU32(&c.buf, i)
	return c
}

// I32Const pushes an i32 literal
func (c *Code) I32Const(v int32) *Code {
	c.op(opI32Const)
	putI32(&c.buf, v)
	return c
}

// F32Const pushes an f32 literal
func (c *Code) F32Const(v float32) *Code {
	c.op(opF32Const)
	putF32(&c.buf, v)
	return c
}

// Call invokes function fn
func (c *Code) Call(fn uint32) *Code {
	c.op(opCall)
	putU32(&c.buf, fn)
	return c
}

// CallIndirect pops a table slot and invokes it with signature typ
func (c *Code) CallIndirect(typ uint32) *Code {
	c.op(opCallIndirect)
	putU32(&c.buf, typ)
	putU32(&c.buf, 0)
	c.indirect = true
	return c
}

// RefNullExtern pushes a null externref
func (c *Code) RefNullExtern() *Code {
	c.op(opRefNull)
	return c.op(byte(ExternRef))
}

// I32Add adds the two i32 values on top of the stack
func (c *Code) I32Add() *Code { return c.op(opI32Add) }

// I32Mul multiplies the two i32 values on top of the stack
func (c *Code) I32Mul() *Code { return c.op(opI32Mul) }

// Drop discards the top of the stack
func (c *Code) Drop() *Code { return c.op(opDrop) }

// Loop opens a loop block with no result
func (c *Code) Loop() *Code {
	return c.op(opLoop).op(0x40)
}

// Br branches to the enclosing block depth levels out
func (c *Code) Br(depth uint32) *Code {
	c.op(opBr)
	putU32(&c.buf, depth)
	return c
}

// End closes the innermost block
func (c *Code) End() *Code { return c.op(opEnd) }

// Unreachable traps
func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
