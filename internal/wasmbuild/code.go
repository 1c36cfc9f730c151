package wasmbuild

const (
	opUnreachable byte = 0x00
	opEnd         byte = 0x0b
	opCall        byte = 0x10
	opLocalGet    byte = 0x20
	opI32Store    byte = 0x36
	opI32Const    byte = 0x41
)

// Code is a function body builder. The terminating end opcode is added by
// Module.Encode.
type Code struct {
	w Writer
}

// NewCode starts an empty function body.
func NewCode() *Code {
	return &Code{}
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte {
	return c.w.Bytes()
}

func (c *Code) Unreachable() *Code {
	c.w.Byte(opUnreachable)
	return c
}

func (c *Code) Call(funcIdx uint32) *Code {
	c.w.Byte(opCall)
	c.w.WriteU32(funcIdx)
	return c
}

func (c *Code) LocalGet(idx uint32) *Code {
	c.w.Byte(opLocalGet)
	c.w.WriteU32(idx)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(opI32Const)
	c.w.WriteS32(v)
	return c
}

// I32Store stores to the address below the value on the stack plus offset.
func (c *Code) I32Store(offset uint32) *Code {
	c.w.Byte(opI32Store)
	c.w.WriteU32(2)
	c.w.WriteU32(offset)
	return c
}
