package extension

import (
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
)

// Universal is satisfied by every mode, including Init.
type Universal interface {
	ChargeWeight(amount gas.Weight) error
	Context() host.Context
	Mode() Mode
}

// IntegerInput is satisfied by modes that read arg0 and arg1 as integers.
type IntegerInput interface {
	Universal
	InputValue0() uint32
	InputValue1() uint32
}

// IntegerOutput is satisfied by modes that read arg2 and arg3 as integers.
type IntegerOutput interface {
	Universal
	OutputValue2() uint32
	OutputValue3() uint32
}

// BufferInput is satisfied by modes that read arg0 and arg1 as an input buffer.
type BufferInput interface {
	Universal
	DeclaredInputLength() uint32
	Read(maxLen uint32) ([]byte, error)
	ReadInto(buf []byte) ([]byte, error)
}

// BufferOutput is satisfied by modes that use arg2 and arg3 as an output buffer.
type BufferOutput interface {
	Universal
	Write(buf []byte, allowSkip bool, weightPerByte *gas.Weight) error
}

var (
	_ Universal = (*Init)(nil)

	_ IntegerInput  = (*OnlyIntegers)(nil)
	_ IntegerOutput = (*OnlyIntegers)(nil)

	_ IntegerInput = (*PrimitiveInBufferOut)(nil)
	_ BufferOutput = (*PrimitiveInBufferOut)(nil)

	_ BufferInput  = (*BufferInBufferOut)(nil)
	_ BufferOutput = (*BufferInBufferOut)(nil)
)

// OnlyIntegers is the mode where all four arguments are plain integers.
type OnlyIntegers struct {
	universal
	integerInput
	integerOutput
}

// PrimitiveInBufferOut is the mode with two integer inputs and an output buffer.
type PrimitiveInBufferOut struct {
	universal
	integerInput
	bufferOutput
}

// BufferInBufferOut is the mode with an input buffer and an output buffer.
type BufferInBufferOut struct {
	universal
	bufferInput
	bufferOutput
}

type integerInput struct {
	s *state
}

// InputValue0 returns arg0 verbatim.
func (i integerInput) InputValue0() uint32 {
	return i.s.args.Arg0
}

// InputValue1 returns arg1 verbatim.
func (i integerInput) InputValue1() uint32 {
	return i.s.args.Arg1
}

type integerOutput struct {
	s *state
}

// OutputValue2 returns arg2 verbatim.
func (o integerOutput) OutputValue2() uint32 {
	return o.s.args.Arg2
}

// OutputValue3 returns arg3 verbatim.
func (o integerOutput) OutputValue3() uint32 {
	return o.s.args.Arg3
}
