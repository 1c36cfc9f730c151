package extension

import (
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
)

type bufferInput struct {
	s *state
}

// DeclaredInputLength is the input length the guest passed as arg1.
//
// Handlers use it to size the dynamic part of their charge before reading,
// e.g. a hashing extension charges per input byte.
func (b bufferInput) DeclaredInputLength() uint32 {
	return b.s.args.Arg1
}

// Read copies min(maxLen, DeclaredInputLength()) bytes of the input buffer.
//
// Read does not charge anything. The handler must already have charged for
// the read, either for the worst case maxLen or for DeclaredInputLength().
func (b bufferInput) Read(maxLen uint32) ([]byte, error) {
	rt, err := b.s.runtime()
	if err != nil {
		return nil, err
	}
	return rt.ReadSandboxMemory(b.s.args.Arg0, min(maxLen, b.s.args.Arg1))
}

// ReadInto fills buf with up to DeclaredInputLength() bytes of the input and
// returns buf shrunk to the number of bytes copied. Apart from reusing the
// caller's buffer it is equivalent to Read(len(buf)).
func (b bufferInput) ReadInto(buf []byte) ([]byte, error) {
	rt, err := b.s.runtime()
	if err != nil {
		return nil, err
	}
	n := min(uint64(len(buf)), uint64(b.s.args.Arg1))
	sliced := buf[:n]
	if err := rt.ReadSandboxMemoryInto(b.s.args.Arg0, sliced); err != nil {
		return nil, err
	}
	return sliced, nil
}

// ReadAs reads exactly DeclaredInputLength() bytes and decodes them into a T.
//
// Meant for fixed-size inputs whose read cost is covered by the handler's
// flat charge. Variable-size inputs should charge by DeclaredInputLength()
// and use Read instead.
func ReadAs[T any](env *BufferInBufferOut) (T, error) {
	s := env.bufferInput.s
	rt, err := s.runtime()
	if err != nil {
		var zero T
		return zero, err
	}
	return host.ReadSandboxMemoryAs[T](rt, s.args.Arg0, s.args.Arg1)
}

type bufferOutput struct {
	s *state
}

// Write copies buf into the guest output buffer.
//
// If the guest buffer is smaller than buf the call fails without touching
// guest memory. With allowSkip the guest may pass chainext.SkipSentinel as
// the output pointer to skip the copy. weightPerByte, if set, is charged per
// byte of buf right before the copy, and only if the copy happens.
func (b bufferOutput) Write(buf []byte, allowSkip bool, weightPerByte *gas.Weight) error {
	rt, err := b.s.runtime()
	if err != nil {
		return err
	}

	var charge func(uint32) gas.Token
	if weightPerByte != nil {
		w := *weightPerByte
		charge = func(length uint32) gas.Token {
			return gas.ExtensionToken(w.SaturatingMul(uint64(length)))
		}
	}
	return rt.WriteSandboxOutput(b.s.args.Arg2, b.s.args.Arg3, buf, allowSkip, charge)
}
