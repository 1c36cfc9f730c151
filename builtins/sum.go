package builtins

import (
	"github.com/wippyai/chain-extension/codec"
	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
)

// SumInput is the borsh-encoded input of sum64.
type SumInput struct {
	Values []uint64
}

// sum64 adds the values of a SumInput, wrapping on overflow, and writes the
// borsh-encoded total.
func (b *builtins) sum64(_ uint32, env *extension.Init) (extension.RetVal, error) {
	buf := env.BufferInBufferOut()
	if err := b.chargeInput(buf, buf.DeclaredInputLength()); err != nil {
		return extension.RetVal{}, err
	}

	in, err := extension.ReadAs[SumInput](buf)
	if err != nil {
		return extension.RetVal{}, err
	}

	var total uint64
	for _, v := range in.Values {
		total += v
	}

	out, err := codec.Encode(total)
	if err != nil {
		return extension.RetVal{}, err
	}
	if err := buf.Write(out, true, gas.PerByte(b.cfg.Weights.PerByte)); err != nil {
		return extension.RetVal{}, err
	}
	return extension.Converging(uint32(len(in.Values))), nil
}
