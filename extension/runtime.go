package extension

import (
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
)

// Runtime is what an environment needs from the host runtime of the current
// guest call. *host.Runtime implements it.
type Runtime interface {
	ChargeGas(tok gas.Token) error
	Context() host.Context
	ReadSandboxMemory(ptr, length uint32) ([]byte, error)
	ReadSandboxMemoryInto(ptr uint32, buf []byte) error
	WriteSandboxOutput(outPtr, outLenPtr uint32, data []byte, allowSkip bool, charge func(length uint32) gas.Token) error
}

var _ Runtime = (*host.Runtime)(nil)

// CallArguments are the four raw values a guest passes to the trap.
// They carry no meaning until the environment picks a mode.
type CallArguments struct {
	Arg0 uint32
	Arg1 uint32
	Arg2 uint32
	Arg3 uint32
}
