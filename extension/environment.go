package extension

import (
	"github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
)

// Mode is the interpretation an environment applies to its call arguments.
type Mode uint8

const (
	ModeInit Mode = iota
	ModeOnlyIntegers
	ModePrimitiveInBufferOut
	ModeBufferInBufferOut
)

func (m Mode) String() string {
	switch m {
	case ModeInit:
		return "init"
	case ModeOnlyIntegers:
		return "only-integers"
	case ModePrimitiveInBufferOut:
		return "primitive-in-buffer-out"
	case ModeBufferInBufferOut:
		return "buffer-in-buffer-out"
	default:
		return "unknown"
	}
}

// ErrAlreadyTransitioned is the panic value of a second mode transition on
// the same *Init. It is a programming error in the handler, not a condition
// to recover from; Dispatch turns it into a failed guest call.
var ErrAlreadyTransitioned = errors.ContractViolation("environment already left its initial mode", nil)

// state is shared by an *Init and the terminal environment it produced.
type state struct {
	rt       Runtime
	args     CallArguments
	mode     Mode
	released bool
}

// runtime returns the host runtime while the call that created the
// environment is still in progress.
func (s *state) runtime() (Runtime, error) {
	if s.released {
		return nil, errors.ContractViolation("environment used after its call returned", s.mode.String())
	}
	return s.rt, nil
}

// universal holds the operations available in every mode.
type universal struct {
	s *state
}

// ChargeWeight debits amount from the remaining budget of the guest call.
//
// Handlers must charge before doing the work the charge pays for, including
// reading or writing guest memory. On failure nothing is debited and the
// handler should return the error unchanged.
func (u universal) ChargeWeight(amount gas.Weight) error {
	rt, err := u.s.runtime()
	if err != nil {
		return err
	}
	return rt.ChargeGas(gas.ExtensionToken(amount))
}

// Context grants access to the execution context of the current guest call.
func (u universal) Context() host.Context {
	return u.s.rt.Context()
}

// Mode reports the current interpretation of the call arguments.
func (u universal) Mode() Mode {
	return u.s.mode
}

// Init is the environment in its initial state. Its arguments cannot be read
// until one of OnlyIntegers, PrimitiveInBufferOut or BufferInBufferOut picks
// how to interpret them. Only one of them may be called, once.
type Init struct {
	universal
}

func newInit(rt Runtime, args CallArguments) *Init {
	return &Init{universal{s: &state{rt: rt, args: args, mode: ModeInit}}}
}

func (e *Init) transition(to Mode) *state {
	if e.s.mode != ModeInit {
		panic(ErrAlreadyTransitioned)
	}
	e.s.mode = to
	return e.s
}

// OnlyIntegers uses all four arguments as integers.
func (e *Init) OnlyIntegers() *OnlyIntegers {
	s := e.transition(ModeOnlyIntegers)
	return &OnlyIntegers{
		universal:     universal{s},
		integerInput:  integerInput{s},
		integerOutput: integerOutput{s},
	}
}

// PrimitiveInBufferOut uses arg0 and arg1 as integers and arg2, arg3 as the
// output buffer pointer and the pointer to its length.
func (e *Init) PrimitiveInBufferOut() *PrimitiveInBufferOut {
	s := e.transition(ModePrimitiveInBufferOut)
	return &PrimitiveInBufferOut{
		universal:    universal{s},
		integerInput: integerInput{s},
		bufferOutput: bufferOutput{s},
	}
}

// BufferInBufferOut uses arg0, arg1 as the input buffer pointer and length
// and arg2, arg3 as the output buffer pointer and the pointer to its length.
func (e *Init) BufferInBufferOut() *BufferInBufferOut {
	s := e.transition(ModeBufferInBufferOut)
	return &BufferInBufferOut{
		universal:    universal{s},
		bufferInput:  bufferInput{s},
		bufferOutput: bufferOutput{s},
	}
}
