// Package host implements the host side of a guest call: the gas ledger
// access and bounds-checked reads and writes of guest memory that extension
// environments are built on.
package host

import (
	"math"

	chainext "github.com/wippyai/chain-extension"
	"github.com/wippyai/chain-extension/codec"
	"github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/gas"
)

// AuditFunc is called when guest memory is accessed before anything was
// charged in the current call. op is "read" or "write".
type AuditFunc func(op string, ptr, length uint32)

// Runtime is the host runtime of a single guest call. It is created by the
// dispatch layer for one trap and must not be shared.
type Runtime struct {
	mem     chainext.Memory
	meter   *gas.Meter
	ctx     Context
	audit   AuditFunc
	charged gas.Weight
}

// NewRuntime binds guest memory, the call's meter and its context.
func NewRuntime(mem chainext.Memory, meter *gas.Meter, ctx Context) *Runtime {
	return &Runtime{
		mem:   mem,
		meter: meter,
		ctx:   ctx,
	}
}

// WithAudit installs fn to observe uncharged memory accesses.
func (r *Runtime) WithAudit(fn AuditFunc) *Runtime {
	r.audit = fn
	return r
}

// ChargeGas debits tok from the call's meter.
func (r *Runtime) ChargeGas(tok gas.Token) error {
	if err := r.meter.Charge(tok); err != nil {
		return err
	}
	r.charged = r.charged.SaturatingAdd(tok.Weight())
	return nil
}

// Context returns the call context.
func (r *Runtime) Context() Context {
	return r.ctx
}

// Meter returns the call's meter.
func (r *Runtime) Meter() *gas.Meter {
	return r.meter
}

// Charged returns the weight charged through this runtime.
func (r *Runtime) Charged() gas.Weight {
	return r.charged
}

// ReadSandboxMemory copies length bytes at ptr out of guest memory.
func (r *Runtime) ReadSandboxMemory(ptr, length uint32) ([]byte, error) {
	r.observe("read", ptr, length)
	return r.mem.Read(ptr, length)
}

// ReadSandboxMemoryInto fills buf from guest memory at ptr.
func (r *Runtime) ReadSandboxMemoryInto(ptr uint32, buf []byte) error {
	r.observe("read", ptr, uint32(len(buf)))
	return r.mem.ReadInto(ptr, buf)
}

// WriteSandboxOutput copies data into the guest output buffer at outPtr whose
// capacity is stored as a little-endian u32 at outLenPtr, then stores
// len(data) at outLenPtr.
//
// With allowSkip and outPtr == chainext.SkipSentinel nothing happens.
// charge, if non-nil, computes the token for len(data) bytes; it is charged
// only when the copy is going to happen, after every check passed.
func (r *Runtime) WriteSandboxOutput(
	outPtr, outLenPtr uint32,
	data []byte,
	allowSkip bool,
	charge func(length uint32) gas.Token,
) error {
	if allowSkip && outPtr == chainext.SkipSentinel {
		return nil
	}

	if uint64(len(data)) > math.MaxUint32 {
		return errors.OutputBufferTooSmall(math.MaxUint32, len(data))
	}
	length := uint32(len(data))
	r.observe("write", outPtr, length)

	capacity, err := r.mem.ReadU32(outLenPtr)
	if err != nil {
		return err
	}
	if capacity < length {
		return errors.OutputBufferTooSmall(capacity, len(data))
	}
	if uint64(outPtr)+uint64(length) > r.mem.Size() {
		return errors.MemoryAccessFault(outPtr, length, r.mem.Size())
	}

	if charge != nil {
		if tok := charge(length); tok != nil {
			if err := r.ChargeGas(tok); err != nil {
				return err
			}
		}
	}

	if err := r.mem.Write(outPtr, data); err != nil {
		return err
	}
	return r.mem.WriteU32(outLenPtr, length)
}

func (r *Runtime) observe(op string, ptr, length uint32) {
	if r.audit != nil && r.charged == 0 {
		r.audit(op, ptr, length)
	}
}

// MemoryReader is the part of a runtime ReadSandboxMemoryAs needs.
type MemoryReader interface {
	ReadSandboxMemory(ptr, length uint32) ([]byte, error)
}

// ReadSandboxMemoryAs reads length bytes at ptr and decodes them into a T.
func ReadSandboxMemoryAs[T any](r MemoryReader, ptr, length uint32) (T, error) {
	data, err := r.ReadSandboxMemory(ptr, length)
	if err != nil {
		var zero T
		return zero, err
	}
	return codec.Decode[T](data)
}
