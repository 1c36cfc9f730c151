// Package builtins provides a ready-made chain extension with a few common
// host functions: integer arithmetic, hashing, deterministic randomness,
// caller lookup and early termination.
//
// Function ids:
//
//	0x01 add          only integers       in0 + in1 (wrapping)
//	0x02 random_bytes primitive in/out    in0 = subject, in1 = length
//	0x03 blake2_256   buffer in/out       32-byte BLAKE2b digest of the input
//	0x04 keccak_256   buffer in/out       32-byte legacy Keccak digest of the input
//	0x05 caller       primitive in/out    caller of the guest call
//	0x06 terminate    buffer in/out       diverges with the input as data
//	0x07 sum64        buffer in/out       borsh []uint64 in, borsh uint64 out
package builtins

import (
	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
)

const (
	FuncAdd         uint32 = 0x01
	FuncRandomBytes uint32 = 0x02
	FuncBlake2b256  uint32 = 0x03
	FuncKeccak256   uint32 = 0x04
	FuncCaller      uint32 = 0x05
	FuncTerminate   uint32 = 0x06
	FuncSum64       uint32 = 0x07
)

// MaxRandomBytes bounds a single random_bytes request.
const MaxRandomBytes = 4096

// Weights prices the builtins.
type Weights struct {
	// Base is charged by every builtin before it does anything.
	Base gas.Weight
	// PerByte is charged per byte of input hashed or read, and per byte of
	// output written.
	PerByte gas.Weight
}

// DefaultWeights returns the standard prices.
func DefaultWeights() Weights {
	return Weights{Base: 1_000, PerByte: 10}
}

// Config configures the builtin extension.
type Config struct {
	// Seed keys random_bytes. Hosts should derive it from consensus state.
	Seed    []byte
	Weights Weights
}

// New returns a Mux with every builtin registered.
func New(cfg Config) *extension.Mux {
	b := &builtins{cfg: cfg}
	mux := extension.NewMux()
	mux.MustHandle(FuncAdd, "add", b.add)
	mux.MustHandle(FuncRandomBytes, "random_bytes", b.randomBytes)
	mux.MustHandle(FuncBlake2b256, "blake2_256", b.blake2b256)
	mux.MustHandle(FuncKeccak256, "keccak_256", b.keccak256)
	mux.MustHandle(FuncCaller, "caller", b.caller)
	mux.MustHandle(FuncTerminate, "terminate", b.terminate)
	mux.MustHandle(FuncSum64, "sum64", b.sum64)
	return mux
}

type builtins struct {
	cfg Config
}

// chargeInput charges the base weight plus the per-byte weight of n input bytes.
func (b *builtins) chargeInput(env extension.Universal, n uint32) error {
	w := b.cfg.Weights
	return env.ChargeWeight(w.Base.SaturatingAdd(w.PerByte.SaturatingMul(uint64(n))))
}

func (b *builtins) add(_ uint32, env *extension.Init) (extension.RetVal, error) {
	if err := env.ChargeWeight(b.cfg.Weights.Base); err != nil {
		return extension.RetVal{}, err
	}
	ints := env.OnlyIntegers()
	return extension.Converging(ints.InputValue0() + ints.InputValue1()), nil
}

func (b *builtins) caller(_ uint32, env *extension.Init) (extension.RetVal, error) {
	if err := env.ChargeWeight(b.cfg.Weights.Base); err != nil {
		return extension.RetVal{}, err
	}
	out := env.PrimitiveInBufferOut()
	if err := out.Write(out.Context().Caller(), true, gas.PerByte(b.cfg.Weights.PerByte)); err != nil {
		return extension.RetVal{}, err
	}
	return extension.Converging(0), nil
}

func (b *builtins) terminate(_ uint32, env *extension.Init) (extension.RetVal, error) {
	buf := env.BufferInBufferOut()
	if err := b.chargeInput(buf, buf.DeclaredInputLength()); err != nil {
		return extension.RetVal{}, err
	}
	data, err := buf.Read(buf.DeclaredInputLength())
	if err != nil {
		return extension.RetVal{}, err
	}
	return extension.Diverging(extension.FlagRevert, data), nil
}
