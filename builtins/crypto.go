package builtins

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
)

func (b *builtins) blake2b256(_ uint32, env *extension.Init) (extension.RetVal, error) {
	return b.hash(env, func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	})
}

func (b *builtins) keccak256(_ uint32, env *extension.Init) (extension.RetVal, error) {
	return b.hash(env, sha3.NewLegacyKeccak256)
}

// hash charges for the whole declared input, then writes its 32-byte digest.
func (b *builtins) hash(env *extension.Init, newHash func() hash.Hash) (extension.RetVal, error) {
	buf := env.BufferInBufferOut()
	if err := b.chargeInput(buf, buf.DeclaredInputLength()); err != nil {
		return extension.RetVal{}, err
	}
	in, err := buf.Read(buf.DeclaredInputLength())
	if err != nil {
		return extension.RetVal{}, err
	}

	h := newHash()
	h.Write(in)
	if err := buf.Write(h.Sum(nil), false, nil); err != nil {
		return extension.RetVal{}, err
	}
	return extension.Converging(0), nil
}

// randomBytes derives in1 bytes from the configured seed, the subject in0
// and the caller. The same inputs always give the same bytes.
func (b *builtins) randomBytes(_ uint32, env *extension.Init) (extension.RetVal, error) {
	if err := env.ChargeWeight(b.cfg.Weights.Base); err != nil {
		return extension.RetVal{}, err
	}
	out := env.PrimitiveInBufferOut()

	n := out.InputValue1()
	if n > MaxRandomBytes {
		return extension.RetVal{}, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Value(n).
			Detail("random_bytes: %d bytes requested, at most %d allowed", n, MaxRandomBytes).
			Build()
	}

	data, err := deriveRandom(b.cfg.Seed, out.InputValue0(), out.Context().Caller(), n)
	if err != nil {
		return extension.RetVal{}, err
	}
	if err := out.Write(data, true, gas.PerByte(b.cfg.Weights.PerByte)); err != nil {
		return extension.RetVal{}, err
	}
	return extension.Converging(n), nil
}

func deriveRandom(seed []byte, subject uint32, caller []byte, n uint32) ([]byte, error) {
	xof, err := blake2b.NewXOF(blake2b.OutputLengthUnknown, nil)
	if err != nil {
		return nil, fmt.Errorf("random_bytes: %w", err)
	}

	var subj [4]byte
	binary.LittleEndian.PutUint32(subj[:], subject)
	xof.Write(seed)
	xof.Write(subj[:])
	xof.Write(caller)

	data := make([]byte, n)
	if _, err := io.ReadFull(xof, data); err != nil {
		return nil, fmt.Errorf("random_bytes: %w", err)
	}
	return data, nil
}
