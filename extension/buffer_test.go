package extension

import (
	"bytes"
	"errors"
	"testing"

	chainext "github.com/wippyai/chain-extension"
	"github.com/wippyai/chain-extension/codec"
	rterrors "github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/gas"
)

func TestBufferInput_ReadClamps(t *testing.T) {
	input := []byte("0123456789")

	tests := []struct {
		name   string
		maxLen uint32
		want   []byte
	}{
		{"zero", 0, []byte{}},
		{"below declared", 5, input[:5]},
		{"equal to declared", 10, input},
		{"above declared", 20, input},
		{"max", chainext.SkipSentinel, input},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _, mem := newTestEnv(t, 256, 100, CallArguments{Arg0: 100, Arg1: 10})
			_ = mem.Write(100, input)
			buf := env.BufferInBufferOut()

			got, err := buf.Read(tt.maxLen)
			if err != nil {
				t.Fatalf("Read(%d): %v", tt.maxLen, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Read(%d) = %q, want %q", tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestBufferInput_ReadRepeatable(t *testing.T) {
	env, rt, mem := newTestEnv(t, 256, 100, CallArguments{Arg0: 100, Arg1: 10})
	_ = mem.Write(100, []byte("abcdefghij"))
	buf := env.BufferInBufferOut()

	if got, _ := buf.Read(5); string(got) != "abcde" {
		t.Errorf("Read(5) = %q", got)
	}
	if got, _ := buf.Read(20); string(got) != "abcdefghij" {
		t.Errorf("Read(20) = %q", got)
	}
	if rt.Meter().Consumed() != 0 {
		t.Errorf("reads charged %d", rt.Meter().Consumed())
	}
}

func TestBufferInput_ReadOutOfBounds(t *testing.T) {
	env, _, _ := newTestEnv(t, 64, 100, CallArguments{Arg0: 60, Arg1: 10})
	buf := env.BufferInBufferOut()

	if _, err := buf.Read(10); !errors.Is(err, rterrors.ErrMemoryAccessFault) {
		t.Errorf("got %v, want memory access fault", err)
	}
	if got, err := buf.Read(4); err != nil || len(got) != 4 {
		t.Errorf("Read(4) = %v, %v", got, err)
	}
}

func TestBufferInput_ReadInto(t *testing.T) {
	env, _, mem := newTestEnv(t, 64, 100, CallArguments{Arg0: 4, Arg1: 3})
	_ = mem.Write(4, []byte{9, 8, 7, 6})
	buf := env.BufferInBufferOut()

	if buf.DeclaredInputLength() != 3 {
		t.Errorf("DeclaredInputLength = %d", buf.DeclaredInputLength())
	}

	dst := make([]byte, 8)
	got, err := buf.ReadInto(dst)
	if err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	if !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Errorf("ReadInto = %v", got)
	}
	if &got[0] != &dst[0] {
		t.Error("ReadInto did not reuse the caller's buffer")
	}

	small := make([]byte, 2)
	got, _ = buf.ReadInto(small)
	if !bytes.Equal(got, []byte{9, 8}) {
		t.Errorf("ReadInto small = %v", got)
	}
}

type pair struct {
	A uint32
	B uint64
}

func TestReadAs(t *testing.T) {
	encoded, err := codec.Encode(pair{A: 3, B: 1 << 40})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	t.Run("decodes exact input", func(t *testing.T) {
		env, _, mem := newTestEnv(t, 64, 100, CallArguments{Arg0: 8, Arg1: uint32(len(encoded))})
		_ = mem.Write(8, encoded)

		got, err := ReadAs[pair](env.BufferInBufferOut())
		if err != nil {
			t.Fatalf("ReadAs: %v", err)
		}
		if got != (pair{A: 3, B: 1 << 40}) {
			t.Errorf("ReadAs = %+v", got)
		}
	})

	t.Run("short input", func(t *testing.T) {
		env, _, mem := newTestEnv(t, 64, 100, CallArguments{Arg0: 8, Arg1: 5})
		_ = mem.Write(8, encoded)

		if _, err := ReadAs[pair](env.BufferInBufferOut()); !errors.Is(err, rterrors.ErrDecodeFailure) {
			t.Errorf("got %v, want decode failure", err)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		env, _, mem := newTestEnv(t, 64, 100, CallArguments{Arg0: 8, Arg1: uint32(len(encoded) + 1)})
		_ = mem.Write(8, encoded)

		if _, err := ReadAs[pair](env.BufferInBufferOut()); !errors.Is(err, rterrors.ErrDecodeFailure) {
			t.Errorf("got %v, want decode failure", err)
		}
	})
}

func TestBufferOutput_Write(t *testing.T) {
	const (
		outPtr    = 32
		outLenPtr = 4
	)

	t.Run("too small leaves memory untouched", func(t *testing.T) {
		env, rt, mem := newTestEnv(t, 64, 100, CallArguments{Arg2: outPtr, Arg3: outLenPtr})
		_ = mem.WriteU32(outLenPtr, 8)
		before := append([]byte(nil), mem.Bytes()...)

		err := env.BufferInBufferOut().Write(bytes.Repeat([]byte{0xAA}, 12), false, gas.PerByte(1))
		if !errors.Is(err, rterrors.ErrOutputBufferTooSmall) {
			t.Fatalf("got %v, want output buffer too small", err)
		}
		if !bytes.Equal(mem.Bytes(), before) {
			t.Error("guest memory modified")
		}
		if rt.Meter().Consumed() != 0 {
			t.Errorf("consumed = %d, want 0", rt.Meter().Consumed())
		}
	})

	t.Run("charges per byte", func(t *testing.T) {
		env, rt, mem := newTestEnv(t, 64, 100, CallArguments{Arg2: outPtr, Arg3: outLenPtr})
		_ = mem.WriteU32(outLenPtr, 8)
		data := []byte{1, 2, 3, 4, 5, 6}

		if err := env.PrimitiveInBufferOut().Write(data, false, gas.PerByte(5)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !bytes.Equal(mem.Bytes()[outPtr:outPtr+6], data) {
			t.Errorf("output = %v", mem.Bytes()[outPtr:outPtr+6])
		}
		if n, _ := mem.ReadU32(outLenPtr); n != 6 {
			t.Errorf("stored length = %d, want 6", n)
		}
		if got := rt.Meter().Consumed(); got != 30 {
			t.Errorf("consumed = %d, want 30", got)
		}
	})

	t.Run("no weight charges nothing", func(t *testing.T) {
		env, rt, mem := newTestEnv(t, 64, 100, CallArguments{Arg2: outPtr, Arg3: outLenPtr})
		_ = mem.WriteU32(outLenPtr, 8)

		if err := env.BufferInBufferOut().Write([]byte{1, 2}, false, nil); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if rt.Meter().Consumed() != 0 {
			t.Errorf("consumed = %d, want 0", rt.Meter().Consumed())
		}
	})

	t.Run("skip sentinel", func(t *testing.T) {
		env, rt, mem := newTestEnv(t, 64, 100, CallArguments{Arg2: chainext.SkipSentinel, Arg3: outLenPtr})
		before := append([]byte(nil), mem.Bytes()...)

		if err := env.BufferInBufferOut().Write([]byte{1, 2, 3}, true, gas.PerByte(10)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !bytes.Equal(mem.Bytes(), before) {
			t.Error("guest memory modified")
		}
		if rt.Meter().Consumed() != 0 {
			t.Errorf("consumed = %d, want 0", rt.Meter().Consumed())
		}
	})

	t.Run("insufficient weight leaves memory untouched", func(t *testing.T) {
		env, _, mem := newTestEnv(t, 64, 5, CallArguments{Arg2: outPtr, Arg3: outLenPtr})
		_ = mem.WriteU32(outLenPtr, 8)

		err := env.BufferInBufferOut().Write([]byte{1, 2, 3}, false, gas.PerByte(2))
		if !errors.Is(err, rterrors.ErrInsufficientWeight) {
			t.Fatalf("got %v, want insufficient weight", err)
		}
		if n, _ := mem.ReadU32(outLenPtr); n != 8 {
			t.Errorf("stored length = %d, want 8", n)
		}
	})

	t.Run("saturating charge", func(t *testing.T) {
		env, _, mem := newTestEnv(t, 64, 1<<62, CallArguments{Arg2: outPtr, Arg3: outLenPtr})
		_ = mem.WriteU32(outLenPtr, 8)

		err := env.BufferInBufferOut().Write([]byte{1, 2}, false, gas.PerByte(gas.Weight(1<<63)))
		if !errors.Is(err, rterrors.ErrInsufficientWeight) {
			t.Fatalf("got %v, want insufficient weight", err)
		}
	})
}
