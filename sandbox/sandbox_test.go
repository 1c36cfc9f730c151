package sandbox

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	chainext "github.com/wippyai/chain-extension"
	rterrors "github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
	"github.com/wippyai/chain-extension/internal/wasmbuild"
)

const (
	fnDouble   = 1
	fnUpper    = 2
	fnDiverge  = 3
	fnCaller   = 4
	fnSkip     = 5
	fnNoCharge = 6

	outPtr    = 256
	outLenPtr = 512
)

func testMux() *extension.Mux {
	mux := extension.NewMux()
	mux.MustHandle(fnDouble, "double", func(_ uint32, env *extension.Init) (extension.RetVal, error) {
		if err := env.ChargeWeight(10); err != nil {
			return extension.RetVal{}, err
		}
		ints := env.OnlyIntegers()
		return extension.Converging(ints.InputValue0() * 2), nil
	})
	mux.MustHandle(fnUpper, "upper", func(_ uint32, env *extension.Init) (extension.RetVal, error) {
		buf := env.BufferInBufferOut()
		if err := buf.ChargeWeight(gas.Weight(buf.DeclaredInputLength())); err != nil {
			return extension.RetVal{}, err
		}
		in, err := buf.Read(buf.DeclaredInputLength())
		if err != nil {
			return extension.RetVal{}, err
		}
		return extension.Converging(0), buf.Write(bytes.ToUpper(in), false, gas.PerByte(1))
	})
	mux.MustHandle(fnDiverge, "diverge", func(uint32, *extension.Init) (extension.RetVal, error) {
		return extension.Diverging(extension.FlagRevert, []byte("bye")), nil
	})
	mux.MustHandle(fnCaller, "caller", func(_ uint32, env *extension.Init) (extension.RetVal, error) {
		out := env.PrimitiveInBufferOut()
		return extension.Converging(0), out.Write(out.Context().Caller(), false, nil)
	})
	mux.MustHandle(fnSkip, "skip", func(_ uint32, env *extension.Init) (extension.RetVal, error) {
		out := env.PrimitiveInBufferOut()
		return extension.Converging(1), out.Write([]byte("ignored"), true, gas.PerByte(100))
	})
	mux.MustHandle(fnNoCharge, "no_charge", func(_ uint32, env *extension.Init) (extension.RetVal, error) {
		_, err := env.BufferInBufferOut().Read(4)
		return extension.Converging(0), err
	})
	return mux
}

func params(vals ...uint32) []uint64 {
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i] = api.EncodeU32(v)
	}
	return out
}

func newInstance(t *testing.T, ext extension.Extension, opts Options, data []byte) (*Sandbox, *Instance) {
	t.Helper()
	ctx := context.Background()

	sb, err := New(ctx, ext, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = sb.Close(ctx) })

	mod, err := sb.Load(ctx, wasmbuild.Forwarder(DefaultModuleName, DefaultFunctionName, 1, data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return sb, inst
}

func TestInstance_Converging(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)

	out, err := inst.Call(context.Background(), wasmbuild.ForwardExport, CallOptions{
		GasLimit: gas.Limit(100),
		Params:   params(fnDouble, 21, 0, 0, 0),
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out.Diverged || out.Value() != 42 {
		t.Errorf("outcome = %+v, want value 42", out)
	}
	if out.GasConsumed != 10 || out.GasLimit != 100 {
		t.Errorf("gas = %d/%d, want 10/100", out.GasConsumed, out.GasLimit)
	}
}

func TestInstance_BufferRoundTrip(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), []byte("hello"))
	mem := inst.Memory()
	if err := mem.WriteU32(outLenPtr, 32); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}

	out, err := inst.Call(context.Background(), wasmbuild.ForwardExport, CallOptions{
		Params: params(fnUpper, 0, 5, outPtr, outLenPtr),
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	got, _ := mem.Read(outPtr, 5)
	if string(got) != "HELLO" {
		t.Errorf("output = %q, want HELLO", got)
	}
	if n, _ := mem.ReadU32(outLenPtr); n != 5 {
		t.Errorf("stored length = %d, want 5", n)
	}
	if out.GasConsumed != 10 {
		t.Errorf("gas consumed = %d, want 10", out.GasConsumed)
	}
}

func TestInstance_GuestDeclaredCapacity(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), []byte("hello"))
	ctx := context.Background()

	if _, err := inst.Call(ctx, wasmbuild.ForwardCapacityExport, CallOptions{
		Params: params(fnUpper, 0, 5, outPtr, outLenPtr, 5),
	}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	got, _ := inst.Memory().Read(outPtr, 5)
	if string(got) != "HELLO" {
		t.Errorf("output = %q, want HELLO", got)
	}

	_, err := inst.Call(ctx, wasmbuild.ForwardCapacityExport, CallOptions{
		Params: params(fnUpper, 0, 5, outPtr, outLenPtr, 4),
	})
	if !errors.Is(err, rterrors.ErrOutputBufferTooSmall) {
		t.Fatalf("got %v, want output buffer too small", err)
	}
	if n, _ := inst.Memory().ReadU32(outLenPtr); n != 4 {
		t.Errorf("stored capacity = %d, want 4", n)
	}
}

func TestInstance_OutputTooSmall(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), []byte("hello"))
	mem := inst.Memory()
	_ = mem.WriteU32(outLenPtr, 3)

	_, err := inst.Call(context.Background(), wasmbuild.ForwardExport, CallOptions{
		Params: params(fnUpper, 0, 5, outPtr, outLenPtr),
	})
	if !errors.Is(err, rterrors.ErrOutputBufferTooSmall) {
		t.Fatalf("got %v, want output buffer too small", err)
	}
	if got, _ := mem.Read(outPtr, 5); !bytes.Equal(got, make([]byte, 5)) {
		t.Errorf("output buffer modified: %q", got)
	}
}

func TestInstance_Diverging(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)
	ctx := context.Background()

	out, err := inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnDiverge, 0, 0, 0, 0)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !out.Diverged || !out.Flags.Reverted() || string(out.Data) != "bye" {
		t.Errorf("outcome = %+v, want diverged revert bye", out)
	}
	if out.Results != nil {
		t.Errorf("results = %v, want none", out.Results)
	}

	out, err = inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnDouble, 4, 0, 0, 0)})
	if err != nil || out.Value() != 8 {
		t.Errorf("call after divergence = %+v, %v", out, err)
	}
}

func TestInstance_OutOfGas(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)

	out, err := inst.Call(context.Background(), wasmbuild.ForwardExport, CallOptions{
		GasLimit: gas.Limit(5),
		Params:   params(fnDouble, 1, 0, 0, 0),
	})
	if !errors.Is(err, rterrors.ErrInsufficientWeight) {
		t.Fatalf("got %v, want insufficient weight", err)
	}
	if out == nil || out.GasConsumed != 0 {
		t.Errorf("outcome = %+v, want nothing consumed", out)
	}
}

func TestInstance_GasLimitZeroAndDefault(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)
	ctx := context.Background()

	out, err := inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{
		GasLimit: gas.Limit(0),
		Params:   params(fnDouble, 1, 0, 0, 0),
	})
	if !errors.Is(err, rterrors.ErrInsufficientWeight) {
		t.Fatalf("got %v, want insufficient weight", err)
	}
	if out == nil || out.GasLimit != 0 || out.GasConsumed != 0 {
		t.Errorf("outcome = %+v, want zero budget and nothing consumed", out)
	}

	out, err = inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnDouble, 1, 0, 0, 0)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out.GasLimit != DefaultOptions().DefaultGasLimit || out.GasConsumed != 10 {
		t.Errorf("gas = %d/%d, want 10/%d", out.GasConsumed, out.GasLimit, DefaultOptions().DefaultGasLimit)
	}
}

func TestInstance_UnknownFunction(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)

	_, err := inst.Call(context.Background(), wasmbuild.ForwardExport, CallOptions{Params: params(99, 0, 0, 0, 0)})
	if !errors.Is(err, rterrors.ErrUnknownFunction) {
		t.Errorf("got %v, want unknown function", err)
	}
}

func TestInstance_SkipOutput(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)

	out, err := inst.Call(context.Background(), wasmbuild.ForwardExport, CallOptions{
		GasLimit: gas.Limit(10),
		Params:   params(fnSkip, 0, 0, chainext.SkipSentinel, outLenPtr),
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out.Value() != 1 || out.GasConsumed != 0 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestInstance_HostContext(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)
	mem := inst.Memory()
	_ = mem.WriteU32(outLenPtr, 16)
	ctx := context.Background()

	_, err := inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{
		Context: host.NewCallContext(ctx, []byte("alice"), []byte("contract")),
		Params:  params(fnCaller, 0, 0, outPtr, outLenPtr),
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, _ := mem.Read(outPtr, 5); string(got) != "alice" {
		t.Errorf("caller = %q", got)
	}
}

func TestInstance_MissingExport(t *testing.T) {
	_, inst := newInstance(t, testMux(), DefaultOptions(), nil)

	_, err := inst.Call(context.Background(), "nope", CallOptions{})
	if !errors.Is(err, &rterrors.Error{Kind: rterrors.KindNotFound}) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestInstance_GuestTrap(t *testing.T) {
	ctx := context.Background()
	sb, err := New(ctx, testMux(), DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sb.Close(ctx)

	mod, err := sb.Load(ctx, wasmbuild.Trap())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if inst.Memory() != nil {
		t.Error("memoryless guest reported memory")
	}
	if _, err := inst.Call(ctx, "boom", CallOptions{}); err == nil {
		t.Error("expected trap error")
	}
}

func TestInstance_MemorylessGuest(t *testing.T) {
	ctx := context.Background()
	sb, err := New(ctx, testMux(), DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sb.Close(ctx)

	mod, err := sb.Load(ctx, wasmbuild.BareForwarder(DefaultModuleName, DefaultFunctionName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if inst.Memory() != nil {
		t.Error("memoryless guest reported memory")
	}

	_, err = inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnUpper, 0, 4, outPtr, outLenPtr)})
	if !errors.Is(err, rterrors.ErrMemoryAccessFault) {
		t.Errorf("buffer call = %v, want memory access fault", err)
	}
	if errors.Is(err, rterrors.ErrContractViolation) {
		t.Errorf("buffer call reported a handler panic: %v", err)
	}

	out, err := inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnDouble, 21, 0, 0, 0)})
	if err != nil || out.Value() != 42 {
		t.Errorf("integer call = %+v, %v", out, err)
	}
}

func TestSandbox_DisabledRejectsImporters(t *testing.T) {
	ctx := context.Background()

	for name, ext := range map[string]extension.Extension{
		"disabled": extension.Disabled{},
		"nil":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			sb, err := New(ctx, ext, DefaultOptions())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer sb.Close(ctx)

			_, err = sb.Load(ctx, wasmbuild.Forwarder(DefaultModuleName, DefaultFunctionName, 1, nil))
			if !errors.Is(err, rterrors.ErrExtensionsDisabled) {
				t.Fatalf("got %v, want extensions disabled", err)
			}

			mod, err := sb.Load(ctx, wasmbuild.Constant(7))
			if err != nil {
				t.Fatalf("Load non-importer: %v", err)
			}
			inst, err := mod.Instantiate(ctx)
			if err != nil {
				t.Fatalf("Instantiate: %v", err)
			}
			out, err := inst.Call(ctx, "answer", CallOptions{})
			if err != nil || out.Value() != 7 {
				t.Errorf("answer = %+v, %v", out, err)
			}
		})
	}
}

func TestSandbox_DisabledAfterLoad(t *testing.T) {
	mux := testMux()
	_, inst := newInstance(t, mux, DefaultOptions(), nil)
	mux.Disable()

	_, err := inst.Call(context.Background(), wasmbuild.ForwardExport, CallOptions{Params: params(fnDouble, 1, 0, 0, 0)})
	if !errors.Is(err, rterrors.ErrExtensionsDisabled) {
		t.Errorf("got %v, want extensions disabled", err)
	}
}

func TestSandbox_CustomImportName(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()
	opts.ModuleName = "env"
	opts.FunctionName = "chain_ext"

	sb, err := New(ctx, testMux(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sb.Close(ctx)

	if _, err := sb.Load(ctx, wasmbuild.Forwarder(DefaultModuleName, DefaultFunctionName, 1, nil)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	mod, err := sb.Load(ctx, wasmbuild.Forwarder("env", "chain_ext", 1, nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	out, err := inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnDouble, 5, 0, 0, 0)})
	if err != nil || out.Value() != 10 {
		t.Errorf("outcome = %+v, %v", out, err)
	}
}

func TestSandbox_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := DefaultOptions()
	opts.Registerer = reg
	_, inst := newInstance(t, testMux(), opts, nil)
	ctx := context.Background()

	_, _ = inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnDouble, 1, 0, 0, 0)})
	_, _ = inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnDiverge, 0, 0, 0, 0)})
	_, _ = inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(99, 0, 0, 0, 0)})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	traps := map[string]float64{}
	var guestCalls float64
	for _, mf := range families {
		switch mf.GetName() {
		case "chain_extension_traps_total":
			for _, m := range mf.GetMetric() {
				traps[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			}
		case "chain_extension_guest_calls_total":
			guestCalls = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if traps[resultConverging] != 1 || traps[resultDiverging] != 1 || traps[resultError] != 1 {
		t.Errorf("traps = %v", traps)
	}
	if guestCalls != 3 {
		t.Errorf("guest calls = %v, want 3", guestCalls)
	}

	if _, err := New(ctx, testMux(), opts); err == nil {
		t.Error("second registration on the same registry accepted")
	}
}

func TestSandbox_AuditCharges(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := DefaultOptions()
	opts.Logger = zap.New(core)
	opts.AuditCharges = true
	_, inst := newInstance(t, testMux(), opts, []byte("abcd"))
	ctx := context.Background()

	if _, err := inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnNoCharge, 0, 4, 0, 0)}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if logs.FilterMessage("guest memory accessed before any charge").Len() != 1 {
		t.Errorf("audit logs = %v", logs.All())
	}

	_ = inst.Memory().WriteU32(outLenPtr, 32)
	if _, err := inst.Call(ctx, wasmbuild.ForwardExport, CallOptions{Params: params(fnUpper, 0, 4, outPtr, outLenPtr)}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if logs.Len() != 1 {
		t.Errorf("charged call was audited: %v", logs.All())
	}
}

func TestSandbox_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sb, err := New(ctx, testMux(), DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mod, err := sb.Load(ctx, wasmbuild.Constant(1))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := mod.Close(ctx); err != nil {
		t.Fatalf("Module.Close: %v", err)
	}
	if err := sb.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sb.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := sb.Load(ctx, wasmbuild.Constant(1)); err == nil {
		t.Error("Load after Close succeeded")
	}
}
