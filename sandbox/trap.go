package sandbox

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	chainext "github.com/wippyai/chain-extension"
	"github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
	"github.com/wippyai/chain-extension/memory"
)

type callKey struct{}

// callState is the per guest call state a trap needs.
type callState struct {
	meter   *gas.Meter
	hostCtx host.Context
}

func withCall(ctx context.Context, c *callState) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

func callFrom(ctx context.Context) *callState {
	c, _ := ctx.Value(callKey{}).(*callState)
	return c
}

// divergence unwinds the guest when an extension returns a diverging RetVal.
// wazero recovers it and wraps it into the error of the guest call.
type divergence struct {
	data  []byte
	flags extension.ReturnFlags
}

func (d *divergence) Error() string {
	return "chain extension diverged"
}

// trap is the host function behind the chain extension import.
// Errors abort the guest by panicking; wazero turns the panic into the error
// returned from the guest call.
func (s *Sandbox) trap(ctx context.Context, mod api.Module, stack []uint64) {
	call := callFrom(ctx)
	if call == nil {
		panic(errors.ContractViolation("chain extension trap outside Instance.Call", nil))
	}

	funcID := api.DecodeU32(stack[0])
	args := extension.CallArguments{
		Arg0: api.DecodeU32(stack[1]),
		Arg1: api.DecodeU32(stack[2]),
		Arg2: api.DecodeU32(stack[3]),
		Arg3: api.DecodeU32(stack[4]),
	}

	_, span := s.tracer.Start(ctx, "chain_extension.call",
		trace.WithAttributes(attribute.Int64("func_id", int64(funcID))))
	defer span.End()

	// Guests without memory can still use integer-only extensions.
	var mem chainext.Memory = memory.NewLinear(0)
	if m := memory.FromModule(mod); m != nil {
		mem = m
	}

	rt := host.NewRuntime(mem, call.meter, call.hostCtx)
	if s.opts.AuditCharges {
		rt.WithAudit(func(op string, ptr, length uint32) {
			s.log.Warn("guest memory accessed before any charge",
				zap.Uint32("func_id", funcID),
				zap.String("op", op),
				zap.Uint32("ptr", ptr),
				zap.Uint32("len", length))
		})
	}

	ret, err := extension.Dispatch(rt, s.ext, funcID, args)
	s.metrics.observeTrap(ret, err, rt.Charged())
	span.SetAttributes(attribute.Int64("gas_used", int64(rt.Charged())))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Debug("chain extension aborted guest",
			zap.Uint32("func_id", funcID),
			zap.Uint64("gas_used", uint64(rt.Charged())),
			zap.Error(err))
		panic(err)
	}

	s.log.Debug("chain extension trap",
		zap.Uint32("func_id", funcID),
		zap.Uint64("gas_used", uint64(rt.Charged())),
		zap.Stringer("ret", ret))

	if ret.IsDiverging() {
		span.SetAttributes(attribute.Bool("diverging", true))
		panic(&divergence{flags: ret.Flags(), data: ret.Data()})
	}
	stack[0] = api.EncodeU32(ret.Value())
}
