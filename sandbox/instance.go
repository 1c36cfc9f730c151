package sandbox

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	chainext "github.com/wippyai/chain-extension"
	"github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
	"github.com/wippyai/chain-extension/memory"
)

// Module is a compiled guest.
type Module struct {
	sandbox  *Sandbox
	compiled wazero.CompiledModule
}

// Exports lists the functions the guest exports, by name.
func (m *Module) Exports() map[string]api.FunctionDefinition {
	return m.compiled.ExportedFunctions()
}

// Instantiate creates a new instance of the guest.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	mod, err := m.sandbox.runtime.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	return &Instance{module: m, mod: mod}, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	m.sandbox.forget(m)
	return m.compiled.Close(ctx)
}

// Instance is an instantiated guest. Calls on one instance are serialized.
type Instance struct {
	module *Module
	mod    api.Module
	mu     sync.Mutex
}

// CallOptions configures a single guest call.
type CallOptions struct {
	// Context is the host context extensions see. Nil gets an anonymous one.
	Context host.Context
	// Params are the raw wasm parameters of the export.
	Params []uint64
	// GasLimit bounds the weight extensions may charge. Nil uses the sandbox
	// default; gas.Limit(0) runs the call with no budget at all.
	GasLimit *gas.Weight
}

// Outcome is the result of a guest call that did not fail.
type Outcome struct {
	// Results are the raw wasm results of a converging call.
	Results []uint64
	// Data is the output of a diverging extension call.
	Data []byte

	GasLimit    gas.Weight
	GasConsumed gas.Weight

	// Flags are the exit flags of a diverging extension call.
	Flags extension.ReturnFlags
	// Diverged reports that an extension stopped the guest.
	Diverged bool
}

// Value returns the first result as an i32, or 0 when there is none.
func (o *Outcome) Value() uint32 {
	if len(o.Results) == 0 {
		return 0
	}
	return api.DecodeU32(o.Results[0])
}

// Memory returns the guest memory, or nil if the guest has none.
func (i *Instance) Memory() chainext.Memory {
	if m := memory.FromModule(i.mod); m != nil {
		return m
	}
	return nil
}

// Call invokes the export fn.
//
// A diverging extension call ends the guest early and is reported through
// Outcome.Diverged with a nil error. Extension errors abort the guest and are
// returned wrapped, so errors.Is matches their kind. The returned Outcome is
// non-nil whenever the export exists, reporting the gas consumed so far.
func (i *Instance) Call(ctx context.Context, fn string, opts CallOptions) (*Outcome, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := i.module.sandbox
	f := i.mod.ExportedFunction(fn)
	if f == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", fn)
	}

	limit := s.opts.DefaultGasLimit
	if opts.GasLimit != nil {
		limit = *opts.GasLimit
	}
	hostCtx := opts.Context
	if hostCtx == nil {
		hostCtx = host.NewCallContext(ctx, nil, nil)
	}
	meter := gas.NewMeter(limit)

	ctx, span := s.tracer.Start(ctx, "guest.call", trace.WithAttributes(
		attribute.String("export", fn),
		attribute.Int64("gas_limit", int64(limit))))
	defer span.End()

	s.metrics.guestCalls.Inc()
	results, err := f.Call(withCall(ctx, &callState{meter: meter, hostCtx: hostCtx}), opts.Params...)

	out := &Outcome{GasLimit: limit, GasConsumed: meter.Consumed()}
	span.SetAttributes(attribute.Int64("gas_used", int64(out.GasConsumed)))

	if err != nil {
		var d *divergence
		if stderrors.As(err, &d) {
			out.Diverged = true
			out.Flags = d.flags
			out.Data = d.data
			return out, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, fmt.Errorf("call %s: %w", fn, err)
	}

	out.Results = results
	return out, nil
}

// Close closes the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}
