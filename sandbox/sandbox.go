// Package sandbox runs core wasm guests under wazero and links them to a
// chain extension.
//
// The extension is exported to guests as a single host function, by default
// seal0.seal_call_chain_extension(func_id, in_ptr, in_len, out_ptr,
// out_len_ptr) -> i32. Every trap builds a fresh host runtime over the
// guest's memory and the gas meter of the running call, and hands it to
// extension.Dispatch.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/chain-extension/errors"
	"github.com/wippyai/chain-extension/extension"
)

// Sandbox owns a wazero runtime with the chain extension host module.
// Load is safe for concurrent use.
type Sandbox struct {
	runtime wazero.Runtime
	ext     extension.Extension
	log     *zap.Logger
	metrics *metrics
	tracer  trace.Tracer
	modules map[*Module]struct{}
	opts    Options
	mu      sync.Mutex
	closed  bool
}

// New creates a sandbox that routes guest traps to ext.
func New(ctx context.Context, ext extension.Extension, opts Options) (*Sandbox, error) {
	if ext == nil {
		ext = extension.Disabled{}
	}
	opts = opts.withDefaults()

	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}

	s := &Sandbox{
		runtime: wazero.NewRuntimeWithConfig(ctx, cfg),
		ext:     ext,
		log:     log,
		metrics: m,
		tracer:  tp.Tracer(opts.TracerName),
		modules: make(map[*Module]struct{}),
		opts:    opts,
	}

	if err := s.instantiateHostModule(ctx); err != nil {
		return nil, multierr.Append(err, s.runtime.Close(ctx))
	}
	return s, nil
}

func (s *Sandbox) instantiateHostModule(ctx context.Context) error {
	i32 := api.ValueTypeI32
	_, err := s.runtime.NewHostModuleBuilder(s.opts.ModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(s.trap),
			[]api.ValueType{i32, i32, i32, i32, i32},
			[]api.ValueType{i32}).
		WithParameterNames("func_id", "input_ptr", "input_len", "output_ptr", "output_len_ptr").
		Export(s.opts.FunctionName).
		Instantiate(ctx)
	if err != nil {
		return errors.Instantiation(err)
	}
	return nil
}

// Extension returns the extension guests are linked to.
func (s *Sandbox) Extension() extension.Extension {
	return s.ext
}

// Load compiles a guest module.
//
// When the extension is disabled, a module importing the trap is rejected
// here rather than failing on its first call.
func (s *Sandbox) Load(ctx context.Context, wasm []byte) (*Module, error) {
	compiled, err := s.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	if !extension.IsEnabled(s.ext) && s.importsTrap(compiled) {
		closeErr := compiled.Close(ctx)
		err := errors.New(errors.PhaseLoad, errors.KindExtensionsDisabled).
			Detail("module imports %s.%s but no chain extension is available", s.opts.ModuleName, s.opts.FunctionName).
			Build()
		return nil, multierr.Append(err, closeErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, multierr.Append(errors.Load("sandbox closed", nil), compiled.Close(ctx))
	}

	m := &Module{sandbox: s, compiled: compiled}
	s.modules[m] = struct{}{}
	return m, nil
}

func (s *Sandbox) importsTrap(compiled wazero.CompiledModule) bool {
	for _, def := range compiled.ImportedFunctions() {
		module, name, ok := def.Import()
		if ok && module == s.opts.ModuleName && name == s.opts.FunctionName {
			return true
		}
	}
	return false
}

func (s *Sandbox) forget(m *Module) {
	s.mu.Lock()
	delete(s.modules, m)
	s.mu.Unlock()
}

// Close releases every loaded module and the wazero runtime.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	modules := s.modules
	s.modules = nil
	s.mu.Unlock()

	var err error
	for m := range modules {
		err = multierr.Append(err, m.compiled.Close(ctx))
	}
	return multierr.Append(err, s.runtime.Close(ctx))
}
