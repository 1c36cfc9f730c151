package sandbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/chain-extension/gas"
)

const (
	// DefaultModuleName is the import module of the chain extension trap.
	DefaultModuleName = "seal0"
	// DefaultFunctionName is the import name of the chain extension trap.
	DefaultFunctionName = "seal_call_chain_extension"
)

// Options configures a Sandbox.
type Options struct {
	// Logger receives per-trap logs. Nil uses the package Logger().
	Logger *zap.Logger

	// Registerer receives the sandbox metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer

	// TracerProvider creates the sandbox tracer. Nil uses the global provider.
	TracerProvider trace.TracerProvider

	// ModuleName and FunctionName are the import the guest links the trap by.
	ModuleName   string
	FunctionName string

	// TracerName names the tracer spans are recorded with.
	TracerName string

	// DefaultGasLimit is used when CallOptions.GasLimit is nil.
	DefaultGasLimit gas.Weight

	// MemoryLimitPages caps guest memory in 64KiB pages. 0 keeps the wazero default.
	MemoryLimitPages uint32

	// AuditCharges logs a warning whenever a handler touches guest memory
	// before charging anything in that call.
	AuditCharges bool
}

// DefaultOptions returns the options of a standard seal0 host.
func DefaultOptions() Options {
	return Options{
		ModuleName:       DefaultModuleName,
		FunctionName:     DefaultFunctionName,
		TracerName:       "github.com/wippyai/chain-extension/sandbox",
		DefaultGasLimit:  10_000_000,
		MemoryLimitPages: 256, // 16MiB
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ModuleName == "" {
		o.ModuleName = def.ModuleName
	}
	if o.FunctionName == "" {
		o.FunctionName = def.FunctionName
	}
	if o.TracerName == "" {
		o.TracerName = def.TracerName
	}
	if o.DefaultGasLimit == 0 {
		o.DefaultGasLimit = def.DefaultGasLimit
	}
	return o
}
