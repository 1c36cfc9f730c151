package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCharge   Phase = "charge"   // gas ledger debits
	PhaseMemory   Phase = "memory"   // guest memory access
	PhaseDecode   Phase = "decode"   // guest bytes to Go values
	PhaseOutput   Phase = "output"   // host bytes to guest output buffer
	PhaseDispatch Phase = "dispatch" // extension routing
	PhaseLoad     Phase = "load"     // guest module loading
	PhaseRuntime  Phase = "runtime"  // instance lifecycle
)

// Kind categorizes the error
type Kind string

const (
	KindInsufficientWeight   Kind = "insufficient_weight"
	KindMemoryAccessFault    Kind = "memory_access_fault"
	KindDecodeFailure        Kind = "decode_failure"
	KindOutputBufferTooSmall Kind = "output_buffer_too_small"
	KindExtensionsDisabled   Kind = "extensions_disabled"
	KindContractViolation    Kind = "contract_violation"
	KindUnknownFunction      Kind = "unknown_function"
	KindInvalidInput         Kind = "invalid_input"
	KindNotFound             Kind = "not_found"
	KindInstantiation        Kind = "instantiation"
)

// Sentinels for errors.Is. They carry no phase, so they match any error of their kind.
var (
	ErrInsufficientWeight   = &Error{Kind: KindInsufficientWeight}
	ErrMemoryAccessFault    = &Error{Kind: KindMemoryAccessFault}
	ErrDecodeFailure        = &Error{Kind: KindDecodeFailure}
	ErrOutputBufferTooSmall = &Error{Kind: KindOutputBufferTooSmall}
	ErrExtensionsDisabled   = &Error{Kind: KindExtensionsDisabled}
	ErrContractViolation    = &Error{Kind: KindContractViolation}
	ErrUnknownFunction      = &Error{Kind: KindUnknownFunction}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InsufficientWeight creates an out-of-budget error
func InsufficientWeight(wanted, available uint64) *Error {
	return &Error{
		Phase:  PhaseCharge,
		Kind:   KindInsufficientWeight,
		Detail: fmt.Sprintf("required %d, but only %d available", wanted, available),
		Value:  wanted,
	}
}

// MemoryAccessFault creates an out-of-bounds guest memory error
func MemoryAccessFault(offset, length uint32, size uint64) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindMemoryAccessFault,
		Detail: fmt.Sprintf("range [%d, %d+%d) outside memory of %d bytes", offset, offset, length, size),
		Value:  offset,
	}
}

// DecodeFailure creates an error for guest bytes that do not parse into goType
func DecodeFailure(goType string, length int, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindDecodeFailure,
		Detail: fmt.Sprintf("decode %d bytes into %s", length, goType),
		Cause:  cause,
	}
}

// OutputBufferTooSmall creates an error for a guest output buffer below the data size
func OutputBufferTooSmall(capacity uint32, needed int) *Error {
	return &Error{
		Phase:  PhaseOutput,
		Kind:   KindOutputBufferTooSmall,
		Detail: fmt.Sprintf("guest buffer holds %d bytes, %d needed", capacity, needed),
		Value:  capacity,
	}
}

// ExtensionsDisabled creates the error returned when the extension gate is closed
func ExtensionsDisabled() *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindExtensionsDisabled,
		Detail: "no chain extension is available",
	}
}

// ContractViolation creates an error for misuse of the extension environment
func ContractViolation(detail string, value any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindContractViolation,
		Detail: detail,
		Value:  value,
	}
}

// UnknownFunction creates an error for an unrouted function id
func UnknownFunction(funcID uint32) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnknownFunction,
		Detail: fmt.Sprintf("no handler for function id %#x", funcID),
		Value:  funcID,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
