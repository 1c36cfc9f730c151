// Package errors provides the structured error type shared by the chain
// extension packages.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Two errors match under errors.Is when their kinds match, so the
// package-level sentinels such as ErrInsufficientWeight can be compared
// against any error built for that kind.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseOutput, errors.KindOutputBufferTooSmall).
//		Value(capacity).
//		Detail("need %d bytes", len(data)).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InsufficientWeight(wanted, available)
//	err := errors.MemoryAccessFault(ptr, length, mem.Size())
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
