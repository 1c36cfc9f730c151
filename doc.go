// Package chainext lets a trusted host expose extra operations to metered
// WebAssembly guests through a single trap, without ever letting a handler
// treat a guest integer as a pointer by accident.
//
// A guest calls one imported function with an operation id and four raw
// 32-bit arguments. The host routes the call to an [extension.Extension],
// which receives an environment in its initial state and must pick exactly
// one interpretation of the arguments before it can touch them:
//
//	OnlyIntegers          arg0..arg3 are plain integers
//	PrimitiveInBufferOut  arg0, arg1 are integers; arg2, arg3 point to an output buffer
//	BufferInBufferOut     arg0, arg1 describe an input buffer; arg2, arg3 an output buffer
//
// Each mode is its own Go type, and only exposes the accessors that are valid
// for it. Reading guest memory never charges gas by itself; handlers charge
// through ChargeWeight before doing the work the charge pays for.
//
// # Architecture Overview
//
//	chainext/        Root package with the guest Memory contract
//	├── extension/   Typestate environment, RetVal, Extension contract, Mux, Dispatch
//	├── host/        Host runtime: gas charging and bounds-checked guest memory access
//	├── sandbox/     wazero integration: the guest trap, instances, metrics, tracing
//	├── gas/         Weight, charge tokens, per-call meter
//	├── memory/      Memory implementations over wazero and plain byte slices
//	├── codec/       Typed decoding of guest input (borsh)
//	├── builtins/    Ready-made extensions (hashing, randomness, integer ops)
//	└── errors/      Structured error types
//
// # Quick Start
//
//	mux := extension.NewMux()
//	mux.MustHandle(1, "double", func(_ uint32, env *extension.Init) (extension.RetVal, error) {
//	    e := env.OnlyIntegers()
//	    if err := e.ChargeWeight(10); err != nil {
//	        return extension.RetVal{}, err
//	    }
//	    return extension.Converging(e.InputValue0() * 2), nil
//	})
//
//	sb, err := sandbox.New(ctx, mux, sandbox.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sb.Close(ctx)
//
//	mod, _ := sb.Load(ctx, wasmBytes)
//	inst, _ := mod.Instantiate(ctx)
//	out, err := inst.Call(ctx, "run", sandbox.CallOptions{GasLimit: gas.Limit(1_000_000)})
package chainext
