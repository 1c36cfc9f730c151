package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/chain-extension/builtins"
	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
	"github.com/wippyai/chain-extension/host"
	"github.com/wippyai/chain-extension/internal/wasmbuild"
	"github.com/wippyai/chain-extension/sandbox"
)

type config struct {
	wasmFile    string
	funcName    string
	params      string
	set         string
	dump        string
	caller      string
	seed        string
	gasLimit    uint64
	list        bool
	verbose     bool
	audit       bool
	interactive bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.wasmFile, "wasm", "", "Path to core wasm module (default: built-in forwarding guest)")
	flag.StringVar(&cfg.funcName, "func", wasmbuild.ForwardExport, "Export to call")
	flag.StringVar(&cfg.params, "params", "", "Comma-separated call parameters")
	flag.StringVar(&cfg.set, "set", "", "Guest memory u32 stores before the call (ptr:value,...)")
	flag.StringVar(&cfg.dump, "dump", "", "Guest memory to print after the call (ptr:len,...)")
	flag.StringVar(&cfg.caller, "caller", "", "Caller identity seen by extensions")
	flag.StringVar(&cfg.seed, "seed", "", "Seed for random_bytes")
	flag.Uint64Var(&cfg.gasLimit, "gas", uint64(sandbox.DefaultOptions().DefaultGasLimit), "Gas limit of the call")
	flag.BoolVar(&cfg.list, "list", false, "List exports and extension functions and exit")
	flag.BoolVar(&cfg.verbose, "v", false, "Log every extension call")
	flag.BoolVar(&cfg.audit, "audit", false, "Warn when extensions touch memory before charging")
	flag.BoolVar(&cfg.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if flag.NArg() > 0 {
		usage()
		os.Exit(1)
	}

	if cfg.interactive {
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: run [-wasm file.wasm] [-func name] [-params 1,2,...] [-gas n]")
	fmt.Fprintln(os.Stderr, "       run [-wasm file.wasm] -list")
	fmt.Fprintln(os.Stderr, "       run [-wasm file.wasm] -i  (interactive mode)")
}

// session is a loaded guest linked to the builtin extension.
type session struct {
	sb     *sandbox.Sandbox
	mod    *sandbox.Module
	inst   *sandbox.Instance
	ext    *extension.Mux
	log    *zap.Logger
	source string
}

func openSession(ctx context.Context, cfg config) (*session, error) {
	log := zap.NewNop()
	if cfg.verbose || cfg.audit {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		log = l
	}
	extension.SetLogger(log)

	wasm, source, err := loadGuest(cfg.wasmFile)
	if err != nil {
		return nil, err
	}

	ext := builtins.New(builtins.Config{
		Seed:    []byte(cfg.seed),
		Weights: builtins.DefaultWeights(),
	})

	opts := sandbox.DefaultOptions()
	opts.Logger = log
	opts.AuditCharges = cfg.audit

	sb, err := sandbox.New(ctx, ext, opts)
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}

	mod, err := sb.Load(ctx, wasm)
	if err != nil {
		_ = sb.Close(ctx)
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	return &session{sb: sb, mod: mod, ext: ext, log: log, source: source}, nil
}

func loadGuest(path string) ([]byte, string, error) {
	if path == "" {
		return wasmbuild.Forwarder(sandbox.DefaultModuleName, sandbox.DefaultFunctionName, 1, []byte("hello, chain extension")), "<built-in forwarder>", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return data, path, nil
}

func (s *session) instance(ctx context.Context) (*sandbox.Instance, error) {
	if s.inst != nil {
		return s.inst, nil
	}
	inst, err := s.mod.Instantiate(ctx)
	if err != nil {
		return nil, err
	}
	s.inst = inst
	return inst, nil
}

func (s *session) close(ctx context.Context) {
	if s.inst != nil {
		_ = s.inst.Close(ctx)
	}
	_ = s.sb.Close(ctx)
	_ = s.log.Sync()
}

// exports returns the guest exports sorted by name.
func (s *session) exports() []api.FunctionDefinition {
	defs := s.mod.Exports()
	out := make([]api.FunctionDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (s *session) call(ctx context.Context, cfg config, fn string, params []uint64) (*sandbox.Outcome, error) {
	inst, err := s.instance(ctx)
	if err != nil {
		return nil, err
	}

	stores, err := parsePairs(cfg.set)
	if err != nil {
		return nil, fmt.Errorf("-set: %w", err)
	}
	if len(stores) > 0 {
		mem := inst.Memory()
		if mem == nil {
			return nil, fmt.Errorf("-set: guest has no memory")
		}
		for _, st := range stores {
			if err := mem.WriteU32(st.a, st.b); err != nil {
				return nil, fmt.Errorf("-set %d: %w", st.a, err)
			}
		}
	}

	return inst.Call(ctx, fn, sandbox.CallOptions{
		Context:  host.NewCallContext(ctx, []byte(cfg.caller), []byte(s.source)),
		Params:   params,
		GasLimit: gas.Limit(gas.Weight(cfg.gasLimit)),
	})
}

func run(cfg config) error {
	ctx := context.Background()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	fmt.Printf("Guest: %s\n", s.source)
	fmt.Printf("\nExported functions:\n")
	for _, d := range s.exports() {
		fmt.Printf("  %s\n", formatSignature(d))
	}
	fmt.Printf("\nExtension functions:\n")
	for _, r := range s.ext.Routes() {
		fmt.Printf("  %#04x %s\n", r.ID, r.Name)
	}
	if cfg.list {
		return nil
	}

	def, ok := s.mod.Exports()[cfg.funcName]
	if !ok {
		return fmt.Errorf("export %q not found", cfg.funcName)
	}
	params, err := parseParams(cfg.params, def.ParamTypes())
	if err != nil {
		return fmt.Errorf("-params: %w", err)
	}

	fmt.Printf("\nCalling %s(%s)...\n", cfg.funcName, cfg.params)
	out, err := s.call(ctx, cfg, cfg.funcName, params)
	if out != nil {
		fmt.Print(formatOutcome(out, def.ResultTypes()))
	}
	if err != nil {
		return err
	}

	regions, err := parsePairs(cfg.dump)
	if err != nil {
		return fmt.Errorf("-dump: %w", err)
	}
	if len(regions) > 0 && s.inst.Memory() == nil {
		return fmt.Errorf("-dump: guest has no memory")
	}
	for _, r := range regions {
		data, err := s.inst.Memory().Read(r.a, r.b)
		if err != nil {
			return fmt.Errorf("-dump %d:%d: %w", r.a, r.b, err)
		}
		fmt.Printf("\nmemory[%d:%d]\n%s", r.a, r.a+r.b, hex.Dump(data))
	}
	return nil
}

func formatSignature(d api.FunctionDefinition) string {
	var params []string
	for i, t := range d.ParamTypes() {
		name := fmt.Sprintf("arg%d", i)
		if names := d.ParamNames(); i < len(names) && names[i] != "" {
			name = names[i]
		}
		params = append(params, name+": "+api.ValueTypeName(t))
	}
	var results []string
	for _, t := range d.ResultTypes() {
		results = append(results, api.ValueTypeName(t))
	}
	sig := d.Name() + "(" + strings.Join(params, ", ") + ")"
	if len(results) > 0 {
		sig += " -> " + strings.Join(results, ", ")
	}
	return sig
}

func formatOutcome(out *sandbox.Outcome, results []api.ValueType) string {
	var b strings.Builder
	if out.Diverged {
		fmt.Fprintf(&b, "Diverged: flags=%#x reverted=%v\n", uint32(out.Flags), out.Flags.Reverted())
		fmt.Fprintf(&b, "Data: %x (%q)\n", out.Data, out.Data)
	} else if len(out.Results) > 0 {
		fmt.Fprintf(&b, "Result: %s\n", formatResults(out.Results, results))
	}
	fmt.Fprintf(&b, "Gas: %d / %d\n", out.GasConsumed, out.GasLimit)
	return b.String()
}
