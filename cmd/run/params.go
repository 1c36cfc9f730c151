package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"

	chainext "github.com/wippyai/chain-extension"
)

type pair struct {
	a, b uint32
}

// parseParams converts comma-separated values to wasm parameters of the
// given types. Integers accept decimal, 0x hex and negative values; "skip"
// is the output skip sentinel.
func parseParams(s string, types []api.ValueType) ([]uint64, error) {
	var fields []string
	if strings.TrimSpace(s) != "" {
		fields = strings.Split(s, ",")
	}
	if len(fields) != len(types) {
		return nil, fmt.Errorf("got %d values, want %d", len(fields), len(types))
	}

	out := make([]uint64, len(types))
	for i, f := range fields {
		v, err := convertArg(strings.TrimSpace(f), types[i])
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(value string, t api.ValueType) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		if value == "skip" {
			return api.EncodeU32(chainext.SkipSentinel), nil
		}
		if strings.HasPrefix(value, "-") {
			v, err := strconv.ParseInt(value, 0, 32)
			return api.EncodeI32(int32(v)), err
		}
		v, err := strconv.ParseUint(value, 0, 32)
		return api.EncodeU32(uint32(v)), err
	case api.ValueTypeI64:
		if strings.HasPrefix(value, "-") {
			v, err := strconv.ParseInt(value, 0, 64)
			return api.EncodeI64(v), err
		}
		return strconv.ParseUint(value, 0, 64)
	case api.ValueTypeF32:
		v, err := strconv.ParseFloat(value, 32)
		return api.EncodeF32(float32(v)), err
	case api.ValueTypeF64:
		v, err := strconv.ParseFloat(value, 64)
		return api.EncodeF64(v), err
	default:
		return 0, fmt.Errorf("unsupported parameter type %s", api.ValueTypeName(t))
	}
}

// parsePairs parses "a:b,c:d" into pairs of u32 values.
func parsePairs(s string) ([]pair, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []pair
	for _, f := range strings.Split(s, ",") {
		left, right, ok := strings.Cut(strings.TrimSpace(f), ":")
		if !ok {
			return nil, fmt.Errorf("%q: want a:b", f)
		}
		a, err := strconv.ParseUint(left, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		b, err := strconv.ParseUint(right, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		out = append(out, pair{a: uint32(a), b: uint32(b)})
	}
	return out, nil
}

func formatResults(vals []uint64, types []api.ValueType) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		t := api.ValueTypeI64
		if i < len(types) {
			t = types[i]
		}
		switch t {
		case api.ValueTypeI32:
			parts[i] = strconv.FormatInt(int64(api.DecodeI32(v)), 10)
		case api.ValueTypeF32:
			parts[i] = strconv.FormatFloat(float64(api.DecodeF32(v)), 'g', -1, 32)
		case api.ValueTypeF64:
			parts[i] = strconv.FormatFloat(api.DecodeF64(v), 'g', -1, 64)
		default:
			parts[i] = strconv.FormatInt(int64(v), 10)
		}
	}
	return strings.Join(parts, ", ")
}
