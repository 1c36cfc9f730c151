package gas

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/wippyai/chain-extension/errors"
)

// Weight is the metered resource unit. Gas and weight are synonyms here.
type Weight uint64

// SaturatingMul multiplies w by n, clamping at the maximum weight.
func (w Weight) SaturatingMul(n uint64) Weight {
	hi, lo := bits.Mul64(uint64(w), n)
	if hi != 0 {
		return math.MaxUint64
	}
	return Weight(lo)
}

// SaturatingAdd adds v to w, clamping at the maximum weight.
func (w Weight) SaturatingAdd(v Weight) Weight {
	sum, carry := bits.Add64(uint64(w), uint64(v), 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return Weight(sum)
}

// PerByte returns a pointer to w, for APIs taking an optional per-byte weight.
func PerByte(w Weight) *Weight {
	return &w
}

// Limit returns a pointer to w, for APIs taking an optional budget.
// A zero limit is a real budget that refuses every nonzero charge.
func Limit(w Weight) *Weight {
	return &w
}

// Token is a chargeable item. The meter only ever looks at its weight;
// the name shows up in errors and logs.
type Token interface {
	Weight() Weight
	Name() string
}

// ExtensionToken is the charge issued by extension handlers.
type ExtensionToken Weight

func (t ExtensionToken) Weight() Weight { return Weight(t) }
func (t ExtensionToken) Name() string   { return "chain_extension" }

// Meter is the per-call gas ledger. It is not safe for concurrent use:
// a guest call is single-threaded and owns its meter.
type Meter struct {
	limit    Weight
	consumed Weight
}

// NewMeter creates a meter with the given budget.
func NewMeter(limit Weight) *Meter {
	return &Meter{limit: limit}
}

// Charge debits tok from the budget. A charge that would exceed the budget
// fails and leaves the meter untouched.
func (m *Meter) Charge(tok Token) error {
	amount := tok.Weight()
	if amount > m.Remaining() {
		err := errors.InsufficientWeight(uint64(amount), uint64(m.Remaining()))
		err.Detail = fmt.Sprintf("%s: %s", tok.Name(), err.Detail)
		return err
	}
	m.consumed += amount
	return nil
}

// Remaining returns the weight left.
func (m *Meter) Remaining() Weight {
	return m.limit - m.consumed
}

// Consumed returns the weight charged so far.
func (m *Meter) Consumed() Weight {
	return m.consumed
}

// Limit returns the budget the meter was created with.
func (m *Meter) Limit() Weight {
	return m.limit
}
