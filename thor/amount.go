package thor

import (
	"fmt"
	"math/big"
)

// Amount is a 128-bit unsigned integer, canonically encoded as 16
// big-endian bytes on the wire and in storage. The total currency supply
// fits within 2^128, so Amount never needs to represent more than that.
type Amount [16]byte

// maxAmount is 2^128 - 1, used to bound arithmetic.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// MaxAmount is 2^128 - 1, the total currency supply, and the amount the
// ledger's conservation invariant is checked against.
var MaxAmount = AmountFromBig(maxAmount)

// AmountFromBig converts a non-negative big.Int no larger than 2^128-1
// into an Amount. It panics on overflow or a negative value, since every
// call site in the ledger computes amounts that are statically known to
// be in range (the processor rejects out-of-range blocks before this is
// ever reached).
func AmountFromBig(v *big.Int) Amount {
	if v.Sign() < 0 {
		panic("thor: negative amount")
	}
	if v.Cmp(maxAmount) > 0 {
		panic("thor: amount overflows 128 bits")
	}
	var out Amount
	b := v.Bytes()
	copy(out[16-len(b):], b)
	return out
}

// AmountFromUint64 builds an Amount from a uint64 value.
func AmountFromUint64(v uint64) Amount {
	var out Amount
	for i := 0; i < 8; i++ {
		out[15-i] = byte(v >> (8 * i))
	}
	return out
}

// Big returns a.
func (a Amount) Big() *big.Int {
	return new(big.Int).SetBytes(a[:])
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a == Amount{}
}

// Cmp compares a and b, returning -1, 0 or 1.
func (a Amount) Cmp(b Amount) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Add returns a+b. Panics on overflow past 2^128-1: the ledger processor
// must reject any block whose claimed balance would overflow before
// calling this.
func (a Amount) Add(b Amount) Amount {
	return AmountFromBig(new(big.Int).Add(a.Big(), b.Big()))
}

// Sub returns a-b. Panics if b > a: callers (ledger.Processor) must
// validate ordering first as the negative-spend rejection rule.
func (a Amount) Sub(b Amount) Amount {
	d := new(big.Int).Sub(a.Big(), b.Big())
	if d.Sign() < 0 {
		panic("thor: amount underflow")
	}
	return AmountFromBig(d)
}

// AbsDiff returns |a-b|.
func (a Amount) AbsDiff(b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a.Sub(b)
	}
	return b.Sub(a)
}

// String renders the amount in base 10.
func (a Amount) String() string {
	return a.Big().String()
}

// MulPercent returns floor(a * pct / 100), used for quorum-delta and
// weight-tier computations.
func (a Amount) MulPercent(pct uint64) Amount {
	v := new(big.Int).Mul(a.Big(), new(big.Int).SetUint64(pct))
	v.Div(v, big.NewInt(100))
	return AmountFromBig(v)
}

// CmpFraction compares a against b*numerator/denominator without
// floating point or truncation, returning -1, 0 or 1. Used for
// weight-tier and admission-threshold checks finer than whole percent
// (e.g. 0.1% of online stake), where MulPercent's integer percentage
// can't express the threshold exactly.
func (a Amount) CmpFraction(b Amount, numerator, denominator uint64) int {
	lhs := new(big.Int).Mul(a.Big(), new(big.Int).SetUint64(denominator))
	rhs := new(big.Int).Mul(b.Big(), new(big.Int).SetUint64(numerator))
	return lhs.Cmp(rhs)
}

// GoString implements fmt.GoStringer for debug printing.
func (a Amount) GoString() string {
	return fmt.Sprintf("thor.Amount(%s)", a.String())
}
