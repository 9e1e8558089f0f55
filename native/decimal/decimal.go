package decimal

import (
	"errors"
	"math/big"
)

// Arithmetic failures are surfaced as typed errors so callers can abort the
// enclosing state transition; nothing in this package clamps silently.
var (
	ErrUnderflow    = errors.New("decimal: underflow")
	ErrDivideByZero = errors.New("decimal: divide by zero")
)

// The fixed scale is 1e18 (WAD). All values are non-negative integers scaled
// by wad, which keeps every monetary computation bit-for-bit reproducible
// across independent re-execution. No float enters or leaves this package.
var (
	wad        = mustBigInt("1000000000000000000")
	halfWad    = new(big.Int).Rsh(wad, 1)
	percentDiv = big.NewInt(100_000) // 3dp percentages: x/1000 percent = x/100000
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Decimal is an arbitrary-precision non-negative fixed-point number with 18
// implied decimal places.
type Decimal struct {
	val *big.Int
}

// Zero returns the zero value.
func Zero() Decimal { return Decimal{val: big.NewInt(0)} }

// One returns the decimal representation of 1.
func One() Decimal { return Decimal{val: new(big.Int).Set(wad)} }

// New converts an unsigned integer quantity into its decimal representation.
func New(v uint64) Decimal {
	scaled := new(big.Int).SetUint64(v)
	return Decimal{val: scaled.Mul(scaled, wad)}
}

// FromBig converts a non-negative big integer quantity. Nil and negative
// inputs collapse to zero; negative amounts never represent money here.
func FromBig(v *big.Int) Decimal {
	if v == nil || v.Sign() <= 0 {
		return Zero()
	}
	return Decimal{val: new(big.Int).Mul(v, wad)}
}

// FromPercent3dp interprets v as a percentage scaled by 1000 (three implied
// decimal digits) and returns the rational value v/100000. A stored parameter
// of 50000 therefore means 50%.
func FromPercent3dp(v uint32) Decimal {
	scaled := new(big.Int).SetUint64(uint64(v))
	scaled.Mul(scaled, wad)
	return Decimal{val: scaled.Quo(scaled, percentDiv)}
}

func (d Decimal) value() *big.Int {
	if d.val == nil {
		return big.NewInt(0)
	}
	return d.val
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	return Decimal{val: new(big.Int).Add(d.value(), other.value())}
}

// Sub returns d - other, failing with ErrUnderflow when the result would be
// negative.
func (d Decimal) Sub(other Decimal) (Decimal, error) {
	out := new(big.Int).Sub(d.value(), other.value())
	if out.Sign() < 0 {
		return Zero(), ErrUnderflow
	}
	return Decimal{val: out}, nil
}

// Mul returns d × other with the result truncated to the fixed scale.
func (d Decimal) Mul(other Decimal) Decimal {
	out := new(big.Int).Mul(d.value(), other.value())
	return Decimal{val: out.Quo(out, wad)}
}

// Div returns d ÷ other truncated to the fixed scale, failing with
// ErrDivideByZero on a zero divisor.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	divisor := other.value()
	if divisor.Sign() == 0 {
		return Zero(), ErrDivideByZero
	}
	out := new(big.Int).Mul(d.value(), wad)
	return Decimal{val: out.Quo(out, divisor)}, nil
}

// DivUint divides by an unsigned integer quantity.
func (d Decimal) DivUint(v uint64) (Decimal, error) {
	if v == 0 {
		return Zero(), ErrDivideByZero
	}
	out := new(big.Int).Quo(d.value(), new(big.Int).SetUint64(v))
	return Decimal{val: out}, nil
}

// Pow raises d to an integer exponent by repeated squaring. Pow(0) is one.
func (d Decimal) Pow(exp uint64) Decimal {
	result := One()
	base := Decimal{val: new(big.Int).Set(d.value())}
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		exp >>= 1
	}
	return result
}

// Round converts to an integer quantity using half-up rounding.
func (d Decimal) Round() *big.Int {
	out := new(big.Int).Add(d.value(), halfWad)
	return out.Quo(out, wad)
}

// Floor converts to an integer quantity discarding the fractional part.
func (d Decimal) Floor() *big.Int {
	return new(big.Int).Quo(d.value(), wad)
}

// Cmp compares d against other, returning -1, 0 or 1.
func (d Decimal) Cmp(other Decimal) int { return d.value().Cmp(other.value()) }

// IsZero reports whether the value is exactly zero.
func (d Decimal) IsZero() bool { return d.value().Sign() == 0 }

// String renders the raw scaled integer; intended for logs and tests only.
func (d Decimal) String() string { return d.value().String() }
