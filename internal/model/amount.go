package model

import (
	"fmt"

	"github.com/holiman/uint256"
)

// AmountBits is the width of every ledger amount.
const AmountBits = 128

// Amount is an unsigned 128-bit quantity in an asset's smallest units.
// All arithmetic is checked; a result wider than 128 bits is ErrOverflow.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding x.
func NewAmount(x uint64) Amount {
	var a Amount
	a.v.SetUint64(x)
	return a
}

// ParseAmount parses a base-10 amount.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if a.v.BitLen() > AmountBits {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, ErrOverflow)
	}
	return a, nil
}

// MustAmount is ParseAmount for literals known to be valid.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func fromInt(z *uint256.Int) (Amount, error) {
	if z.BitLen() > AmountBits {
		return Amount{}, ErrOverflow
	}
	return Amount{v: *z}, nil
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) String() string { return a.v.Dec() }

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	var z uint256.Int
	if _, overflow := z.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return fromInt(&z)
}

// Sub returns a-b, or ErrUnderflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var z uint256.Int
	if _, underflow := z.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return Amount{v: z}, nil
}

// MulDiv returns floor(a*m/d) computed with a full-width intermediate.
func (a Amount) MulDiv(m, d uint64) (Amount, error) {
	if d == 0 {
		return Amount{}, fmt.Errorf("mul div: %w", ErrInvalidPrice)
	}
	var z uint256.Int
	if _, overflow := z.MulDivOverflow(&a.v, uint256.NewInt(m), uint256.NewInt(d)); overflow {
		return Amount{}, ErrOverflow
	}
	return fromInt(&z)
}

// MulDivCeil returns ceil(a*m/d).
func (a Amount) MulDivCeil(m, d uint64) (Amount, error) {
	if d == 0 {
		return Amount{}, fmt.Errorf("mul div: %w", ErrInvalidPrice)
	}
	var prod uint256.Int
	if _, overflow := prod.MulOverflow(&a.v, uint256.NewInt(m)); overflow {
		return Amount{}, ErrOverflow
	}
	div := uint256.NewInt(d)
	var q, r uint256.Int
	q.DivMod(&prod, div, &r)
	if !r.IsZero() {
		q.AddUint64(&q, 1)
	}
	return fromInt(&q)
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SumAmounts adds every element, failing on overflow.
func SumAmounts(xs ...Amount) (Amount, error) {
	var total Amount
	for _, x := range xs {
		var err error
		if total, err = total.Add(x); err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}
