package model

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// AmountSize is the width of the fixed two's complement encoding
const AmountSize = 16

var (
	maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minAmount = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	modAmount = new(big.Int).Lsh(big.NewInt(1), 128)
)

// Amount is a signed integer amount in the smallest unit. Valid amounts
// fit in 128 bits; construction does not enforce this, InRange does.
type Amount struct {
	i sdkmath.Int
}

// NewAmount returns an amount for v
func NewAmount(v int64) Amount {
	return Amount{i: sdkmath.NewInt(v)}
}

// AmountFromBig wraps a copy of b
func AmountFromBig(b *big.Int) Amount {
	if b == nil {
		return Amount{i: sdkmath.ZeroInt()}
	}
	return Amount{i: sdkmath.NewIntFromBigInt(b)}
}

// ParseAmount parses a base-10 integer string
func ParseAmount(s string) (Amount, error) {
	v, ok := sdkmath.NewIntFromString(strings.TrimSpace(s))
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return Amount{i: v}, nil
}

// Int returns the amount as a cosmos math.Int
func (a Amount) Int() sdkmath.Int {
	if a.i.IsNil() {
		return sdkmath.ZeroInt()
	}
	return a.i
}

// BigInt returns a copy of the amount as a big.Int
func (a Amount) BigInt() *big.Int {
	return a.Int().BigInt()
}

// InRange reports whether the amount fits a signed 128-bit integer
func (a Amount) InRange() bool {
	b := a.BigInt()
	return b.Cmp(minAmount) >= 0 && b.Cmp(maxAmount) <= 0
}

// Equal compares two amounts by value
func (a Amount) Equal(o Amount) bool {
	return a.Int().Equal(o.Int())
}

func (a Amount) String() string {
	return a.Int().String()
}

// FixedBytes returns the big-endian two's complement form. The amount must
// be InRange.
func (a Amount) FixedBytes() [AmountSize]byte {
	var out [AmountSize]byte
	b := a.BigInt()
	if b.Sign() < 0 {
		b.Add(b, modAmount)
	}
	b.FillBytes(out[:])
	return out
}

// AmountFromFixed decodes a big-endian two's complement value
func AmountFromFixed(buf [AmountSize]byte) Amount {
	b := new(big.Int).SetBytes(buf[:])
	if buf[0]&0x80 != 0 {
		b.Sub(b, modAmount)
	}
	return AmountFromBig(b)
}

// MarshalText renders the amount in base 10
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a base-10 amount
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
