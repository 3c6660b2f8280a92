package types

import "math/big"

// CloneAmount returns a copy of v, treating nil as zero.
func CloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is strictly greater than zero.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
