package evm

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the token precision assumed for pool and payment tokens.
const DefaultDecimals int32 = 18

// ToWei scales a human amount to base units, rounding half-up at the last
// place. The float is converted through its shortest decimal form so that
// 0.1 scales to exactly 10^17.
func ToWei(amount float64, decimals int32) (*big.Int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("amount %v is not finite", amount)
	}
	return decimal.NewFromFloat(amount).Shift(decimals).Round(0).BigInt(), nil
}

// FromWei converts base units back to a human amount.
func FromWei(v *big.Int, decimals int32) float64 {
	return DecimalFromWei(v, decimals).InexactFloat64()
}

// DecimalFromWei converts base units to an exact decimal.
func DecimalFromWei(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}
