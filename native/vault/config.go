package vault

import (
	"fmt"
	"math/big"
)

var (
	// precision is the 1e18 fixed point shared with the oracle adapter.
	precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// liquidationPrecision scales the percent-denominated risk parameters.
	liquidationPrecision = big.NewInt(100)
)

// MinHealthFactor is 1.0 in the engine's fixed point. Positions at or above
// it are solvent.
var MinHealthFactor = new(big.Int).Set(precision)

// MaxHealthFactor is the sentinel returned for debt-free accounts, standing
// in for the undefined division in the naive formula.
var MaxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// RiskParameters groups the immutable safety limits the engine enforces.
// Both values are whole percentages.
type RiskParameters struct {
	// LiquidationThreshold is the percentage applied to raw collateral
	// value before comparing against debt. 50 means positions must hold
	// 200% collateral.
	LiquidationThreshold uint64
	// LiquidationBonus is the extra percentage of seized collateral
	// awarded to a liquidator.
	LiquidationBonus uint64
}

// Validate rejects parameter sets that would break the solvency math.
func (p RiskParameters) Validate() error {
	if p.LiquidationThreshold == 0 || p.LiquidationThreshold > 100 {
		return fmt.Errorf("%w: liquidation threshold %d out of (0,100]", ErrConfigMismatch, p.LiquidationThreshold)
	}
	if p.LiquidationBonus >= 100 {
		return fmt.Errorf("%w: liquidation bonus %d must be below 100", ErrConfigMismatch, p.LiquidationBonus)
	}
	return nil
}
