package vault

import (
	"math/big"

	"synthvault/crypto"
)

// HealthCalculator derives a solvency ratio from ledger snapshots and the
// oracle valuation. It is read-only and never fails for a well-formed
// account: zero-activity accounts are trivially solvent.
type HealthCalculator struct {
	params     RiskParameters
	collateral *CollateralLedger
	debt       *DebtLedger
}

// NewHealthCalculator binds the calculator to the two ledgers.
func NewHealthCalculator(params RiskParameters, collateral *CollateralLedger, debt *DebtLedger) *HealthCalculator {
	return &HealthCalculator{params: params, collateral: collateral, debt: debt}
}

// HealthFactor returns the account's solvency ratio in 1e18 fixed point.
// Accounts with no debt report MaxHealthFactor; the naive formula would
// divide by zero there.
func (c *HealthCalculator) HealthFactor(addr crypto.Address) (*big.Int, error) {
	debt := c.debt.Debt(addr)
	if debt.Sign() == 0 {
		return new(big.Int).Set(MaxHealthFactor), nil
	}
	collateralUSD, err := c.collateral.TotalValueUSD(addr)
	if err != nil {
		return nil, err
	}
	adjusted := new(big.Int).Mul(collateralUSD, new(big.Int).SetUint64(c.params.LiquidationThreshold))
	adjusted.Quo(adjusted, liquidationPrecision)
	ratio := adjusted.Mul(adjusted, precision)
	return ratio.Quo(ratio, debt), nil
}

// IsSolvent reports whether the account meets the minimum health factor,
// returning the computed ratio for error reporting.
func (c *HealthCalculator) IsSolvent(addr crypto.Address) (bool, *big.Int, error) {
	ratio, err := c.HealthFactor(addr)
	if err != nil {
		return false, nil, err
	}
	return ratio.Cmp(MinHealthFactor) >= 0, ratio, nil
}
