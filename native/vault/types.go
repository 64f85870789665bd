package vault

import (
	"math/big"

	"synthvault/crypto"
)

// Position captures one account's collateral balances and outstanding SUSD
// debt. Amounts are denominated in each token's smallest unit.
type Position struct {
	Address    crypto.Address
	Collateral map[string]*big.Int
	Debt       *big.Int
}

// Clone returns a deep copy so callers cannot mutate ledger state through a
// returned snapshot.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{Address: p.Address, Collateral: make(map[string]*big.Int, len(p.Collateral))}
	for kind, amount := range p.Collateral {
		if amount != nil {
			clone.Collateral[kind] = new(big.Int).Set(amount)
		}
	}
	if p.Debt != nil {
		clone.Debt = new(big.Int).Set(p.Debt)
	} else {
		clone.Debt = big.NewInt(0)
	}
	return clone
}
