package vault

import (
	"fmt"
	"math/big"

	"synthvault/crypto"
)

// DebtLedger tracks outstanding minted SUSD per account. Debt never goes
// negative; burning more than the tracked amount fails. Like the collateral
// ledger it is bookkeeping only: events belong to the engine's commit path.
type DebtLedger struct {
	debts map[string]*big.Int
}

// NewDebtLedger constructs an empty debt ledger.
func NewDebtLedger() *DebtLedger {
	return &DebtLedger{debts: make(map[string]*big.Int)}
}

// Debt returns the outstanding minted amount for the account, zero when the
// account has never minted.
func (l *DebtLedger) Debt(addr crypto.Address) *big.Int {
	current, ok := l.debts[addr.String()]
	if !ok || current == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(current)
}

// Mint increases the account's debt.
func (l *DebtLedger) Mint(addr crypto.Address, amount *big.Int) {
	key := addr.String()
	current, ok := l.debts[key]
	if !ok || current == nil {
		current = big.NewInt(0)
	}
	l.debts[key] = new(big.Int).Add(current, amount)
}

// Burn decreases the account's debt, failing when the amount exceeds it.
func (l *DebtLedger) Burn(addr crypto.Address, amount *big.Int) error {
	key := addr.String()
	current, ok := l.debts[key]
	if !ok || current == nil || current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s owes %s, burn of %s requested",
			ErrExcessiveBurn, addr, l.Debt(addr), amount)
	}
	l.debts[key] = new(big.Int).Sub(current, amount)
	return nil
}

// snapshot copies the account's debt for rollback.
func (l *DebtLedger) snapshot(addr crypto.Address) *big.Int {
	current, ok := l.debts[addr.String()]
	if !ok || current == nil {
		return nil
	}
	return new(big.Int).Set(current)
}

// restore reinstates a snapshot taken by snapshot.
func (l *DebtLedger) restore(addr crypto.Address, snap *big.Int) {
	key := addr.String()
	if snap == nil {
		delete(l.debts, key)
		return
	}
	l.debts[key] = new(big.Int).Set(snap)
}

// load seeds a debt entry during store recovery.
func (l *DebtLedger) load(addr crypto.Address, debt *big.Int) {
	if debt != nil && debt.Sign() > 0 {
		l.debts[addr.String()] = new(big.Int).Set(debt)
	}
}
