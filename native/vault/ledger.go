package vault

import (
	"fmt"
	"math/big"

	"synthvault/crypto"
	"synthvault/native/oracle"
)

// CollateralLedger tracks deposited collateral per (account, kind). It is
// pure bookkeeping: value judgments stay with the health calculator, and
// event emission stays with the engine so a rolled-back mutation never
// produces a signal.
type CollateralLedger struct {
	oracle   *oracle.Adapter
	balances map[string]map[string]*big.Int
}

// NewCollateralLedger constructs an empty ledger valued through the adapter.
func NewCollateralLedger(adapter *oracle.Adapter) *CollateralLedger {
	return &CollateralLedger{
		oracle:   adapter,
		balances: make(map[string]map[string]*big.Int),
	}
}

func (l *CollateralLedger) account(addr crypto.Address) map[string]*big.Int {
	key := addr.String()
	row, ok := l.balances[key]
	if !ok {
		row = make(map[string]*big.Int)
		l.balances[key] = row
	}
	return row
}

// Balance returns the deposited amount of kind for the account. Accounts and
// kinds with no activity report zero.
func (l *CollateralLedger) Balance(addr crypto.Address, kind string) *big.Int {
	row, ok := l.balances[addr.String()]
	if !ok {
		return big.NewInt(0)
	}
	amount, ok := row[kind]
	if !ok || amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amount)
}

// Credit adds deposited collateral.
func (l *CollateralLedger) Credit(addr crypto.Address, kind string, amount *big.Int) {
	row := l.account(addr)
	current, ok := row[kind]
	if !ok || current == nil {
		current = big.NewInt(0)
	}
	row[kind] = new(big.Int).Add(current, amount)
}

// Debit removes collateral, failing when the amount exceeds the balance.
func (l *CollateralLedger) Debit(addr crypto.Address, kind string, amount *big.Int) error {
	row := l.account(addr)
	current, ok := row[kind]
	if !ok || current == nil || current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s of %s, debit of %s requested",
			ErrInsufficientCollateral, addr, l.Balance(addr, kind), kind, amount)
	}
	row[kind] = new(big.Int).Sub(current, amount)
	return nil
}

// TotalValueUSD sums the oracle valuation of every registered kind for the
// account, in 1e18 fixed point. Kinds with zero balance contribute zero
// without a feed read.
func (l *CollateralLedger) TotalValueUSD(addr crypto.Address) (*big.Int, error) {
	total := big.NewInt(0)
	row := l.balances[addr.String()]
	if row == nil {
		return total, nil
	}
	for _, kind := range l.oracle.Kinds() {
		balance, ok := row[kind]
		if !ok || balance == nil || balance.Sign() == 0 {
			continue
		}
		value, err := l.oracle.ValueOf(kind, balance)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// snapshotAccount copies the account's row for rollback.
func (l *CollateralLedger) snapshotAccount(addr crypto.Address) map[string]*big.Int {
	row, ok := l.balances[addr.String()]
	if !ok {
		return nil
	}
	snap := make(map[string]*big.Int, len(row))
	for kind, amount := range row {
		if amount != nil {
			snap[kind] = new(big.Int).Set(amount)
		}
	}
	return snap
}

// restoreAccount reinstates a snapshot taken by snapshotAccount.
func (l *CollateralLedger) restoreAccount(addr crypto.Address, snap map[string]*big.Int) {
	key := addr.String()
	if snap == nil {
		delete(l.balances, key)
		return
	}
	row := make(map[string]*big.Int, len(snap))
	for kind, amount := range snap {
		row[kind] = new(big.Int).Set(amount)
	}
	l.balances[key] = row
}

// load seeds a row during store recovery.
func (l *CollateralLedger) load(addr crypto.Address, collateral map[string]*big.Int) {
	row := l.account(addr)
	for kind, amount := range collateral {
		if amount != nil && amount.Sign() > 0 {
			row[kind] = new(big.Int).Set(amount)
		}
	}
}
