package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"synthvault/crypto"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
)

// Ledger is an in-process fungible token: per-account balances plus a running
// total supply. The vault engine drives it through the custody adapters in
// this package; direct callers are the RPC faucet and tests.
type Ledger struct {
	mu       sync.RWMutex
	symbol   string
	decimals uint8
	balances map[string]*big.Int
	supply   *big.Int
}

// NewLedger constructs an empty ledger for the given denomination.
func NewLedger(symbol string, decimals uint8) *Ledger {
	return &Ledger{
		symbol:   symbol,
		decimals: decimals,
		balances: make(map[string]*big.Int),
		supply:   big.NewInt(0),
	}
}

// Symbol returns the token's denomination symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the number of fractional digits in the smallest unit.
func (l *Ledger) Decimals() uint8 { return l.decimals }

// BalanceOf returns the account's balance, zero for unknown accounts.
func (l *Ledger) BalanceOf(addr crypto.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	current, ok := l.balances[addr.String()]
	if !ok || current == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(current)
}

// TotalSupply returns the sum of every balance.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supply)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Mint credits freshly created tokens to the account.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creditLocked(to, amount)
	l.supply.Add(l.supply, amount)
	return nil
}

// Burn destroys tokens held by the account.
func (l *Ledger) Burn(from crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debitLocked(from, amount); err != nil {
		return err
	}
	l.supply.Sub(l.supply, amount)
	return nil
}

// Transfer moves tokens between two accounts.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debitLocked(from, amount); err != nil {
		return err
	}
	l.creditLocked(to, amount)
	return nil
}

func (l *Ledger) creditLocked(addr crypto.Address, amount *big.Int) {
	key := addr.String()
	current, ok := l.balances[key]
	if !ok || current == nil {
		current = big.NewInt(0)
	}
	l.balances[key] = new(big.Int).Add(current, amount)
}

func (l *Ledger) debitLocked(addr crypto.Address, amount *big.Int) error {
	key := addr.String()
	current, ok := l.balances[key]
	if !ok || current == nil || current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, %s requested",
			ErrInsufficientBalance, addr, l.balanceLocked(key), l.symbol, amount)
	}
	l.balances[key] = new(big.Int).Sub(current, amount)
	return nil
}

func (l *Ledger) balanceLocked(key string) *big.Int {
	current, ok := l.balances[key]
	if !ok || current == nil {
		return big.NewInt(0)
	}
	return current
}
