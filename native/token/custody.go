package token

import (
	"math/big"

	"synthvault/crypto"
)

// Custody adapts a Ledger to the vault engine's collateral collaborator
// surface. Transfers settle against a fixed custody account owned by the
// engine; the boolean return mirrors the engine's transfer contract, where a
// false result without an error still aborts the operation.
type Custody struct {
	ledger *Ledger
	vault  crypto.Address
}

// NewCustody binds the ledger to the custody account.
func NewCustody(ledger *Ledger, vault crypto.Address) *Custody {
	return &Custody{ledger: ledger, vault: vault}
}

// TransferInto pulls tokens from the account into custody.
func (c *Custody) TransferInto(from crypto.Address, amount *big.Int) (bool, error) {
	if err := c.ledger.Transfer(from, c.vault, amount); err != nil {
		return false, err
	}
	return true, nil
}

// TransferOut pushes custodied tokens back to the account.
func (c *Custody) TransferOut(to crypto.Address, amount *big.Int) (bool, error) {
	if err := c.ledger.Transfer(c.vault, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// SynthCustody adapts the synthetic token ledger to the engine's mint and
// burn surface. Burns consume the custody account's holdings, which the
// engine fills via TransferInto before every burn.
type SynthCustody struct {
	Custody
}

// NewSynthCustody binds the synthetic token ledger to the custody account.
func NewSynthCustody(ledger *Ledger, vault crypto.Address) *SynthCustody {
	return &SynthCustody{Custody: Custody{ledger: ledger, vault: vault}}
}

// MintTo creates new synthetic tokens directly in the account's balance.
func (c *SynthCustody) MintTo(to crypto.Address, amount *big.Int) (bool, error) {
	if err := c.ledger.Mint(to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// Burn destroys custodied synthetic tokens.
func (c *SynthCustody) Burn(amount *big.Int) error {
	return c.ledger.Burn(c.vault, amount)
}
