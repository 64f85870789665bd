package vault

import (
	"math/big"

	"synthvault/crypto"
)

// CollateralToken is the external fungible-token collaborator for one
// registered collateral kind. Both calls move value between the holder and
// the engine's custody and return a success signal the engine must check.
type CollateralToken interface {
	TransferInto(from crypto.Address, amount *big.Int) (bool, error)
	TransferOut(to crypto.Address, amount *big.Int) (bool, error)
}

// SyntheticToken is the external collaborator managing the SUSD supply. The
// engine mints to accounts, pulls tokens into custody before destroying them,
// and pushes tokens back out when compensating a failed multi-step operation.
type SyntheticToken interface {
	MintTo(account crypto.Address, amount *big.Int) (bool, error)
	TransferInto(from crypto.Address, amount *big.Int) (bool, error)
	TransferOut(to crypto.Address, amount *big.Int) (bool, error)
	Burn(amount *big.Int) error
}
