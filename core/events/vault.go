package events

import (
	"math/big"

	"synthvault/core/types"
	"synthvault/crypto"
)

const (
	// TypeCollateralDeposited is emitted whenever collateral is locked in
	// the vault for an account.
	TypeCollateralDeposited = "vault.collateral.deposited"
	// TypeCollateralRedeemed is emitted whenever collateral leaves the
	// vault, including seizures during liquidation.
	TypeCollateralRedeemed = "vault.collateral.redeemed"
	// TypeDebtMinted is emitted when SUSD debt is minted against a
	// position.
	TypeDebtMinted = "vault.debt.minted"
	// TypeDebtBurned is emitted when SUSD debt is repaid and destroyed.
	TypeDebtBurned = "vault.debt.burned"
	// TypeHealthBreachRejected is emitted when an operation is rejected
	// because it would leave the account below the minimum health factor.
	TypeHealthBreachRejected = "vault.health.breach_rejected"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// CollateralDeposited records a collateral credit for an account.
type CollateralDeposited struct {
	Account crypto.Address
	Kind    string
	Amount  *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

// Attributes renders the event payload as loggable key/value pairs.
func (e CollateralDeposited) Attributes() map[string]any {
	return map[string]any{
		"account": e.Account.String(),
		"kind":    e.Kind,
		"amount":  amountString(e.Amount),
	}
}

// Event converts the payload into the wire representation.
func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"kind":    e.Kind,
			"amount":  amountString(e.Amount),
		},
	}
}

// CollateralRedeemed records a collateral debit. Initiator and RedeemedFrom
// differ when a liquidator seizes another account's collateral.
type CollateralRedeemed struct {
	Initiator    crypto.Address
	RedeemedFrom crypto.Address
	Kind         string
	Amount       *big.Int
}

func (CollateralRedeemed) EventType() string { return TypeCollateralRedeemed }

// Attributes renders the event payload as loggable key/value pairs.
func (e CollateralRedeemed) Attributes() map[string]any {
	return map[string]any{
		"initiator":    e.Initiator.String(),
		"redeemedFrom": e.RedeemedFrom.String(),
		"kind":         e.Kind,
		"amount":       amountString(e.Amount),
	}
}

// Event converts the payload into the wire representation.
func (e CollateralRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralRedeemed,
		Attributes: map[string]string{
			"initiator":    e.Initiator.String(),
			"redeemedFrom": e.RedeemedFrom.String(),
			"kind":         e.Kind,
			"amount":       amountString(e.Amount),
		},
	}
}

// DebtMinted records new SUSD debt assigned to an account.
type DebtMinted struct {
	Account crypto.Address
	Amount  *big.Int
}

func (DebtMinted) EventType() string { return TypeDebtMinted }

// Attributes renders the event payload as loggable key/value pairs.
func (e DebtMinted) Attributes() map[string]any {
	return map[string]any{
		"account": e.Account.String(),
		"amount":  amountString(e.Amount),
	}
}

// Event converts the payload into the wire representation.
func (e DebtMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeDebtMinted,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  amountString(e.Amount),
		},
	}
}

// DebtBurned records SUSD debt repaid for an account.
type DebtBurned struct {
	Account crypto.Address
	Amount  *big.Int
}

func (DebtBurned) EventType() string { return TypeDebtBurned }

// Attributes renders the event payload as loggable key/value pairs.
func (e DebtBurned) Attributes() map[string]any {
	return map[string]any{
		"account": e.Account.String(),
		"amount":  amountString(e.Amount),
	}
}

// Event converts the payload into the wire representation.
func (e DebtBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeDebtBurned,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  amountString(e.Amount),
		},
	}
}

// HealthBreachRejected records an operation rejected by the solvency check,
// carrying the offending health factor for observability.
type HealthBreachRejected struct {
	Account      crypto.Address
	Operation    string
	HealthFactor *big.Int
}

func (HealthBreachRejected) EventType() string { return TypeHealthBreachRejected }

// Attributes renders the event payload as loggable key/value pairs.
func (e HealthBreachRejected) Attributes() map[string]any {
	return map[string]any{
		"account":      e.Account.String(),
		"operation":    e.Operation,
		"healthFactor": amountString(e.HealthFactor),
	}
}

// Event converts the payload into the wire representation.
func (e HealthBreachRejected) Event() *types.Event {
	return &types.Event{
		Type: TypeHealthBreachRejected,
		Attributes: map[string]string{
			"account":      e.Account.String(),
			"operation":    e.Operation,
			"healthFactor": amountString(e.HealthFactor),
		},
	}
}
