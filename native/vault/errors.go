package vault

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidAmount          = errors.New("vault engine: amount must be positive")
	ErrUnsupportedCollateral  = errors.New("vault engine: collateral kind not registered")
	ErrTransferFailed         = errors.New("vault engine: token transfer failed")
	ErrInsufficientCollateral = errors.New("vault engine: insufficient collateral balance")
	ErrExcessiveBurn          = errors.New("vault engine: burn exceeds outstanding debt")
	ErrHealthFactorBroken     = errors.New("vault engine: health factor below minimum")
	ErrHealthFactorOk         = errors.New("vault engine: account not eligible for liquidation")
	ErrConfigMismatch         = errors.New("vault engine: configuration mismatch")
	ErrReentrantCall          = errors.New("vault engine: operation already in progress")
)

// HealthFactorError carries the unsafe health factor alongside the sentinel
// so callers can branch on cause and report the offending value.
type HealthFactorError struct {
	HealthFactor *big.Int
}

func (e *HealthFactorError) Error() string {
	if e == nil || e.HealthFactor == nil {
		return ErrHealthFactorBroken.Error()
	}
	return fmt.Sprintf("%s (health factor %s)", ErrHealthFactorBroken, e.HealthFactor)
}

// Unwrap lets errors.Is match ErrHealthFactorBroken.
func (e *HealthFactorError) Unwrap() error { return ErrHealthFactorBroken }
