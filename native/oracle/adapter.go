package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrConfigMismatch is returned when the collateral kind and feed
	// lists supplied at construction do not line up.
	ErrConfigMismatch = errors.New("oracle: collateral kinds and price feeds must align")
	// ErrUnsupportedKind is returned for collateral kinds with no feed
	// binding.
	ErrUnsupportedKind = errors.New("oracle: unsupported collateral kind")
	// ErrInvalidPrice is returned when a feed reports a non-positive price
	// or a precision the adapter cannot normalize. A zero price must never
	// be treated as a zero valuation.
	ErrInvalidPrice = errors.New("oracle: invalid price reading")
)

// internalDecimals is the fixed-point precision every valuation is normalized
// to before the engine consumes it.
const internalDecimals = 18

var ten = big.NewInt(10)

// Kind describes one registered collateral token: its symbol and the number
// of fractional digits in its smallest denomination.
type Kind struct {
	Symbol   string
	Decimals uint8
}

type binding struct {
	feed       PriceFeed
	tokenScale *big.Int
}

// Adapter normalizes heterogeneous feed precisions into the engine's 1e18
// fixed point and converts between token quantities and USD values. The kind
// set is fixed at construction and never mutated afterward.
type Adapter struct {
	kinds    []string
	bindings map[string]binding
}

// NewAdapter binds each collateral kind to its price feed. The two lists are
// parallel; a length mismatch, duplicate symbol, or nil feed fails
// construction.
func NewAdapter(kinds []Kind, feeds []PriceFeed) (*Adapter, error) {
	if len(kinds) != len(feeds) {
		return nil, fmt.Errorf("%w: %d kinds, %d feeds", ErrConfigMismatch, len(kinds), len(feeds))
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("%w: at least one collateral kind required", ErrConfigMismatch)
	}
	adapter := &Adapter{
		kinds:    make([]string, 0, len(kinds)),
		bindings: make(map[string]binding, len(kinds)),
	}
	for i, kind := range kinds {
		symbol := strings.TrimSpace(kind.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("%w: empty collateral symbol at index %d", ErrConfigMismatch, i)
		}
		if _, exists := adapter.bindings[symbol]; exists {
			return nil, fmt.Errorf("%w: duplicate collateral kind %s", ErrConfigMismatch, symbol)
		}
		if feeds[i] == nil {
			return nil, fmt.Errorf("%w: nil feed for %s", ErrConfigMismatch, symbol)
		}
		scale := new(big.Int).Exp(ten, big.NewInt(int64(kind.Decimals)), nil)
		adapter.bindings[symbol] = binding{feed: feeds[i], tokenScale: scale}
		adapter.kinds = append(adapter.kinds, symbol)
	}
	return adapter, nil
}

// Kinds returns the registered collateral symbols in construction order.
func (a *Adapter) Kinds() []string {
	return append([]string(nil), a.kinds...)
}

// Supports reports whether the kind has a feed binding.
func (a *Adapter) Supports(kind string) bool {
	_, ok := a.bindings[kind]
	return ok
}

// normalizedPrice performs a single feed read and scales the native price up
// or down to the internal 1e18 fixed point.
func (a *Adapter) normalizedPrice(kind string) (*big.Int, *big.Int, error) {
	bound, ok := a.bindings[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	data, err := bound.feed.LatestPrice()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrInvalidPrice, kind, err)
	}
	if data.Price == nil || data.Price.Sign() <= 0 {
		return nil, nil, fmt.Errorf("%w: %s reported non-positive price", ErrInvalidPrice, kind)
	}
	price := new(big.Int).Set(data.Price)
	if data.Decimals <= internalDecimals {
		exp := big.NewInt(int64(internalDecimals - data.Decimals))
		price.Mul(price, new(big.Int).Exp(ten, exp, nil))
	} else {
		exp := big.NewInt(int64(data.Decimals - internalDecimals))
		price.Quo(price, new(big.Int).Exp(ten, exp, nil))
		if price.Sign() <= 0 {
			return nil, nil, fmt.Errorf("%w: %s price vanishes after normalization", ErrInvalidPrice, kind)
		}
	}
	return price, bound.tokenScale, nil
}

// ValueOf converts an amount of the collateral kind (in smallest units) into
// a USD value in 1e18 fixed point. Each call performs exactly one feed read.
func (a *Adapter) ValueOf(kind string, amount *big.Int) (*big.Int, error) {
	price, tokenScale, err := a.normalizedPrice(kind)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	value := new(big.Int).Mul(price, amount)
	return value.Quo(value, tokenScale), nil
}

// AmountFor is the inverse of ValueOf: it converts a USD value in 1e18 fixed
// point into a quantity of the collateral kind in smallest units. Truncation
// rounds down, so ValueOf(AmountFor(v)) <= v within one smallest unit.
func (a *Adapter) AmountFor(kind string, usdValue *big.Int) (*big.Int, error) {
	price, tokenScale, err := a.normalizedPrice(kind)
	if err != nil {
		return nil, err
	}
	if usdValue == nil || usdValue.Sign() == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int).Mul(usdValue, tokenScale)
	return amount.Quo(amount, price), nil
}
