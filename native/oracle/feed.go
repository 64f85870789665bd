package oracle

import (
	"errors"
	"math/big"
	"sync"
	"time"
)

// PriceData is a single reading from an external price feed: the USD price of
// one whole token expressed with Decimals fractional digits, plus the time the
// feed reported it.
type PriceData struct {
	Price    *big.Int
	Decimals uint8
	AsOf     time.Time
}

// PriceFeed resolves the latest USD price for the collateral kind it is bound
// to. Implementations must return an error rather than a zero price when the
// upstream source is unavailable.
type PriceFeed interface {
	LatestPrice() (PriceData, error)
}

// ErrFeedUnavailable indicates the upstream source could not produce a price.
var ErrFeedUnavailable = errors.New("oracle: price feed unavailable")

// StaticFeed returns a fixed price. It backs local development deployments
// where no upstream feed exists.
type StaticFeed struct {
	price    *big.Int
	decimals uint8
}

// NewStaticFeed constructs a feed pinned at the provided price.
func NewStaticFeed(price *big.Int, decimals uint8) *StaticFeed {
	cloned := new(big.Int)
	if price != nil {
		cloned.Set(price)
	}
	return &StaticFeed{price: cloned, decimals: decimals}
}

// LatestPrice implements PriceFeed.
func (f *StaticFeed) LatestPrice() (PriceData, error) {
	return PriceData{
		Price:    new(big.Int).Set(f.price),
		Decimals: f.decimals,
		AsOf:     time.Now(),
	}, nil
}

// ManualFeed is a settable feed used by tests and by operator tooling to move
// a market deterministically.
type ManualFeed struct {
	mu       sync.RWMutex
	price    *big.Int
	decimals uint8
	err      error
}

// NewManualFeed constructs a settable feed with an initial price.
func NewManualFeed(price *big.Int, decimals uint8) *ManualFeed {
	cloned := new(big.Int)
	if price != nil {
		cloned.Set(price)
	}
	return &ManualFeed{price: cloned, decimals: decimals}
}

// SetPrice replaces the reported price.
func (f *ManualFeed) SetPrice(price *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if price == nil {
		f.price = new(big.Int)
		return
	}
	f.price = new(big.Int).Set(price)
}

// Fail forces every subsequent read to return the provided error until reset
// with a nil argument.
func (f *ManualFeed) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// LatestPrice implements PriceFeed.
func (f *ManualFeed) LatestPrice() (PriceData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return PriceData{}, f.err
	}
	return PriceData{
		Price:    new(big.Int).Set(f.price),
		Decimals: f.decimals,
		AsOf:     time.Now(),
	}, nil
}
