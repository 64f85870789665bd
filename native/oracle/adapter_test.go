package oracle

import (
	"errors"
	"math/big"
	"testing"
)

func eth(n int64) *big.Int {
	wei := big.NewInt(n)
	return wei.Mul(wei, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestNewAdapterRejectsMismatchedLists(t *testing.T) {
	kinds := []Kind{{Symbol: "WETH", Decimals: 18}, {Symbol: "WBTC", Decimals: 8}}
	feeds := []PriceFeed{NewStaticFeed(big.NewInt(2000_0000_0000), 8)}

	if _, err := NewAdapter(kinds, feeds); !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestNewAdapterRejectsDuplicateKinds(t *testing.T) {
	kinds := []Kind{{Symbol: "WETH", Decimals: 18}, {Symbol: "WETH", Decimals: 18}}
	feeds := []PriceFeed{NewStaticFeed(big.NewInt(1), 8), NewStaticFeed(big.NewInt(1), 8)}

	if _, err := NewAdapter(kinds, feeds); !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestValueOfNormalizesFeedPrecision(t *testing.T) {
	// 2000 USD per WETH reported with 8 feed decimals.
	feed := NewStaticFeed(big.NewInt(2000_0000_0000), 8)
	adapter, err := NewAdapter([]Kind{{Symbol: "WETH", Decimals: 18}}, []PriceFeed{feed})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	value, err := adapter.ValueOf("WETH", eth(3))
	if err != nil {
		t.Fatalf("value of: %v", err)
	}
	if value.Cmp(eth(6000)) != 0 {
		t.Fatalf("expected 6000e18, got %s", value)
	}
}

func TestValueOfZeroAmount(t *testing.T) {
	feed := NewStaticFeed(big.NewInt(100), 0)
	adapter, err := NewAdapter([]Kind{{Symbol: "WETH", Decimals: 18}}, []PriceFeed{feed})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	value, err := adapter.ValueOf("WETH", big.NewInt(0))
	if err != nil {
		t.Fatalf("value of: %v", err)
	}
	if value.Sign() != 0 {
		t.Fatalf("expected zero value, got %s", value)
	}
}

func TestAmountForInvertsValueOf(t *testing.T) {
	feed := NewStaticFeed(big.NewInt(2000_0000_0000), 8)
	adapter, err := NewAdapter([]Kind{{Symbol: "WETH", Decimals: 18}}, []PriceFeed{feed})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	// 100 USD at 2000 USD/WETH is 0.05 WETH.
	usd := eth(100)
	amount, err := adapter.AmountFor("WETH", usd)
	if err != nil {
		t.Fatalf("amount for: %v", err)
	}
	expected, _ := new(big.Int).SetString("50000000000000000", 10)
	if amount.Cmp(expected) != 0 {
		t.Fatalf("expected %s, got %s", expected, amount)
	}

	roundTrip, err := adapter.ValueOf("WETH", amount)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	diff := new(big.Int).Sub(usd, roundTrip)
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(2000)) > 0 {
		t.Fatalf("round trip diff outside one smallest unit: %s", diff)
	}
}

func TestRoundTripAcrossOddPrices(t *testing.T) {
	// Deliberately awkward price so truncation is exercised.
	feed := NewStaticFeed(big.NewInt(3_3333_3333), 8)
	adapter, err := NewAdapter([]Kind{{Symbol: "WBTC", Decimals: 8}}, []PriceFeed{feed})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	for _, usdWhole := range []int64{1, 7, 99, 12345} {
		usd := eth(usdWhole)
		amount, err := adapter.AmountFor("WBTC", usd)
		if err != nil {
			t.Fatalf("amount for %d: %v", usdWhole, err)
		}
		back, err := adapter.ValueOf("WBTC", amount)
		if err != nil {
			t.Fatalf("value of %d: %v", usdWhole, err)
		}
		if back.Cmp(usd) > 0 {
			t.Fatalf("round trip exceeded input for %d: %s > %s", usdWhole, back, usd)
		}
		// One smallest unit of WBTC at this price.
		unitValue, err := adapter.ValueOf("WBTC", big.NewInt(1))
		if err != nil {
			t.Fatalf("unit value: %v", err)
		}
		diff := new(big.Int).Sub(usd, back)
		if diff.Cmp(unitValue) > 0 {
			t.Fatalf("round trip error beyond one unit for %d: diff=%s unit=%s", usdWhole, diff, unitValue)
		}
	}
}

func TestNonPositivePriceIsHardFailure(t *testing.T) {
	feed := NewManualFeed(big.NewInt(0), 8)
	adapter, err := NewAdapter([]Kind{{Symbol: "WETH", Decimals: 18}}, []PriceFeed{feed})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	if _, err := adapter.ValueOf("WETH", eth(1)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero price, got %v", err)
	}

	feed.SetPrice(big.NewInt(-5))
	if _, err := adapter.AmountFor("WETH", eth(1)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for negative price, got %v", err)
	}
}

func TestFeedFailureSurfaces(t *testing.T) {
	feed := NewManualFeed(big.NewInt(100), 8)
	feed.Fail(ErrFeedUnavailable)
	adapter, err := NewAdapter([]Kind{{Symbol: "WETH", Decimals: 18}}, []PriceFeed{feed})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	if _, err := adapter.ValueOf("WETH", eth(1)); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice when feed fails, got %v", err)
	}
}

func TestUnsupportedKind(t *testing.T) {
	feed := NewStaticFeed(big.NewInt(100), 8)
	adapter, err := NewAdapter([]Kind{{Symbol: "WETH", Decimals: 18}}, []PriceFeed{feed})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if _, err := adapter.ValueOf("DOGE", big.NewInt(1)); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}
