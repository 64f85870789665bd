package vault

import (
	"math/big"
	"testing"

	"synthvault/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	store := NewStore(db)

	account := makeAddress(0x01)
	position := &Position{
		Address: account,
		Collateral: map[string]*big.Int{
			wethKind: weth(1000),
			"WBTC":   big.NewInt(5_000_000),
		},
		Debt: usd(250),
	}
	if err := store.PutPosition(position); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.LoadPositions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d positions, want 1", len(loaded))
	}
	got := loaded[0]
	if !got.Address.Equal(account) {
		t.Fatalf("address = %s, want %s", got.Address, account)
	}
	if got.Debt.Cmp(usd(250)) != 0 {
		t.Fatalf("debt = %s, want %s", got.Debt, usd(250))
	}
	if got.Collateral[wethKind].Cmp(weth(1000)) != 0 {
		t.Fatalf("weth = %s, want %s", got.Collateral[wethKind], weth(1000))
	}
	if got.Collateral["WBTC"].Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("wbtc = %s, want 5000000", got.Collateral["WBTC"])
	}
}

func TestStoreDropsZeroBalances(t *testing.T) {
	db := storage.NewMemDB()
	store := NewStore(db)

	account := makeAddress(0x02)
	position := &Position{
		Address: account,
		Collateral: map[string]*big.Int{
			wethKind: big.NewInt(0),
		},
		Debt: big.NewInt(0),
	}
	if err := store.PutPosition(position); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.LoadPositions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d positions, want 1", len(loaded))
	}
	if len(loaded[0].Collateral) != 0 {
		t.Fatalf("zero balances must not persist, got %+v", loaded[0].Collateral)
	}
}

func TestEngineRecoversFromStore(t *testing.T) {
	db := storage.NewMemDB()

	first := newTestEngine(t, 1000)
	if err := first.engine.SetStore(NewStore(db)); err != nil {
		t.Fatalf("attach store: %v", err)
	}
	account := makeAddress(0x01)
	mustDeposit(t, first, account, weth(1000))
	mustMint(t, first, account, usd(400))

	second := newTestEngine(t, 1000)
	if err := second.engine.SetStore(NewStore(db)); err != nil {
		t.Fatalf("recover store: %v", err)
	}
	if got := second.engine.CollateralBalance(account, wethKind); got.Cmp(weth(1000)) != 0 {
		t.Fatalf("recovered balance = %s, want %s", got, weth(1000))
	}
	if got := second.engine.Debt(account); got.Cmp(usd(400)) != 0 {
		t.Fatalf("recovered debt = %s, want %s", got, usd(400))
	}

	// The recovered ledgers carry real state: paying the debt down works.
	if err := second.engine.BurnDebt(account, usd(400)); err != nil {
		t.Fatalf("burn after recovery: %v", err)
	}
	if err := second.engine.RedeemCollateral(account, wethKind, weth(1000)); err != nil {
		t.Fatalf("redeem after recovery: %v", err)
	}
}
