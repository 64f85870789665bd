package vault

import (
	"fmt"
	"math/big"
	"sync"

	"synthvault/core/events"
	"synthvault/crypto"
	"synthvault/native/common"
	"synthvault/native/oracle"
)

const moduleName = "vault"

// Engine orchestrates the public position operations: it sequences ledger
// mutations, gates them with the health calculator, and drives the external
// token collaborators. Every mutating operation holds the operation gate
// through all external transfer calls; a collaborator calling back into a
// mutating method mid-operation is rejected with ErrReentrantCall instead of
// observing a half-applied state. Failures roll the touched ledger rows back
// to the checkpoint taken at entry, and domain events are emitted only once
// an operation has fully settled.
type Engine struct {
	// opGate serializes mutating operations. It is acquired with TryLock
	// so a re-entrant call fails fast; callers queue their own concurrent
	// operations.
	opGate sync.Mutex
	mu     sync.RWMutex

	params     RiskParameters
	oracle     *oracle.Adapter
	collateral *CollateralLedger
	debt       *DebtLedger
	health     *HealthCalculator
	synth      SyntheticToken
	tokens     map[string]CollateralToken
	store      *Store
	emitter    events.Emitter
	pauses     common.PauseView
}

// NewEngine constructs an engine over the registered collateral kinds. Every
// kind known to the oracle adapter must have a token collaborator; the kind
// set is immutable afterward.
func NewEngine(params RiskParameters, adapter *oracle.Adapter, synth SyntheticToken, tokens map[string]CollateralToken, emitter events.Emitter) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, fmt.Errorf("%w: oracle adapter required", ErrConfigMismatch)
	}
	if synth == nil {
		return nil, fmt.Errorf("%w: synthetic token collaborator required", ErrConfigMismatch)
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	bound := make(map[string]CollateralToken, len(tokens))
	for _, kind := range adapter.Kinds() {
		token, ok := tokens[kind]
		if !ok || token == nil {
			return nil, fmt.Errorf("%w: no token collaborator for %s", ErrConfigMismatch, kind)
		}
		bound[kind] = token
	}
	collateral := NewCollateralLedger(adapter)
	debt := NewDebtLedger()
	return &Engine{
		params:     params,
		oracle:     adapter,
		collateral: collateral,
		debt:       debt,
		health:     NewHealthCalculator(params, collateral, debt),
		synth:      synth,
		tokens:     bound,
		emitter:    emitter,
	}, nil
}

// SetPauses wires the operator pause switches.
func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetStore attaches a persistence layer and recovers previously written
// positions into the ledgers.
func (e *Engine) SetStore(store *Store) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = store
	positions, err := store.LoadPositions()
	if err != nil {
		return err
	}
	for _, position := range positions {
		e.collateral.load(position.Address, position.Collateral)
		e.debt.load(position.Address, position.Debt)
	}
	return nil
}

// lock acquires the write locks for one mutating operation and returns the
// release closure. A failed gate acquisition means a collaborator called back
// into the engine from inside an external transfer.
func (e *Engine) lock() (func(), error) {
	if !e.opGate.TryLock() {
		return nil, ErrReentrantCall
	}
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		e.opGate.Unlock()
	}, nil
}

// checkpoint snapshots the ledger rows for the given accounts and returns a
// restore closure for the failure paths.
func (e *Engine) checkpoint(accounts ...crypto.Address) func() {
	type snapshot struct {
		addr       crypto.Address
		collateral map[string]*big.Int
		debt       *big.Int
	}
	snaps := make([]snapshot, 0, len(accounts))
	for _, addr := range accounts {
		snaps = append(snaps, snapshot{
			addr:       addr,
			collateral: e.collateral.snapshotAccount(addr),
			debt:       e.debt.snapshot(addr),
		})
	}
	return func() {
		for _, snap := range snaps {
			e.collateral.restoreAccount(snap.addr, snap.collateral)
			e.debt.restore(snap.addr, snap.debt)
		}
	}
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Engine) collateralToken(kind string) (CollateralToken, error) {
	token, ok := e.tokens[kind]
	if !ok || !e.oracle.Supports(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCollateral, kind)
	}
	return token, nil
}

// requireSolvent rejects the operation when the account is below the minimum
// health factor, emitting a breach event with the offending value.
func (e *Engine) requireSolvent(addr crypto.Address, operation string) error {
	solvent, ratio, err := e.health.IsSolvent(addr)
	if err != nil {
		return err
	}
	if !solvent {
		e.emitter.Emit(events.HealthBreachRejected{
			Account:      addr,
			Operation:    operation,
			HealthFactor: new(big.Int).Set(ratio),
		})
		return &HealthFactorError{HealthFactor: ratio}
	}
	return nil
}

// persist writes the committed positions when a store is attached. A persist
// failure surfaces to the caller as a durability warning; the in-memory
// ledgers stay committed because the external transfers already settled.
func (e *Engine) persist(accounts ...crypto.Address) error {
	if e.store == nil {
		return nil
	}
	for _, addr := range accounts {
		if err := e.store.PutPosition(e.positionLocked(addr)); err != nil {
			return fmt.Errorf("vault engine: persist %s: %w", addr, err)
		}
	}
	return nil
}

func (e *Engine) positionLocked(addr crypto.Address) *Position {
	position := &Position{
		Address:    addr,
		Collateral: make(map[string]*big.Int),
		Debt:       e.debt.Debt(addr),
	}
	for _, kind := range e.oracle.Kinds() {
		balance := e.collateral.Balance(addr, kind)
		if balance.Sign() > 0 {
			position.Collateral[kind] = balance
		}
	}
	return position
}

func transferFailure(context string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransferFailed, context, err)
	}
	return fmt.Errorf("%w: %s", ErrTransferFailed, context)
}

// compensate reports a best-effort reversal of an already-settled external
// transfer; a failed compensation is appended to the original error so the
// caller can reconcile custody manually.
func compensate(original error, context string, ok bool, err error) error {
	if ok && err == nil {
		return original
	}
	return fmt.Errorf("%w (compensating %s failed: %v)", original, context, err)
}

// DepositCollateral pulls amount of kind from the account into custody and
// credits the collateral ledger. Deposits only improve the health factor, so
// no solvency check runs.
func (e *Engine) DepositCollateral(account crypto.Address, kind string, amount *big.Int) error {
	unlock, err := e.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	token, err := e.collateralToken(kind)
	if err != nil {
		return err
	}
	return e.depositLocked(token, account, kind, amount)
}

func (e *Engine) depositLocked(token CollateralToken, account crypto.Address, kind string, amount *big.Int) error {
	ok, err := token.TransferInto(account, amount)
	if !ok || err != nil {
		return transferFailure("pull collateral "+kind, err)
	}
	e.collateral.Credit(account, kind, amount)
	e.emitter.Emit(events.CollateralDeposited{
		Account: account,
		Kind:    kind,
		Amount:  new(big.Int).Set(amount),
	})
	return e.persist(account)
}

// MintDebt records new debt for the account and asks the synthetic token to
// mint. The ledger credit is rolled back when the post-state is unsolvent or
// the external mint fails.
func (e *Engine) MintDebt(account crypto.Address, amount *big.Int) error {
	unlock, err := e.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	restore := e.checkpoint(account)
	if err := e.mintLocked(account, amount); err != nil {
		restore()
		return err
	}
	e.emitter.Emit(events.DebtMinted{Account: account, Amount: new(big.Int).Set(amount)})
	return e.persist(account)
}

func (e *Engine) mintLocked(account crypto.Address, amount *big.Int) error {
	e.debt.Mint(account, amount)
	if err := e.requireSolvent(account, "mint"); err != nil {
		return err
	}
	ok, err := e.synth.MintTo(account, amount)
	if !ok || err != nil {
		return transferFailure("mint synthetic", err)
	}
	return nil
}

// DepositAndMint composes DepositCollateral and MintDebt as one atomic
// operation. A failure after the collateral pull pushes the collateral back
// to the account before reporting.
func (e *Engine) DepositAndMint(account crypto.Address, kind string, collateralAmount, debtAmount *big.Int) error {
	unlock, err := e.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := validAmount(collateralAmount); err != nil {
		return err
	}
	if err := validAmount(debtAmount); err != nil {
		return err
	}
	token, err := e.collateralToken(kind)
	if err != nil {
		return err
	}
	restore := e.checkpoint(account)
	ok, err := token.TransferInto(account, collateralAmount)
	if !ok || err != nil {
		return transferFailure("pull collateral "+kind, err)
	}
	e.collateral.Credit(account, kind, collateralAmount)
	if err := e.mintLocked(account, debtAmount); err != nil {
		restore()
		ok, tErr := token.TransferOut(account, collateralAmount)
		return compensate(err, "collateral return", ok, tErr)
	}
	e.emitter.Emit(events.CollateralDeposited{
		Account: account,
		Kind:    kind,
		Amount:  new(big.Int).Set(collateralAmount),
	})
	e.emitter.Emit(events.DebtMinted{Account: account, Amount: new(big.Int).Set(debtAmount)})
	return e.persist(account)
}

// BurnDebt retires amount of the account's debt: the SUSD is pulled from the
// account into custody and destroyed, then the ledger is debited. The
// trailing solvency check is a safety net; burning cannot worsen health.
func (e *Engine) BurnDebt(account crypto.Address, amount *big.Int) error {
	unlock, err := e.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	restore := e.checkpoint(account)
	if err := e.burnLocked(account, account, amount); err != nil {
		restore()
		return err
	}
	if err := e.requireSolvent(account, "burn"); err != nil {
		restore()
		ok, tErr := e.synth.MintTo(account, amount)
		return compensate(err, "synthetic re-mint", ok, tErr)
	}
	e.emitter.Emit(events.DebtBurned{Account: account, Amount: new(big.Int).Set(amount)})
	return e.persist(account)
}

// burnLocked pulls amount of SUSD from payer, destroys it, and debits the
// debtor's ledger entry. Ledger rollback stays with the caller; settled
// external transfers are compensated here.
func (e *Engine) burnLocked(debtor, payer crypto.Address, amount *big.Int) error {
	if err := e.debt.Burn(debtor, amount); err != nil {
		return err
	}
	ok, err := e.synth.TransferInto(payer, amount)
	if !ok || err != nil {
		return transferFailure("pull synthetic", err)
	}
	if err := e.synth.Burn(amount); err != nil {
		failed := transferFailure("burn synthetic", err)
		ok, tErr := e.synth.TransferOut(payer, amount)
		return compensate(failed, "synthetic return", ok, tErr)
	}
	return nil
}

// RedeemCollateral debits the account's collateral and pushes it back out,
// requiring the post-state to remain solvent.
func (e *Engine) RedeemCollateral(account crypto.Address, kind string, amount *big.Int) error {
	unlock, err := e.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	token, err := e.collateralToken(kind)
	if err != nil {
		return err
	}
	restore := e.checkpoint(account)
	if err := e.redeemLocked(token, account, account, kind, amount); err != nil {
		restore()
		return err
	}
	e.emitter.Emit(events.CollateralRedeemed{
		Initiator:    account,
		RedeemedFrom: account,
		Kind:         kind,
		Amount:       new(big.Int).Set(amount),
	})
	return e.persist(account)
}

// redeemLocked debits collateral from account and pushes it to beneficiary.
// The solvency check runs on the ledger post-state before the outbound
// transfer so a rejection never needs a compensating pull.
func (e *Engine) redeemLocked(token CollateralToken, initiator, account crypto.Address, kind string, amount *big.Int) error {
	if err := e.collateral.Debit(account, kind, amount); err != nil {
		return err
	}
	if err := e.requireSolvent(account, "redeem"); err != nil {
		return err
	}
	ok, err := token.TransferOut(initiator, amount)
	if !ok || err != nil {
		return transferFailure("push collateral "+kind, err)
	}
	return nil
}

// RedeemAndBurn retires debt first and then redeems collateral as one atomic
// operation; burning first widens the solvency margin before collateral
// leaves the position.
func (e *Engine) RedeemAndBurn(account crypto.Address, kind string, collateralAmount, debtAmount *big.Int) error {
	unlock, err := e.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := validAmount(collateralAmount); err != nil {
		return err
	}
	if err := validAmount(debtAmount); err != nil {
		return err
	}
	token, err := e.collateralToken(kind)
	if err != nil {
		return err
	}
	restore := e.checkpoint(account)
	if err := e.burnLocked(account, account, debtAmount); err != nil {
		restore()
		return err
	}
	if err := e.redeemLocked(token, account, account, kind, collateralAmount); err != nil {
		restore()
		ok, tErr := e.synth.MintTo(account, debtAmount)
		return compensate(err, "synthetic re-mint", ok, tErr)
	}
	e.emitter.Emit(events.DebtBurned{Account: account, Amount: new(big.Int).Set(debtAmount)})
	e.emitter.Emit(events.CollateralRedeemed{
		Initiator:    account,
		RedeemedFrom: account,
		Kind:         kind,
		Amount:       new(big.Int).Set(collateralAmount),
	})
	return e.persist(account)
}

// Liquidate lets a third party repay part of an unsolvent account's debt in
// exchange for a discounted slice of its collateral. Covering debt on a
// solvent account is rejected. Seizure is capped at the account's balance of
// the requested kind; when even a full seizure leaves the account unsolvent
// the operation still proceeds, otherwise deeply underwater positions could
// never be cleared.
func (e *Engine) Liquidate(liquidator crypto.Address, kind string, account crypto.Address, debtToCover *big.Int) error {
	unlock, err := e.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := validAmount(debtToCover); err != nil {
		return err
	}
	token, err := e.collateralToken(kind)
	if err != nil {
		return err
	}

	solvent, _, err := e.health.IsSolvent(account)
	if err != nil {
		return err
	}
	if solvent {
		return ErrHealthFactorOk
	}

	baseAmount, err := e.oracle.AmountFor(kind, debtToCover)
	if err != nil {
		return err
	}
	bonus := new(big.Int).Mul(baseAmount, new(big.Int).SetUint64(e.params.LiquidationBonus))
	bonus.Quo(bonus, liquidationPrecision)
	seize := new(big.Int).Add(baseAmount, bonus)
	if available := e.collateral.Balance(account, kind); seize.Cmp(available) > 0 {
		seize.Set(available)
	}

	restore := e.checkpoint(account)
	if err := e.debt.Burn(account, debtToCover); err != nil {
		restore()
		return err
	}
	if err := e.collateral.Debit(account, kind, seize); err != nil {
		restore()
		return err
	}
	// The liquidator pays with their own tokens; their ledger position is
	// untouched, so this only rejects liquidators who were already
	// unsolvent themselves.
	if err := e.requireSolvent(liquidator, "liquidate"); err != nil {
		restore()
		return err
	}
	ok, err := e.synth.TransferInto(liquidator, debtToCover)
	if !ok || err != nil {
		restore()
		return transferFailure("pull synthetic from liquidator", err)
	}
	if err := e.synth.Burn(debtToCover); err != nil {
		restore()
		failed := transferFailure("burn synthetic", err)
		ok, tErr := e.synth.TransferOut(liquidator, debtToCover)
		return compensate(failed, "synthetic return", ok, tErr)
	}
	ok, err = token.TransferOut(liquidator, seize)
	if !ok || err != nil {
		restore()
		failed := transferFailure("push seized collateral", err)
		ok, tErr := e.synth.MintTo(liquidator, debtToCover)
		return compensate(failed, "synthetic re-mint", ok, tErr)
	}
	e.emitter.Emit(events.DebtBurned{Account: account, Amount: new(big.Int).Set(debtToCover)})
	e.emitter.Emit(events.CollateralRedeemed{
		Initiator:    liquidator,
		RedeemedFrom: account,
		Kind:         kind,
		Amount:       new(big.Int).Set(seize),
	})
	return e.persist(account)
}

// --- Read accessors ---

// HealthFactor returns the account's current solvency ratio.
func (e *Engine) HealthFactor(account crypto.Address) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health.HealthFactor(account)
}

// AccountCollateralValue returns the USD value of every deposited collateral
// kind in 1e18 fixed point.
func (e *Engine) AccountCollateralValue(account crypto.Address) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collateral.TotalValueUSD(account)
}

// TokenAmountFromUSD converts a USD value into a quantity of the collateral
// kind at the current feed price.
func (e *Engine) TokenAmountFromUSD(kind string, usdValue *big.Int) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.oracle.Supports(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCollateral, kind)
	}
	if usdValue == nil || usdValue.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return e.oracle.AmountFor(kind, usdValue)
}

// CollateralBalance returns the deposited amount of kind for the account.
func (e *Engine) CollateralBalance(account crypto.Address, kind string) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collateral.Balance(account, kind)
}

// Debt returns the account's outstanding minted SUSD.
func (e *Engine) Debt(account crypto.Address) *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debt.Debt(account)
}

// Position returns a snapshot of the account's collateral and debt.
func (e *Engine) Position(account crypto.Address) *Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.positionLocked(account)
}

// CollateralKinds lists the registered collateral symbols.
func (e *Engine) CollateralKinds() []string {
	return e.oracle.Kinds()
}
