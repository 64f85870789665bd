package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"synthvault/crypto"
	"synthvault/native/common"
	"synthvault/native/token"
	"synthvault/native/vault"
)

type vaultAccountParams struct {
	Account string `json:"account"`
}

type vaultAmountParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type vaultCollateralParams struct {
	Account string `json:"account"`
	Kind    string `json:"kind"`
	Amount  string `json:"amount"`
}

type vaultComboParams struct {
	Account          string `json:"account"`
	Kind             string `json:"kind"`
	CollateralAmount string `json:"collateralAmount"`
	DebtAmount       string `json:"debtAmount"`
}

type vaultLiquidateParams struct {
	Liquidator  string `json:"liquidator"`
	Account     string `json:"account"`
	Kind        string `json:"kind"`
	DebtToCover string `json:"debtToCover"`
}

type vaultUsdParams struct {
	Kind string `json:"kind"`
	USD  string `json:"usd"`
}

type tokenBalanceParams struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
}

type tokenFundParams struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Amount  string `json:"amount"`
}

type vaultTxResult struct {
	Status string `json:"status"`
}

type vaultPositionResult struct {
	Account      string            `json:"account"`
	Collateral   map[string]string `json:"collateral"`
	Debt         string            `json:"debt"`
	HealthFactor string            `json:"healthFactor"`
}

var txAccepted = vaultTxResult{Status: "ok"}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single parameter object, got %d", len(req.Params))
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAccount(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q is not a base-10 integer", field, value)
	}
	return amount, nil
}

// writeEngineError maps engine sentinels onto JSON-RPC error codes. Solvency
// rejections carry the offending health factor in the error data.
func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, err error) {
	var hfErr *vault.HealthFactorError
	switch {
	case errors.As(err, &hfErr):
		s.metrics.BreachRejected(req.Method)
		writeError(w, http.StatusConflict, req.ID, codeHealthBreach, "operation would break the minimum health factor", hfErr.HealthFactor.String())
	case errors.Is(err, vault.ErrHealthFactorOk):
		writeError(w, http.StatusConflict, req.ID, codeTargetHealthy, "account is not eligible for liquidation", nil)
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, req.ID, codeModulePaused, "vault module is paused", nil)
	case errors.Is(err, vault.ErrInvalidAmount), errors.Is(err, vault.ErrUnsupportedCollateral):
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
	}
}

// run executes a mutating engine call, recording metrics and the outcome log
// line shared by every vault method.
func (s *Server) run(w http.ResponseWriter, req *RPCRequest, op func() error) {
	started := time.Now()
	s.opMu.Lock()
	err := op()
	s.opMu.Unlock()
	s.metrics.Observe(req.Method, err != nil, time.Since(started))
	if err != nil {
		s.logger.Warn("vault operation rejected", "method", req.Method, "error", err.Error())
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, txAccepted)
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultCollateralParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.run(w, req, func() error {
		return s.engine.DepositCollateral(account, params.Kind, amount)
	})
}

func (s *Server) handleMintDebt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.run(w, req, func() error {
		return s.engine.MintDebt(account, amount)
	})
}

func (s *Server) handleDepositAndMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultComboParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateralAmount, err := parseAmount("collateralAmount", params.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	debtAmount, err := parseAmount("debtAmount", params.DebtAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.run(w, req, func() error {
		return s.engine.DepositAndMint(account, params.Kind, collateralAmount, debtAmount)
	})
}

func (s *Server) handleBurnDebt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.run(w, req, func() error {
		return s.engine.BurnDebt(account, amount)
	})
}

func (s *Server) handleRedeemCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultCollateralParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.run(w, req, func() error {
		return s.engine.RedeemCollateral(account, params.Kind, amount)
	})
}

func (s *Server) handleRedeemAndBurn(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultComboParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateralAmount, err := parseAmount("collateralAmount", params.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	debtAmount, err := parseAmount("debtAmount", params.DebtAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.run(w, req, func() error {
		return s.engine.RedeemAndBurn(account, params.Kind, collateralAmount, debtAmount)
	})
}

func (s *Server) handleLiquidate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultLiquidateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liquidator, err := parseAccount("liquidator", params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	debtToCover, err := parseAmount("debtToCover", params.DebtToCover)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.run(w, req, func() error {
		if err := s.engine.Liquidate(liquidator, params.Kind, account, debtToCover); err != nil {
			return err
		}
		s.metrics.LiquidationCompleted()
		return nil
	})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position := s.engine.Position(account)
	hf, err := s.engine.HealthFactor(account)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	result := vaultPositionResult{
		Account:      position.Address.String(),
		Collateral:   make(map[string]string, len(position.Collateral)),
		Debt:         position.Debt.String(),
		HealthFactor: hf.String(),
	}
	for kind, amount := range position.Collateral {
		result.Collateral[kind] = amount.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetHealthFactor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	hf, err := s.engine.HealthFactor(account)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, hf.String())
}

func (s *Server) handleGetAccountCollateralValue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	value, err := s.engine.AccountCollateralValue(account)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, value.String())
}

func (s *Server) handleGetTokenAmountFromUsd(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params vaultUsdParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	usdValue, err := parseAmount("usd", params.USD)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := s.engine.TokenAmountFromUSD(params.Kind, usdValue)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amount.String())
}

func (s *Server) handleListCollateral(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	writeResult(w, req.ID, s.engine.CollateralKinds())
}

func (s *Server) tokenLedger(symbol string) (*token.Ledger, bool) {
	if s.synth != nil && symbol == s.synth.Symbol() {
		return s.synth, true
	}
	ledger, ok := s.collateral[symbol]
	return ledger, ok
}

func (s *Server) handleTokenGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ledger, ok := s.tokenLedger(params.Symbol)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("unknown token %q", params.Symbol), nil)
		return
	}
	writeResult(w, req.ID, ledger.BalanceOf(account).String())
}

// handleTokenFund credits collateral tokens to an account. Only mounted in
// dev environments to seed local testing balances.
func (s *Server) handleTokenFund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenFundParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	account, err := parseAccount("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ledger, ok := s.collateral[params.Symbol]
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("unknown collateral token %q", params.Symbol), nil)
		return
	}
	if err := ledger.Mint(account, amount); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, txAccepted)
}

type newAccountResult struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

// handleNewAccount generates a fresh keypair and returns the bech32 address
// with the private key hex. Only mounted in dev environments; production key
// custody stays outside the daemon.
func (s *Server) handleNewAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, newAccountResult{
		Address:    key.PubKey().Address().String(),
		PrivateKey: hex.EncodeToString(key.Bytes()),
	})
}
