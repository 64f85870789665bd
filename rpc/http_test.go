package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"synthvault/crypto"
	"synthvault/native/oracle"
	"synthvault/native/token"
	"synthvault/native/vault"
)

const testToken = "test-secret"

func makeAddress(seed byte) crypto.Address {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = seed
	}
	return crypto.NewAddress(crypto.VaultPrefix, raw)
}

func oneEther() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), oneEther())
}

type testEnv struct {
	server *httptest.Server
	feed   *oracle.ManualFeed
	weth   *token.Ledger
	susd   *token.Ledger
	alice  crypto.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("SYNTHVAULT_RPC_TOKEN", testToken)

	feed := oracle.NewManualFeed(new(big.Int).Mul(big.NewInt(1000), big.NewInt(100_000_000)), 8)
	adapter, err := oracle.NewAdapter(
		[]oracle.Kind{{Symbol: "WETH", Decimals: 18}},
		[]oracle.PriceFeed{feed},
	)
	require.NoError(t, err)

	custodyAddr := makeAddress(0xff)
	weth := token.NewLedger("WETH", 18)
	susd := token.NewLedger("SUSD", 18)
	engine, err := vault.NewEngine(
		vault.RiskParameters{LiquidationThreshold: 50, LiquidationBonus: 10},
		adapter,
		token.NewSynthCustody(susd, custodyAddr),
		map[string]vault.CollateralToken{"WETH": token.NewCustody(weth, custodyAddr)},
		nil,
	)
	require.NoError(t, err)

	alice := makeAddress(0x01)
	require.NoError(t, weth.Mint(alice, new(big.Int).Mul(big.NewInt(10), oneEther())))

	rpcServer := NewServer(engine, susd, map[string]*token.Ledger{"WETH": weth}, true, nil)
	server := httptest.NewServer(rpcServer.Router())
	t.Cleanup(server.Close)
	return &testEnv{server: server, feed: feed, weth: weth, susd: susd, alice: alice}
}

func (env *testEnv) call(t *testing.T, authed bool, method string, params ...interface{}) (*RPCResponse, int) {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, encoded)
	}
	payload, err := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
		"params":  rawParams,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded, resp.StatusCode
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	resp, status := env.call(t, false, "vault_depositCollateral", vaultCollateralParams{
		Account: env.alice.String(),
		Kind:    "WETH",
		Amount:  oneEther().String(),
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestDepositMintAndQueryPosition(t *testing.T) {
	env := newTestEnv(t)

	resp, status := env.call(t, true, "vault_depositCollateral", vaultCollateralParams{
		Account: env.alice.String(),
		Kind:    "WETH",
		Amount:  oneEther().String(),
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	resp, status = env.call(t, true, "vault_mintDebt", vaultAmountParams{
		Account: env.alice.String(),
		Amount:  usd(400).String(),
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	// The synthetic ledger now carries the minted balance.
	require.Equal(t, 0, env.susd.BalanceOf(env.alice).Cmp(usd(400)))

	resp, status = env.call(t, false, "vault_getPosition", vaultAccountParams{Account: env.alice.String()})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var position vaultPositionResult
	require.NoError(t, json.Unmarshal(encoded, &position))
	require.Equal(t, usd(400).String(), position.Debt)
	require.Equal(t, oneEther().String(), position.Collateral["WETH"])
}

func TestMintBeyondLimitReturnsHealthBreach(t *testing.T) {
	env := newTestEnv(t)

	_, status := env.call(t, true, "vault_depositCollateral", vaultCollateralParams{
		Account: env.alice.String(),
		Kind:    "WETH",
		Amount:  oneEther().String(),
	})
	require.Equal(t, http.StatusOK, status)

	resp, status := env.call(t, true, "vault_mintDebt", vaultAmountParams{
		Account: env.alice.String(),
		Amount:  usd(501).String(),
	})
	require.Equal(t, http.StatusConflict, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeHealthBreach, resp.Error.Code)
	// The offending health factor rides along for clients.
	require.NotEmpty(t, resp.Error.Data)
}

func TestQueryMethodsAreOpen(t *testing.T) {
	env := newTestEnv(t)

	resp, status := env.call(t, false, "vault_getHealthFactor", vaultAccountParams{Account: env.alice.String()})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	require.Equal(t, vault.MaxHealthFactor.String(), resp.Result)

	resp, status = env.call(t, false, "vault_getTokenAmountFromUsd", vaultUsdParams{
		Kind: "WETH",
		USD:  usd(100).String(),
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	// 100 USD at a $1000 price is a tenth of a token.
	tenth := new(big.Int).Quo(oneEther(), big.NewInt(10))
	require.Equal(t, tenth.String(), resp.Result)

	resp, status = env.call(t, false, "vault_listCollateral")
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
}

func TestDevFaucetFundsCollateral(t *testing.T) {
	env := newTestEnv(t)
	bob := makeAddress(0x02)

	resp, status := env.call(t, true, "token_fund", tokenFundParams{
		Account: bob.String(),
		Symbol:  "WETH",
		Amount:  oneEther().String(),
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	require.Equal(t, 0, env.weth.BalanceOf(bob).Cmp(oneEther()))

	resp, _ = env.call(t, false, "token_getBalance", tokenBalanceParams{
		Account: bob.String(),
		Symbol:  "WETH",
	})
	require.Nil(t, resp.Error)
	require.Equal(t, oneEther().String(), resp.Result)
}

func TestLiquidateOverRPC(t *testing.T) {
	env := newTestEnv(t)
	liquidator := makeAddress(0x02)

	// Alice opens a position, mints SUSD, and transfers it to the
	// liquidator so they can pay for the seizure.
	tenth := new(big.Int).Quo(oneEther(), big.NewInt(10))
	_, status := env.call(t, true, "vault_depositCollateral", vaultCollateralParams{
		Account: env.alice.String(),
		Kind:    "WETH",
		Amount:  tenth.String(),
	})
	require.Equal(t, http.StatusOK, status)
	_, status = env.call(t, true, "vault_mintDebt", vaultAmountParams{
		Account: env.alice.String(),
		Amount:  usd(40).String(),
	})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, env.susd.Transfer(env.alice, liquidator, usd(40)))

	// A solvent target is not liquidatable.
	resp, status := env.call(t, true, "vault_liquidate", vaultLiquidateParams{
		Liquidator:  liquidator.String(),
		Account:     env.alice.String(),
		Kind:        "WETH",
		DebtToCover: usd(40).String(),
	})
	require.Equal(t, http.StatusConflict, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeTargetHealthy, resp.Error.Code)

	// Halve the price and clear the position.
	env.feed.SetPrice(new(big.Int).Mul(big.NewInt(500), big.NewInt(100_000_000)))
	resp, status = env.call(t, true, "vault_liquidate", vaultLiquidateParams{
		Liquidator:  liquidator.String(),
		Account:     env.alice.String(),
		Kind:        "WETH",
		DebtToCover: usd(40).String(),
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	// 40 USD at $500 plus the 10% bonus is 0.088 WETH to the liquidator.
	seized := new(big.Int).Mul(big.NewInt(88), new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
	require.Equal(t, 0, env.weth.BalanceOf(liquidator).Cmp(seized))
	require.Equal(t, 0, env.susd.BalanceOf(liquidator).Sign())
}

func TestUnknownMethod(t *testing.T) {
	env := newTestEnv(t)

	resp, status := env.call(t, false, "vault_doesNotExist")
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedEnvelope(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	decoded := &RPCResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeParseError, decoded.Error.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFaucetDisabledOutsideDev(t *testing.T) {
	t.Setenv("SYNTHVAULT_RPC_TOKEN", testToken)

	feed := oracle.NewStaticFeed(big.NewInt(100_000_000_000), 8)
	adapter, err := oracle.NewAdapter(
		[]oracle.Kind{{Symbol: "WETH", Decimals: 18}},
		[]oracle.PriceFeed{feed},
	)
	require.NoError(t, err)
	custodyAddr := makeAddress(0xff)
	weth := token.NewLedger("WETH", 18)
	susd := token.NewLedger("SUSD", 18)
	engine, err := vault.NewEngine(
		vault.RiskParameters{LiquidationThreshold: 50, LiquidationBonus: 10},
		adapter,
		token.NewSynthCustody(susd, custodyAddr),
		map[string]vault.CollateralToken{"WETH": token.NewCustody(weth, custodyAddr)},
		nil,
	)
	require.NoError(t, err)

	server := httptest.NewServer(NewServer(engine, susd, map[string]*token.Ledger{"WETH": weth}, false, nil).Router())
	defer server.Close()

	payload := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"token_fund","params":[{"account":%q,"symbol":"WETH","amount":"1"}]}`, makeAddress(0x01).String())
	req, err := http.NewRequest(http.MethodPost, server.URL+"/", bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Key generation is a dev convenience and stays hidden the same way.
	payload = `{"jsonrpc":"2.0","id":2,"method":"vault_newAccount","params":[]}`
	req, err = http.NewRequest(http.MethodPost, server.URL+"/", bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNewAccountOverRPC(t *testing.T) {
	env := newTestEnv(t)

	resp, status := env.call(t, false, "vault_newAccount")
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)

	resp, status = env.call(t, true, "vault_newAccount")
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result newAccountResult
	require.NoError(t, json.Unmarshal(encoded, &result))

	addr, err := crypto.DecodeAddress(result.Address)
	require.NoError(t, err)
	require.Equal(t, crypto.VaultPrefix, addr.Prefix())

	keyBytes, err := hex.DecodeString(result.PrivateKey)
	require.NoError(t, err)
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	require.NoError(t, err)
	require.True(t, key.PubKey().Address().Equal(addr))
}
