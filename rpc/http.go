package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"synthvault/native/token"
	"synthvault/native/vault"
	"synthvault/observability"
	"synthvault/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeHealthBreach   = -32021
	codeTargetHealthy  = -32022
	codeModulePaused   = -32030
)

// Server exposes the vault engine over JSON-RPC 2.0. Mutating methods require
// a bearer token sourced from SYNTHVAULT_RPC_TOKEN at construction. Mutating
// calls are serialized by opMu so concurrent API clients queue instead of
// tripping the engine's re-entrancy guard.
type Server struct {
	engine     *vault.Engine
	synth      *token.Ledger
	collateral map[string]*token.Ledger
	authToken  string
	devFaucet  bool
	logger     *slog.Logger
	metrics    *observability.VaultMetrics
	opMu       sync.Mutex
}

// NewServer wires the RPC surface over the engine and the token ledgers. The
// dev faucet is only mounted when devFaucet is set.
func NewServer(engine *vault.Engine, synth *token.Ledger, collateral map[string]*token.Ledger, devFaucet bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:     engine,
		synth:      synth,
		collateral: collateral,
		authToken:  strings.TrimSpace(os.Getenv("SYNTHVAULT_RPC_TOKEN")),
		devFaucet:  devFaucet,
		logger:     logger,
		metrics:    observability.Vault(),
	}
}

// Router builds the HTTP mux: the JSON-RPC endpoint at /, plus health and
// metrics endpoints for operators.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "vault_depositCollateral":
		s.authorized(w, r, req, s.handleDepositCollateral)
	case "vault_mintDebt":
		s.authorized(w, r, req, s.handleMintDebt)
	case "vault_depositAndMint":
		s.authorized(w, r, req, s.handleDepositAndMint)
	case "vault_burnDebt":
		s.authorized(w, r, req, s.handleBurnDebt)
	case "vault_redeemCollateral":
		s.authorized(w, r, req, s.handleRedeemCollateral)
	case "vault_redeemAndBurn":
		s.authorized(w, r, req, s.handleRedeemAndBurn)
	case "vault_liquidate":
		s.authorized(w, r, req, s.handleLiquidate)
	case "vault_getPosition":
		s.handleGetPosition(w, r, req)
	case "vault_getHealthFactor":
		s.handleGetHealthFactor(w, r, req)
	case "vault_getAccountCollateralValue":
		s.handleGetAccountCollateralValue(w, r, req)
	case "vault_getTokenAmountFromUsd":
		s.handleGetTokenAmountFromUsd(w, r, req)
	case "vault_listCollateral":
		s.handleListCollateral(w, r, req)
	case "token_getBalance":
		s.handleTokenGetBalance(w, r, req)
	case "token_fund":
		if !s.devFaucet {
			writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not available", req.Method)
			return
		}
		s.authorized(w, r, req, s.handleTokenFund)
	case "vault_newAccount":
		if !s.devFaucet {
			writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not available", req.Method)
			return
		}
		s.authorized(w, r, req, s.handleNewAccount)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) authorized(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		s.logger.Warn("rejected unauthenticated request",
			"method", req.Method,
			"remote", r.RemoteAddr,
			"token", logging.MaskValue(r.Header.Get("Authorization")))
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tok == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}
