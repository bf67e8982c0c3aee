package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"nftlend/native/loan"
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
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the loan engine over JSON-RPC 2.0. Administrative methods
// require the bearer token configured through LEND_RPC_TOKEN.
type Server struct {
	engine     *loan.Engine
	logger     *slog.Logger
	authToken  string
	metricsSrv http.Handler
}

// NewServer constructs an RPC server around the engine. A nil logger falls
// back to slog.Default.
func NewServer(engine *loan.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		logger:    logger,
		authToken: strings.TrimSpace(os.Getenv("LEND_RPC_TOKEN")),
	}
}

// SetMetricsHandler mounts a handler at /metrics on the router.
func (s *Server) SetMetricsHandler(h http.Handler) { s.metricsSrv = h }

// Router assembles the HTTP routes: JSON-RPC at the root, plus health and
// metrics endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metricsSrv != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsSrv)
	}
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}
	method := strings.TrimSpace(req.Method)
	handler, ok := s.methods()[method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+method, nil)
		return
	}
	if strings.HasPrefix(method, "loan_admin") && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
		return
	}
	handler(w, &req)
}

type handlerFunc func(http.ResponseWriter, *RPCRequest)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"loan_createOffer":          s.handleCreateOffer,
		"loan_acceptOffer":          s.handleAcceptOffer,
		"loan_cancelOffer":          s.handleCancelOffer,
		"loan_repay":                s.handleRepay,
		"loan_claimCollateral":      s.handleClaimCollateral,
		"loan_batchCreateOffers":    s.handleBatchCreateOffers,
		"loan_batchAcceptOffers":    s.handleBatchAcceptOffers,
		"loan_batchCancelOffers":    s.handleBatchCancelOffers,
		"loan_batchRepay":           s.handleBatchRepay,
		"loan_batchClaimCollateral": s.handleBatchClaimCollateral,
		"loan_getOffer":             s.handleGetOffer,
		"loan_getLoan":              s.handleGetLoan,
		"loan_getOfferCount":        s.handleGetOfferCount,
		"loan_getLoanCount":         s.handleGetLoanCount,
		"loan_isWhitelisted":        s.handleIsWhitelisted,
		"loan_getParams":            s.handleGetParams,
		"loan_adminSetWhitelisted":  s.handleAdminSetWhitelisted,
		"loan_adminSetFeeBps":       s.handleAdminSetFeeBps,
		"loan_adminSetMinDuration":  s.handleAdminSetMinDuration,
		"loan_adminSetMaxDuration":  s.handleAdminSetMaxDuration,
		"loan_adminSetMinRate":      s.handleAdminSetMinRate,
		"loan_adminSetMaxRate":      s.handleAdminSetMaxRate,
		"loan_adminSetTreasury":     s.handleAdminSetTreasury,
		"loan_adminSetBatchLimit":   s.handleAdminSetBatchLimit,
	}
}

// writeEngineError maps engine failures onto JSON-RPC error codes: validation
// and solvency failures surface as invalid params, everything else as a server
// error. The typed error text keeps the offending values for diagnostics.
func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	code := codeServerError
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, loan.ErrCollectionNotWhitelisted),
		errors.Is(err, loan.ErrInvalidDuration),
		errors.Is(err, loan.ErrInvalidInterestRate),
		errors.Is(err, loan.ErrInvalidOfferExpiry),
		errors.Is(err, loan.ErrInvalidAmount),
		errors.Is(err, loan.ErrBatchLengthZero),
		errors.Is(err, loan.ErrBatchLimitExceeded),
		errors.Is(err, loan.ErrLengthMismatch),
		errors.Is(err, loan.ErrZeroTreasury):
		code = codeInvalidParams
	case errors.Is(err, loan.ErrNotLender), errors.Is(err, loan.ErrNotBorrower):
		code = codeUnauthorized
		status = http.StatusForbidden
	case errors.Is(err, loan.ErrOfferNotFound), errors.Is(err, loan.ErrLoanNotFound):
		status = http.StatusNotFound
	}
	s.logger.Warn("rpc call failed", "error", err)
	writeError(w, status, id, code, err.Error(), nil)
}
