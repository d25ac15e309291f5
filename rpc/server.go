// Package rpc exposes the auction service over JSON-RPC 2.0.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vaultauction/core/events"
	"vaultauction/indexer"
	"vaultauction/native/auction"
	"vaultauction/observability/logging"
	"vaultauction/observability/metrics"
)

// Config tunes the listener behaviour. An empty JWTSecret disables bearer
// authentication and trusts the signer named in each request.
type Config struct {
	JWTSecret string
	JWTIssuer string
	RateLimit float64
	RateBurst int
}

// EventArchive serves historical events beyond the in-memory window.
type EventArchive interface {
	Query(ctx context.Context, f indexer.Filter) ([]indexer.Entry, error)
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.AuctionMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRecorder serves auction_events from the recent event window.
func WithRecorder(r *events.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithArchive serves auction_events from a persistent archive. It takes
// precedence over the recorder.
func WithArchive(a EventArchive) Option {
	return func(s *Server) { s.archive = a }
}

// WithHub enables the /ws event stream.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

type methodFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

type Server struct {
	svc      *auction.Service
	logger   *slog.Logger
	metrics  *metrics.AuctionMetrics
	auth     *authenticator
	limiter  *rateLimiter
	recorder *events.Recorder
	archive  EventArchive
	hub      *Hub
	methods  map[string]methodFunc
	started  time.Time
}

func NewServer(svc *auction.Service, cfg Config, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		logger:  slog.Default(),
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateBurst),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.methods = s.registerMethods()
	return s
}

// Handler returns the instrumented HTTP router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Post("/", s.handleRPC)
	r.Post("/rpc", s.handleRPC)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleEventsWS)
	return otelhttp.NewHandler(r, "auctiond.rpc")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	if s.limiter != nil && !s.limiter.allow(clientID(r)) {
		writeError(w, http.StatusTooManyRequests, nil, &RPCError{Code: codeRateLimited, Message: "rate limit exceeded"})
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, &RPCError{Code: codeInvalidRequest, Message: message})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	method, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: req.Method})
		s.metrics.ObserveRPC("unknown", "not_found")
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	log := s.logger.With(
		slog.String("method", req.Method),
		slog.String("request_id", requestID),
		slog.String("remote", clientID(r)),
		logging.MaskField("authorization", r.Header.Get("Authorization")),
	)

	ctx := r.Context()
	if s.auth != nil && r.Header.Get("Authorization") != "" {
		caller, err := s.auth.authenticate(r)
		if err != nil {
			log.Info("rpc authentication failed", slog.String("error", err.Error()))
			writeError(w, http.StatusUnauthorized, req.ID, &RPCError{Code: codeUnauthorized, Message: err.Error()})
			s.metrics.ObserveRPC(req.Method, "unauthorized")
			return
		}
		ctx = withCaller(ctx, caller)
	}

	var params json.RawMessage
	switch len(req.Params) {
	case 0:
		params = json.RawMessage("{}")
	case 1:
		params = req.Params[0]
	default:
		writeError(w, http.StatusBadRequest, req.ID, invalidParams("exactly one parameter object expected"))
		s.metrics.ObserveRPC(req.Method, "invalid_params")
		return
	}

	result, err := method(ctx, params)
	if err != nil {
		status, rpcErr := toRPCError(err)
		log.Debug("rpc request rejected", slog.Int("code", rpcErr.Code), slog.String("error", err.Error()))
		writeError(w, status, req.ID, rpcErr)
		s.metrics.ObserveRPC(req.Method, outcomeLabel(rpcErr.Code))
		return
	}
	s.metrics.ObserveRPC(req.Method, "ok")
	writeResult(w, req.ID, result)
}

func outcomeLabel(code int) string {
	switch code {
	case codeInvalidParams:
		return "invalid_params"
	case codeUnauthorized:
		return "unauthorized"
	case codeConflict:
		return "conflict"
	case codeEngineError, codeRejected:
		return "rejected"
	default:
		return "error"
	}
}
