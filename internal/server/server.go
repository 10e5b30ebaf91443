// Package server exposes the engine over HTTP: market lifecycle, quote
// issuance, trade execution, the oracle dispute protocol, settlement and
// redemption.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/server/handler"
	"github.com/veritasmkt/veritas/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimit       int    // requests per window per client IP; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Markets    *handler.MarketHandler
	Quotes     *handler.QuoteHandler
	Trades     *handler.TradeHandler
	Oracle     *handler.OracleHandler
	Settlement *handler.SettlementHandler
}

// Server is the HTTP API server for the prediction market engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (rate limiting, auth, logging, CORS) applied.
// limiter may be nil, which disables rate limiting.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required by convention, but the auth middleware
	// applies globally; operators scrape it with the API key).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/close", handlers.Markets.CloseMarket)

	// Quotes and pricing.
	mux.HandleFunc("POST /api/markets/{id}/quotes", handlers.Quotes.RequestQuote)
	mux.HandleFunc("GET /api/markets/{id}/price", handlers.Quotes.GetPrice)

	// Trade execution and history.
	mux.HandleFunc("POST /api/markets/{id}/trades", handlers.Trades.ExecuteTrade)
	mux.HandleFunc("GET /api/markets/{id}/trades", handlers.Markets.ListTrades)

	// Oracle dispute protocol.
	mux.HandleFunc("GET /api/markets/{id}/oracle", handlers.Oracle.GetRequest)
	mux.HandleFunc("POST /api/markets/{id}/oracle/propose", handlers.Oracle.Propose)
	mux.HandleFunc("POST /api/markets/{id}/oracle/dispute", handlers.Oracle.Dispute)
	mux.HandleFunc("POST /api/markets/{id}/oracle/resolve", handlers.Oracle.Resolve)

	// Settlement and redemption.
	mux.HandleFunc("POST /api/markets/{id}/settle", handlers.Settlement.Settle)
	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.Settlement.Redeem)
	mux.HandleFunc("GET /api/markets/{id}/redemptions", handlers.Settlement.ListRedemptions)

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
