package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veritasmkt/veritas/internal/server"
	"github.com/veritasmkt/veritas/internal/server/handler"
)

// ServeMode runs the HTTP API server until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs the periodic cold-record export until the context is
// cancelled. It requires both postgres and s3 to be enabled.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires postgres and s3")
	}
	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP server and the periodic archiver together. The
// archiver is skipped (with a warning) when its backends are not
// configured.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	a.startHTTPServer(ctx, g, deps)

	if a.cfg.Archive.Enabled {
		if deps.Archiver == nil {
			a.logger.Warn("archive enabled but postgres or s3 missing, skipping")
		} else {
			a.startArchiver(ctx, g, deps)
		}
	}

	return g.Wait()
}

// startHTTPServer adds the HTTP server and its shutdown watcher to the
// given errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.Warn("server disabled in config, nothing to serve")
		return
	}

	logger := slog.Default()
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(logger),
		Markets:    handler.NewMarketHandler(deps.Markets, deps.TradeStore, logger),
		Quotes:     handler.NewQuoteHandler(deps.Quotes, logger),
		Trades:     handler.NewTradeHandler(deps.Markets, logger),
		Oracle:     handler.NewOracleHandler(deps.Markets, logger),
		Settlement: handler.NewSettlementHandler(deps.Markets, deps.RedemptionStore, logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, deps.RateLimiter, logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startArchiver adds the periodic export loop to the given errgroup. Each
// tick exports trades and finalized oracle requests older than the
// retention cutoff.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		a.logger.InfoContext(ctx, "archiver started",
			slog.Duration("interval", interval),
			slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)

				if n, err := deps.Archiver.ArchiveTrades(ctx, cutoff); err != nil {
					a.logger.ErrorContext(ctx, "trade archive failed",
						slog.String("error", err.Error()),
					)
				} else if n > 0 {
					a.logger.InfoContext(ctx, "trade archive complete", slog.Int64("count", n))
				}

				if n, err := deps.Archiver.ArchiveOracleRequests(ctx, cutoff); err != nil {
					a.logger.ErrorContext(ctx, "oracle archive failed",
						slog.String("error", err.Error()),
					)
				} else if n > 0 {
					a.logger.InfoContext(ctx, "oracle archive complete", slog.Int64("count", n))
				}
			}
		}
	})
}
