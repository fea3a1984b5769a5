package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predictarena/ledger/internal/server"
	"github.com/predictarena/ledger/internal/server/handler"
	"github.com/predictarena/ledger/internal/server/ws"
)

// ServeMode runs the HTTP + WebSocket API without the cycle-reset cron.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return waitGroup(g)
}

// CronMode runs only the cycle-reset loop; useful when the API is scaled
// separately from the scheduler.
func (a *App) CronMode(ctx context.Context, deps *Dependencies) error {
	if deps.ResetService == nil {
		return errors.New("app: cron mode requires reset.enabled")
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.ResetService.Run(ctx)
	})
	return waitGroup(g)
}

// FullMode runs the API and the cycle-reset loop in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	if deps.ResetService != nil {
		g.Go(func() error {
			return deps.ResetService.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "cycle reset disabled")
	}
	return waitGroup(g)
}

// startServer registers the HTTP server and WebSocket hub on the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.HealthProbes, a.logger),
		Markets:    handler.NewMarketHandler(deps.MarketService, a.logger),
		Bets:       handler.NewBetHandler(deps.BetService, a.logger),
		Settlement: handler.NewSettlementHandler(deps.SettlementService, a.logger),
		Transfers:  handler.NewTransferHandler(deps.TransferService, a.logger),
		Accounts:   handler.NewAccountHandler(deps.AccountService, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}

// waitGroup waits for the errgroup, treating context cancellation as a clean
// exit.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
