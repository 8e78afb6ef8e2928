// Package app wires the bot together and manages its lifecycle: optional
// cache and store adapters, the notifier, the gateway, the coordinator, and
// one feed client per configured exchange.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/arbitrage"
	"github.com/arbiq/spreadbot/internal/config"
	"github.com/arbiq/spreadbot/internal/pricetable"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, builds the shared price table and evaluator, and
// starts the configured mode. It blocks until the run completes or ctx is
// cancelled. A nil return means a clean stop (including the max-trades policy
// stop); a non-nil return other than context.Canceled means failure.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("symbol", a.cfg.Symbol),
		slog.Any("exchanges", a.cfg.Exchanges),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	table := pricetable.New(a.cfg.Exchanges)
	eval := arbitrage.NewEvaluator(decimal.NewFromFloat(a.cfg.Threshold), a.cfg.Exchanges)

	switch strings.ToLower(a.cfg.Mode) {
	case "trade":
		return a.TradeMode(ctx, deps, table, eval)
	case "monitor":
		return a.MonitorMode(ctx, deps, table, eval)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
