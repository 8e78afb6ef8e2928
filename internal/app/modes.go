package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/arbiq/spreadbot/internal/arbitrage"
	"github.com/arbiq/spreadbot/internal/coordinator"
	"github.com/arbiq/spreadbot/internal/feed"
	"github.com/arbiq/spreadbot/internal/gateway"
	"github.com/arbiq/spreadbot/internal/pricetable"
)

// ErrExecutionFailed wraps the coordinator's fatal error so main can map it to
// a distinct exit code.
var ErrExecutionFailed = errors.New("app: execution failed")

// TradeMode runs the full arbitrage loop: one feed client per exchange feeding
// the coordinator, which trades (or simulates) on every qualifying spread. It
// returns nil on a clean or policy stop and ErrExecutionFailed when the
// coordinator aborted on a trade error.
func (a *App) TradeMode(ctx context.Context, deps *Deps, table *pricetable.Table, eval *arbitrage.Evaluator) error {
	var gw gateway.TradingGateway
	if a.cfg.RealTrade {
		gw = gateway.NewRemote(a.cfg.Gateway.BaseURL, a.cfg.Gateway.APIKey)
	} else {
		gw = gateway.NewSimulated(table.Snapshot, a.cfg.Gateway.SimulatedDelay.Duration)
	}

	coord := coordinator.New(
		coordinator.Config{
			Symbol:                 a.cfg.Symbol,
			RealTrade:              a.cfg.RealTrade,
			TradeLimit:             decimal.NewFromFloat(a.cfg.TradeLimit),
			MaxTrades:              a.cfg.MaxTrades,
			IncludeSimulatedProfit: a.cfg.IncludeSimulatedProfit,
		},
		table, eval, gw, deps.Notifier, deps.Store, deps.Cache, slog.Default(),
	)

	feedCtx, cancelFeeds := context.WithCancel(ctx)
	defer cancelFeeds()
	coord.SetShutdown(cancelFeeds)

	if err := coord.Startup(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	if err := a.runFeeds(feedCtx, coord.OnPriceUpdate); err != nil {
		return err
	}

	// Signal-driven shutdown reaches here with the coordinator still running;
	// Stop is idempotent and emits the summary exactly once.
	coord.Stop(context.WithoutCancel(ctx))
	if err := coord.FatalErr(); err != nil {
		return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	return nil
}

// MonitorMode streams prices into the alert-only monitor. It runs until ctx is
// cancelled.
func (a *App) MonitorMode(ctx context.Context, deps *Deps, table *pricetable.Table, eval *arbitrage.Evaluator) error {
	mon := coordinator.NewMonitor(a.cfg.Symbol, table, eval, deps.Notifier, slog.Default())

	deps.Notifier.Notify(ctx, fmt.Sprintf(
		"spread monitor started\npair: %s\nthreshold: %s%%\nstarted: %s",
		a.cfg.Symbol, eval.Threshold().StringFixed(2), time.Now().Format(time.RFC3339),
	))

	return a.runFeeds(ctx, mon.OnPriceUpdate)
}

// runFeeds starts one feed client per configured exchange and blocks until all
// of them stop. Feed clients only return on context cancellation, which is not
// reported as an error.
func (a *App) runFeeds(ctx context.Context, onTick feed.TickHandler) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, exchange := range a.cfg.Exchanges {
		adapter, err := feed.NewAdapter(exchange)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		client := feed.NewClient(adapter, a.cfg.Symbol, onTick, slog.Default())
		g.Go(func() error {
			return client.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: feeds: %w", err)
	}
	return nil
}
