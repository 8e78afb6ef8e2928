// Package coordinator contains the arbitrage state machine. It consumes price
// ticks, evaluates the cross-exchange spread, and serializes trade attempts so
// that at most one is ever in flight.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/arbitrage"
	"github.com/arbiq/spreadbot/internal/domain"
	"github.com/arbiq/spreadbot/internal/gateway"
	"github.com/arbiq/spreadbot/internal/notify"
	"github.com/arbiq/spreadbot/internal/pricetable"
)

// Phase is the coordinator lifecycle phase.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseTradeInFlight Phase = "trade_in_flight"
	PhaseStopped       Phase = "stopped"
)

// Config holds the coordinator's run parameters.
type Config struct {
	Symbol    string
	RealTrade bool

	// TradeLimit caps the base amount of one live trade.
	TradeLimit decimal.Decimal

	// MaxTrades stops the bot after this many completed live trades.
	// Zero means unlimited.
	MaxTrades int

	// IncludeSimulatedProfit adds dry-run results to the cumulative profit.
	IncludeSimulatedProfit bool
}

// Coordinator owns the run state and the trade lock. Price updates arrive
// concurrently from every feed goroutine; the trade lock guarantees that at
// most one executeAttempt runs at any instant, and opportunities detected
// while it is held are dropped rather than queued.
type Coordinator struct {
	cfg      Config
	table    *pricetable.Table
	eval     *arbitrage.Evaluator
	gw       gateway.TradingGateway
	notifier *notify.Notifier
	store    domain.AttemptStore // nil disables journaling
	cache    domain.PriceCache   // nil disables mirroring
	logger   *slog.Logger

	// shutdown cancels every feed client. Set once by the app before the
	// first tick arrives.
	shutdown func()

	// tradeMu is the trade lock. Acquired with TryLock only.
	tradeMu sync.Mutex

	mu          sync.Mutex
	phase       Phase
	tradeCount  int
	totalProfit decimal.Decimal
	startedAt   time.Time
	balances    map[string]domain.Balance
	fatalErr    error
}

// New creates a Coordinator in the Idle phase.
func New(
	cfg Config,
	table *pricetable.Table,
	eval *arbitrage.Evaluator,
	gw gateway.TradingGateway,
	notifier *notify.Notifier,
	store domain.AttemptStore,
	cache domain.PriceCache,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		table:     table,
		eval:      eval,
		gw:        gw,
		notifier:  notifier,
		store:     store,
		cache:     cache,
		logger:    logger.With(slog.String("component", "coordinator")),
		phase:     PhaseIdle,
		startedAt: time.Now(),
		balances:  make(map[string]domain.Balance),
	}
}

// SetShutdown registers the function that cancels all feed clients. It must be
// called before the feeds start.
func (c *Coordinator) SetShutdown(fn func()) {
	c.shutdown = fn
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// FatalErr returns the error that stopped the coordinator, if any.
func (c *Coordinator) FatalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatalErr
}

// Totals returns the cumulative trade count and profit.
func (c *Coordinator) Totals() (int, decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tradeCount, c.totalProfit
}

// Startup announces the run and checks initial balances on every exchange.
// Balance failures are degraded to zero in dry-run mode and fatal in live
// mode, mirroring the rest of the balance policy.
func (c *Coordinator) Startup(ctx context.Context) error {
	mode := "simulated"
	if c.cfg.RealTrade {
		mode = "live"
	}
	lines := []string{
		"arbitrage bot started",
		"pair: " + c.cfg.Symbol,
		"exchanges: " + strings.Join(c.table.Exchanges(), ", "),
		"mode: " + mode,
		"threshold: " + c.eval.Threshold().StringFixed(2) + "%",
		"started: " + c.startedAt.Format(time.RFC3339),
	}
	c.notifier.Notify(ctx, strings.Join(lines, "\n"))

	base, quote, err := splitPair(c.cfg.Symbol)
	if err != nil {
		return err
	}

	report := []string{"initial balances:"}
	for _, ex := range c.table.Exchanges() {
		bal, err := c.queryBalance(ctx, ex, base, quote)
		if err != nil {
			if c.cfg.RealTrade {
				err = fmt.Errorf("coordinator: startup balance %s: %w", ex, err)
				c.fail(ctx, err)
				return err
			}
			c.logger.Warn("balance query failed, assuming zero",
				slog.String("exchange", ex),
				slog.String("error", err.Error()),
			)
			bal = domain.Balance{}
		}
		c.mu.Lock()
		c.balances[ex] = bal
		c.mu.Unlock()
		report = append(report, fmt.Sprintf("%s: %s %s / %s %s",
			strings.ToUpper(ex), bal.Base.StringFixed(4), base, bal.Quote.StringFixed(4), quote))
	}
	if c.store != nil {
		if n, err := c.store.CountLive(ctx); err != nil {
			c.logger.Warn("journal count query failed", slog.String("error", err.Error()))
		} else {
			c.logger.Info("journal connected", slog.Int64("prior_live_trades", n))
		}
	}
	c.logger.Info("startup complete", slog.String("mode", mode))
	c.notifier.Notify(ctx, strings.Join(report, "\n"))
	return nil
}

// OnPriceUpdate is the entry point for every feed tick. It updates the shared
// price table, evaluates the spread, and fires at most one trade attempt. It
// never blocks on the trade lock: if another attempt is mid-flight the
// opportunity is dropped.
func (c *Coordinator) OnPriceUpdate(ctx context.Context, tick domain.PriceTick) {
	if c.Phase() == PhaseStopped {
		return
	}
	if err := c.table.Update(tick.Exchange, tick.Price); err != nil {
		c.logger.Warn("price update rejected",
			slog.String("exchange", tick.Exchange),
			slog.String("error", err.Error()),
		)
		return
	}
	if c.cache != nil {
		if err := c.cache.SetPrice(ctx, tick); err != nil {
			c.logger.Debug("price mirror failed", slog.String("error", err.Error()))
		}
	}

	snap := c.table.Snapshot()
	c.logStatus(snap)

	opp, ok := c.eval.Evaluate(snap)
	if !ok {
		return
	}
	if c.Phase() != PhaseIdle {
		return
	}
	if !c.tradeMu.TryLock() {
		c.logger.Debug("opportunity dropped, trade in flight",
			slog.String("buy", opp.BuyExchange),
			slog.String("sell", opp.SellExchange),
		)
		return
	}
	defer c.tradeMu.Unlock()

	c.setPhase(PhaseTradeInFlight)
	c.runAttempt(ctx, opp)
}

// runAttempt executes one attempt end to end: trade, totals, journal,
// notification, and the transition back to Idle or on to Stopped. The caller
// holds the trade lock.
func (c *Coordinator) runAttempt(ctx context.Context, opp domain.Opportunity) {
	attemptID := uuid.New().String()
	result, err := c.executeAttempt(ctx, opp)

	rec := domain.AttemptRecord{
		ID:           attemptID,
		Symbol:       c.cfg.Symbol,
		BuyExchange:  opp.BuyExchange,
		SellExchange: opp.SellExchange,
		BuyPrice:     result.BuyPrice,
		SellPrice:    result.SellPrice,
		SpreadPct:    opp.SpreadPct,
		BaseAmount:   result.BaseAmount,
		Profit:       result.Profit,
		BuyFee:       result.BuyFee,
		SellFee:      result.SellFee,
		Simulated:    !c.cfg.RealTrade,
		Success:      err == nil,
		ExecutedAt:   time.Now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if c.store != nil {
		if storeErr := c.store.Insert(ctx, rec); storeErr != nil {
			c.logger.Error("attempt journal failed", slog.String("error", storeErr.Error()))
		}
	}

	if err != nil {
		c.fail(ctx, err)
		return
	}

	c.mu.Lock()
	if c.cfg.RealTrade {
		c.tradeCount++
	}
	if c.cfg.RealTrade || c.cfg.IncludeSimulatedProfit {
		c.totalProfit = c.totalProfit.Add(result.Profit)
	}
	count := c.tradeCount
	c.mu.Unlock()

	c.notifyResult(ctx, opp, result, count)

	if c.cfg.RealTrade && c.cfg.MaxTrades > 0 && count >= c.cfg.MaxTrades {
		c.logger.Info("maximum trade count reached", slog.Int("trades", count))
		c.stop(ctx, nil)
		return
	}
	c.setPhase(PhaseIdle)
}

// executeAttempt performs one simulated or live trade.
func (c *Coordinator) executeAttempt(ctx context.Context, opp domain.Opportunity) (domain.TradeResult, error) {
	if !c.cfg.RealTrade {
		// Nominal unit size; the simulated gateway models latency and
		// synthesizes the result from current prices.
		return c.gw.Execute(ctx, c.cfg.Symbol, opp.BuyExchange, opp.SellExchange,
			decimal.NewFromInt(1), decimal.Zero)
	}

	amount, err := c.liveTradeSize(ctx, opp)
	if err != nil {
		return domain.TradeResult{}, err
	}
	if !amount.IsPositive() {
		return domain.TradeResult{}, fmt.Errorf("coordinator: no capacity for %s->%s",
			opp.BuyExchange, opp.SellExchange)
	}

	c.logger.Info("executing arbitrage",
		slog.String("buy", opp.BuyExchange),
		slog.String("sell", opp.SellExchange),
		slog.String("amount", amount.String()),
		slog.String("spread_pct", opp.SpreadPct.StringFixed(4)),
	)
	quoteBudget := amount.Mul(opp.BuyPrice)
	return c.gw.Execute(ctx, c.cfg.Symbol, opp.BuyExchange, opp.SellExchange, amount, quoteBudget)
}

// liveTradeSize bounds the trade by the buy side's quote capacity, the sell
// side's base capacity, and the configured per-trade limit. Capacities come
// from a fresh balance query; in live mode a failed query aborts the attempt.
func (c *Coordinator) liveTradeSize(ctx context.Context, opp domain.Opportunity) (decimal.Decimal, error) {
	base, quote, err := splitPair(c.cfg.Symbol)
	if err != nil {
		return decimal.Zero, err
	}

	buyQuote, err := c.gw.FreeBalance(ctx, opp.BuyExchange, quote)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %s: %v", domain.ErrBalanceQuery, opp.BuyExchange, quote, err)
	}
	sellBase, err := c.gw.FreeBalance(ctx, opp.SellExchange, base)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %s: %v", domain.ErrBalanceQuery, opp.SellExchange, base, err)
	}

	c.mu.Lock()
	buyBal := c.balances[opp.BuyExchange]
	sellBal := c.balances[opp.SellExchange]
	buyBal.Quote = buyQuote
	sellBal.Base = sellBase
	c.balances[opp.BuyExchange] = buyBal
	c.balances[opp.SellExchange] = sellBal
	c.mu.Unlock()

	// Risk scaling: commit at most 20% of the quote balance, less for
	// thresholds under 0.3%.
	riskFactor := decimal.Min(
		c.eval.Threshold().Div(decimal.NewFromFloat(0.3)),
		decimal.NewFromFloat(0.2),
	)
	buyCapacity := buyQuote.Mul(riskFactor).Div(opp.BuyPrice)
	return decimal.Min(buyCapacity, sellBase, c.cfg.TradeLimit), nil
}

// queryBalance fetches the free base and quote balances for one exchange.
func (c *Coordinator) queryBalance(ctx context.Context, exchange, base, quote string) (domain.Balance, error) {
	baseBal, err := c.gw.FreeBalance(ctx, exchange, base)
	if err != nil {
		return domain.Balance{}, err
	}
	quoteBal, err := c.gw.FreeBalance(ctx, exchange, quote)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.Balance{Base: baseBal, Quote: quoteBal}, nil
}

// Stop performs a policy stop: feeds are cancelled and the final summary is
// emitted. Safe to call multiple times; only the first call has effect.
func (c *Coordinator) Stop(ctx context.Context) {
	c.stop(ctx, nil)
}

// fail reports a fatal error through the console and the notifier, then stops
// the coordinator, which emits the final summary.
func (c *Coordinator) fail(ctx context.Context, err error) {
	mode := "simulated"
	if c.cfg.RealTrade {
		mode = "live"
	}
	c.logger.Error("fatal error", slog.String("error", err.Error()))
	c.notifier.Notify(ctx, strings.Join([]string{
		"fatal error",
		"time: " + time.Now().Format(time.RFC3339),
		"mode: " + mode,
		"error: " + err.Error(),
	}, "\n"))
	c.stop(ctx, err)
}

// stop transitions to Stopped, cancels the feed clients, and emits the final
// run summary. A nil err marks a policy stop (max trades); non-nil marks a
// failure stop.
func (c *Coordinator) stop(ctx context.Context, err error) {
	c.mu.Lock()
	if c.phase == PhaseStopped {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseStopped
	c.fatalErr = err
	c.mu.Unlock()

	if c.shutdown != nil {
		c.shutdown()
	}
	c.logSummary(err)
	c.notifier.Notify(ctx, c.Summary(err != nil))
}

// logSummary emits the final run report through the logger.
func (c *Coordinator) logSummary(err error) {
	c.mu.Lock()
	count := c.tradeCount
	profit := c.totalProfit
	elapsed := time.Since(c.startedAt).Round(time.Second)
	c.mu.Unlock()

	mode := "simulated"
	if c.cfg.RealTrade {
		mode = "live"
	}
	attrs := []any{
		slog.String("mode", mode),
		slog.Duration("elapsed", elapsed),
		slog.Int("trades", count),
		slog.String("total_profit", profit.StringFixed(4)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		c.logger.Error("run aborted", attrs...)
		return
	}
	c.logger.Info("run complete", attrs...)
}

// Summary renders the final run report: mode, elapsed time, totals.
func (c *Coordinator) Summary(isError bool) string {
	c.mu.Lock()
	count := c.tradeCount
	profit := c.totalProfit
	elapsed := time.Since(c.startedAt).Round(time.Second)
	c.mu.Unlock()

	header := "clean exit"
	if isError {
		header = "aborted on error"
	}
	mode := "simulated"
	if c.cfg.RealTrade {
		mode = "live"
	}
	sep := strings.Repeat("=", 40)
	return strings.Join([]string{
		sep,
		header,
		"mode: " + mode,
		"elapsed: " + elapsed.String(),
		fmt.Sprintf("trades: %d", count),
		"total profit: " + profit.StringFixed(4),
		sep,
	}, "\n")
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	// Stopped is terminal.
	if c.phase != PhaseStopped {
		c.phase = p
	}
	c.mu.Unlock()
}

func (c *Coordinator) notifyResult(ctx context.Context, opp domain.Opportunity, result domain.TradeResult, count int) {
	mode := "live"
	if result.Simulated {
		mode = "simulated"
	}
	remaining := "unlimited"
	if c.cfg.MaxTrades > 0 {
		remaining = fmt.Sprintf("%d", c.cfg.MaxTrades-count)
	}
	c.notifier.Notify(ctx, strings.Join([]string{
		"arbitrage executed (" + mode + ")",
		"pair: " + c.cfg.Symbol,
		fmt.Sprintf("buy: %s (%s)", opp.BuyExchange, result.BuyPrice.StringFixed(4)),
		fmt.Sprintf("sell: %s (%s)", opp.SellExchange, result.SellPrice.StringFixed(4)),
		"spread: " + opp.SpreadPct.StringFixed(4) + "%",
		"profit: " + result.Profit.StringFixed(4),
		fmt.Sprintf("fees: %s / %s", result.BuyFee.StringFixed(4), result.SellFee.StringFixed(4)),
		"remaining trade budget: " + remaining,
	}, "\n"))
}

func (c *Coordinator) logStatus(snap domain.PriceSnapshot) {
	attrs := make([]any, 0, len(snap)+1)
	attrs = append(attrs, slog.String("symbol", c.cfg.Symbol))
	for _, ex := range c.table.Exchanges() {
		if p, ok := snap[ex]; ok {
			attrs = append(attrs, slog.String(ex, p.StringFixed(4)))
		}
	}
	c.logger.Debug("price update", attrs...)
}

// splitPair splits "BTC/USDT" into base and quote assets.
func splitPair(symbol string) (base, quote string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("coordinator: malformed pair %q", symbol)
	}
	return parts[0], parts[1], nil
}
