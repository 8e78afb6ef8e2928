package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arbiq/spreadbot/internal/arbitrage"
	"github.com/arbiq/spreadbot/internal/domain"
	"github.com/arbiq/spreadbot/internal/notify"
	"github.com/arbiq/spreadbot/internal/pricetable"
)

// alertInterval rate-limits monitor alerts: at most one per interval no matter
// how many qualifying ticks arrive.
const alertInterval = time.Minute

// Monitor is the alert-only counterpart of the Coordinator: same price table
// and spread evaluation, but a threshold crossing produces a rate-limited
// notification instead of a trade attempt.
type Monitor struct {
	symbol   string
	table    *pricetable.Table
	eval     *arbitrage.Evaluator
	notifier *notify.Notifier
	logger   *slog.Logger

	mu        sync.Mutex
	lastAlert time.Time
}

// NewMonitor creates an alert-only monitor.
func NewMonitor(symbol string, table *pricetable.Table, eval *arbitrage.Evaluator, notifier *notify.Notifier, logger *slog.Logger) *Monitor {
	return &Monitor{
		symbol:   symbol,
		table:    table,
		eval:     eval,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// OnPriceUpdate records the tick and raises a spread alert when the threshold
// is crossed and the rate limit allows.
func (m *Monitor) OnPriceUpdate(ctx context.Context, tick domain.PriceTick) {
	if err := m.table.Update(tick.Exchange, tick.Price); err != nil {
		m.logger.Warn("price update rejected",
			slog.String("exchange", tick.Exchange),
			slog.String("error", err.Error()),
		)
		return
	}

	snap := m.table.Snapshot()
	opp, ok := m.eval.Evaluate(snap)
	if !ok {
		return
	}

	m.mu.Lock()
	if time.Since(m.lastAlert) < alertInterval {
		m.mu.Unlock()
		return
	}
	m.lastAlert = time.Now()
	m.mu.Unlock()

	lines := []string{
		"spread alert: " + m.symbol,
		fmt.Sprintf("spread: %s%% (threshold: %s%%)",
			opp.SpreadPct.StringFixed(2), m.eval.Threshold().StringFixed(2)),
		"prices:",
	}
	for _, ex := range m.table.Exchanges() {
		if p, ok := snap[ex]; ok {
			lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(ex), p.String()))
		}
	}
	m.logger.Info("spread alert",
		slog.String("buy", opp.BuyExchange),
		slog.String("sell", opp.SellExchange),
		slog.String("spread_pct", opp.SpreadPct.StringFixed(4)),
	)
	m.notifier.Notify(ctx, strings.Join(lines, "\n"))
}
