package coordinator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/arbitrage"
	"github.com/arbiq/spreadbot/internal/notify"
	"github.com/arbiq/spreadbot/internal/pricetable"
)

// recordingSender captures every notification text.
type recordingSender struct {
	mu    sync.Mutex
	sends []string
}

func (r *recordingSender) Send(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, text)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sends...)
}

func newTestMonitor(sender *recordingSender) *Monitor {
	table := pricetable.New([]string{"binance", "okx"})
	eval := arbitrage.NewEvaluator(decimal.NewFromFloat(0.3), table.Exchanges())
	notifier := notify.NewNotifier([]notify.Sender{sender}, discardLogger())
	return NewMonitor("BTC/USDT", table, eval, notifier, discardLogger())
}

func TestMonitorAlertsOnSpread(t *testing.T) {
	sender := &recordingSender{}
	mon := newTestMonitor(sender)

	ctx := context.Background()
	mon.OnPriceUpdate(ctx, tick("binance", 100))
	if len(sender.all()) != 0 {
		t.Fatal("alert raised with a single price")
	}

	mon.OnPriceUpdate(ctx, tick("okx", 102))
	sends := sender.all()
	if len(sends) != 1 {
		t.Fatalf("alerts = %d, want 1", len(sends))
	}
	for _, want := range []string{"BTC/USDT", "2.00%", "BINANCE", "OKX"} {
		if !strings.Contains(sends[0], want) {
			t.Errorf("alert missing %q:\n%s", want, sends[0])
		}
	}
}

func TestMonitorRateLimitsAlerts(t *testing.T) {
	sender := &recordingSender{}
	mon := newTestMonitor(sender)

	ctx := context.Background()
	mon.OnPriceUpdate(ctx, tick("binance", 100))
	for i := 0; i < 20; i++ {
		mon.OnPriceUpdate(ctx, tick("okx", 102))
	}

	if got := len(sender.all()); got != 1 {
		t.Fatalf("alerts = %d, want 1 within the rate-limit window", got)
	}
}

func TestMonitorStaysQuietBelowThreshold(t *testing.T) {
	sender := &recordingSender{}
	mon := newTestMonitor(sender)

	ctx := context.Background()
	mon.OnPriceUpdate(ctx, tick("binance", 100))
	mon.OnPriceUpdate(ctx, tick("okx", 100.1))

	if got := len(sender.all()); got != 0 {
		t.Fatalf("alerts = %d, want 0", got)
	}
}
