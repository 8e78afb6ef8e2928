package coordinator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/arbitrage"
	"github.com/arbiq/spreadbot/internal/domain"
	"github.com/arbiq/spreadbot/internal/notify"
	"github.com/arbiq/spreadbot/internal/pricetable"
)

// fakeGateway counts concurrent Execute calls and serves canned balances.
type fakeGateway struct {
	delay    time.Duration
	result   domain.TradeResult
	err      error
	balErr   error
	balances map[string]decimal.Decimal // "venue/asset"

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeGateway) Execute(ctx context.Context, pair, buyVenue, sellVenue string, baseAmount, quoteBudget decimal.Decimal) (domain.TradeResult, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return domain.TradeResult{}, f.err
	}
	res := f.result
	res.BaseAmount = baseAmount
	return res, nil
}

func (f *fakeGateway) FreeBalance(ctx context.Context, venue, asset string) (decimal.Decimal, error) {
	if f.balErr != nil {
		return decimal.Zero, f.balErr
	}
	if f.balances == nil {
		return decimal.Zero, nil
	}
	bal, ok := f.balances[venue+"/"+asset]
	if !ok {
		return decimal.Zero, nil
	}
	return bal, nil
}

// fakeStore records every journaled attempt.
type fakeStore struct {
	mu   sync.Mutex
	recs []domain.AttemptRecord
}

func (f *fakeStore) Insert(ctx context.Context, rec domain.AttemptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeStore) CountLive(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.recs)), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(cfg Config, gw *fakeGateway, store domain.AttemptStore) (*Coordinator, *pricetable.Table) {
	if cfg.Symbol == "" {
		cfg.Symbol = "BTC/USDT"
	}
	table := pricetable.New([]string{"binance", "okx"})
	eval := arbitrage.NewEvaluator(decimal.NewFromFloat(0.3), table.Exchanges())
	notifier := notify.NewNotifier(nil, discardLogger())
	return New(cfg, table, eval, gw, notifier, store, nil, discardLogger()), table
}

func tick(exchange string, price float64) domain.PriceTick {
	return domain.PriceTick{
		Exchange:   exchange,
		Symbol:     "BTC/USDT",
		Price:      decimal.NewFromFloat(price),
		ObservedAt: time.Now(),
	}
}

func TestAtMostOneAttemptInFlight(t *testing.T) {
	gw := &fakeGateway{
		delay: 20 * time.Millisecond,
		result: domain.TradeResult{
			BuyPrice:  decimal.NewFromInt(100),
			SellPrice: decimal.NewFromInt(102),
			Profit:    decimal.NewFromInt(2),
			Simulated: true,
		},
	}
	coord, _ := newTestCoordinator(Config{IncludeSimulatedProfit: true}, gw, nil)

	ctx := context.Background()
	coord.OnPriceUpdate(ctx, tick("binance", 100))

	// Every one of these ticks keeps a 2% spread on the table, so each one
	// sees an opportunity. Only non-overlapping attempts may run.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coord.OnPriceUpdate(ctx, tick("okx", 102))
		}()
	}
	wg.Wait()

	if max := gw.maxInFlight.Load(); max != 1 {
		t.Fatalf("max concurrent Execute calls = %d, want 1", max)
	}
	if calls := gw.calls.Load(); calls < 1 {
		t.Fatalf("Execute calls = %d, want >= 1", calls)
	}
	if phase := coord.Phase(); phase != PhaseIdle {
		t.Errorf("phase after attempts = %s, want idle", phase)
	}
}

func TestSimulatedProfitAccounting(t *testing.T) {
	gw := &fakeGateway{
		result: domain.TradeResult{
			BuyPrice:  decimal.NewFromInt(100),
			SellPrice: decimal.NewFromInt(101),
			Profit:    decimal.NewFromInt(1),
			Simulated: true,
		},
	}
	coord, _ := newTestCoordinator(Config{IncludeSimulatedProfit: true}, gw, nil)

	ctx := context.Background()
	coord.OnPriceUpdate(ctx, tick("binance", 100))
	coord.OnPriceUpdate(ctx, tick("okx", 101))

	count, profit := coord.Totals()
	if count != 0 {
		t.Errorf("trade count = %d, want 0 (simulated trades never count)", count)
	}
	if !profit.Equal(decimal.NewFromInt(1)) {
		t.Errorf("total profit = %s, want 1", profit)
	}
}

func TestSimulatedProfitExcluded(t *testing.T) {
	gw := &fakeGateway{
		result: domain.TradeResult{
			Profit:    decimal.NewFromInt(1),
			Simulated: true,
		},
	}
	coord, _ := newTestCoordinator(Config{IncludeSimulatedProfit: false}, gw, nil)

	ctx := context.Background()
	coord.OnPriceUpdate(ctx, tick("binance", 100))
	coord.OnPriceUpdate(ctx, tick("okx", 101))

	if _, profit := coord.Totals(); !profit.IsZero() {
		t.Errorf("total profit = %s, want 0", profit)
	}
}

func TestMaxTradesStopsCoordinator(t *testing.T) {
	gw := &fakeGateway{
		result: domain.TradeResult{
			BuyPrice:  decimal.NewFromInt(100),
			SellPrice: decimal.NewFromInt(102),
			Profit:    decimal.NewFromInt(2),
		},
		balances: map[string]decimal.Decimal{
			"binance/USDT": decimal.NewFromInt(10000),
			"okx/BTC":      decimal.NewFromInt(5),
		},
	}
	coord, _ := newTestCoordinator(Config{
		RealTrade:  true,
		TradeLimit: decimal.NewFromFloat(0.01),
		MaxTrades:  1,
	}, gw, nil)

	shutdownCalled := make(chan struct{})
	coord.SetShutdown(func() { close(shutdownCalled) })

	ctx := context.Background()
	coord.OnPriceUpdate(ctx, tick("binance", 100))
	coord.OnPriceUpdate(ctx, tick("okx", 102))

	if phase := coord.Phase(); phase != PhaseStopped {
		t.Fatalf("phase = %s, want stopped", phase)
	}
	select {
	case <-shutdownCalled:
	default:
		t.Error("shutdown was not invoked on policy stop")
	}
	if err := coord.FatalErr(); err != nil {
		t.Errorf("policy stop recorded error %v, want nil", err)
	}
	count, _ := coord.Totals()
	if count != 1 {
		t.Errorf("trade count = %d, want 1", count)
	}

	// Further ticks are ignored after the stop.
	coord.OnPriceUpdate(ctx, tick("okx", 110))
	if calls := gw.calls.Load(); calls != 1 {
		t.Errorf("Execute calls after stop = %d, want 1", calls)
	}
}

func TestExecutionFailureStopsWithError(t *testing.T) {
	wantErr := errors.New("order rejected")
	gw := &fakeGateway{err: wantErr}
	coord, _ := newTestCoordinator(Config{IncludeSimulatedProfit: true}, gw, nil)

	ctx := context.Background()
	coord.OnPriceUpdate(ctx, tick("binance", 100))
	coord.OnPriceUpdate(ctx, tick("okx", 102))

	if phase := coord.Phase(); phase != PhaseStopped {
		t.Fatalf("phase = %s, want stopped", phase)
	}
	if err := coord.FatalErr(); !errors.Is(err, wantErr) {
		t.Errorf("FatalErr() = %v, want %v", err, wantErr)
	}
}

func TestAttemptsAreJournaled(t *testing.T) {
	gw := &fakeGateway{
		result: domain.TradeResult{
			BuyPrice:  decimal.NewFromInt(100),
			SellPrice: decimal.NewFromInt(102),
			Profit:    decimal.NewFromInt(2),
			Simulated: true,
		},
	}
	store := &fakeStore{}
	coord, _ := newTestCoordinator(Config{IncludeSimulatedProfit: true}, gw, store)

	ctx := context.Background()
	coord.OnPriceUpdate(ctx, tick("binance", 100))
	coord.OnPriceUpdate(ctx, tick("okx", 102))

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.recs) != 1 {
		t.Fatalf("journaled %d attempts, want 1", len(store.recs))
	}
	rec := store.recs[0]
	if rec.ID == "" {
		t.Error("attempt record has no id")
	}
	if !rec.Success || !rec.Simulated {
		t.Errorf("record success=%v simulated=%v, want both true", rec.Success, rec.Simulated)
	}
	if rec.BuyExchange != "binance" || rec.SellExchange != "okx" {
		t.Errorf("record legs = %s/%s, want binance/okx", rec.BuyExchange, rec.SellExchange)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	gw := &fakeGateway{}
	coord, _ := newTestCoordinator(Config{}, gw, nil)

	var shutdowns atomic.Int32
	coord.SetShutdown(func() { shutdowns.Add(1) })

	ctx := context.Background()
	coord.Stop(ctx)
	coord.Stop(ctx)

	if n := shutdowns.Load(); n != 1 {
		t.Errorf("shutdown invoked %d times, want 1", n)
	}
	if phase := coord.Phase(); phase != PhaseStopped {
		t.Errorf("phase = %s, want stopped", phase)
	}
}

func TestStartupChecksBalances(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]decimal.Decimal{
			"binance/BTC":  decimal.NewFromInt(1),
			"binance/USDT": decimal.NewFromInt(5000),
			"okx/BTC":      decimal.NewFromInt(2),
			"okx/USDT":     decimal.NewFromInt(3000),
		},
	}
	coord, _ := newTestCoordinator(Config{}, gw, nil)

	if err := coord.Startup(context.Background()); err != nil {
		t.Fatalf("Startup() = %v", err)
	}
}

func TestStartupLiveBalanceFailureNotifiesAndStops(t *testing.T) {
	gw := &fakeGateway{balErr: errors.New("venue unreachable")}
	sender := &recordingSender{}

	table := pricetable.New([]string{"binance", "okx"})
	eval := arbitrage.NewEvaluator(decimal.NewFromFloat(0.3), table.Exchanges())
	notifier := notify.NewNotifier([]notify.Sender{sender}, discardLogger())
	coord := New(Config{
		Symbol:     "BTC/USDT",
		RealTrade:  true,
		TradeLimit: decimal.NewFromFloat(0.01),
	}, table, eval, gw, notifier, nil, nil, discardLogger())

	err := coord.Startup(context.Background())
	if err == nil {
		t.Fatal("Startup() ignored a live-mode balance failure")
	}
	if phase := coord.Phase(); phase != PhaseStopped {
		t.Errorf("phase = %s, want stopped", phase)
	}
	if coord.FatalErr() == nil {
		t.Error("no fatal error recorded")
	}

	// Console message aside, the failure must also produce a best-effort
	// notification and the final run summary.
	sends := sender.all()
	var sawFailure, sawSummary bool
	for _, s := range sends {
		if strings.Contains(s, "venue unreachable") {
			sawFailure = true
		}
		if strings.Contains(s, "trades: 0") {
			sawSummary = true
		}
	}
	if !sawFailure {
		t.Errorf("no failure notification among %q", sends)
	}
	if !sawSummary {
		t.Errorf("no run summary among %q", sends)
	}
}

func TestStopLogsSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	table := pricetable.New([]string{"binance", "okx"})
	eval := arbitrage.NewEvaluator(decimal.NewFromFloat(0.3), table.Exchanges())
	coord := New(Config{Symbol: "BTC/USDT"}, table, eval, &fakeGateway{},
		notify.NewNotifier(nil, discardLogger()), nil, nil, logger)

	coord.Stop(context.Background())

	out := buf.String()
	for _, want := range []string{"run complete", "trades", "total_profit", "elapsed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary log missing %q:\n%s", want, out)
		}
	}
}

func TestStartupRejectsMalformedPair(t *testing.T) {
	gw := &fakeGateway{}
	coord, _ := newTestCoordinator(Config{Symbol: "BTCUSDT"}, gw, nil)

	if err := coord.Startup(context.Background()); err == nil {
		t.Fatal("Startup() accepted a pair without a separator")
	}
}
