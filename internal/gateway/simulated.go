package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/domain"
)

// SnapshotFunc supplies the current price snapshot, typically
// pricetable.Table.Snapshot.
type SnapshotFunc func() domain.PriceSnapshot

// Simulated synthesizes trade results from current prices without touching
// any exchange. A fixed delay models execution and slippage latency.
type Simulated struct {
	snapshot SnapshotFunc
	delay    time.Duration
}

// NewSimulated creates a simulated gateway reading prices through snapshot.
func NewSimulated(snapshot SnapshotFunc, delay time.Duration) *Simulated {
	return &Simulated{snapshot: snapshot, delay: delay}
}

// Execute waits the configured delay, then builds a zero-fee TradeResult from
// the latest buy/sell venue prices.
func (s *Simulated) Execute(ctx context.Context, pair, buyVenue, sellVenue string, baseAmount, quoteBudget decimal.Decimal) (domain.TradeResult, error) {
	select {
	case <-ctx.Done():
		return domain.TradeResult{}, ctx.Err()
	case <-time.After(s.delay):
	}

	snap := s.snapshot()
	buyPrice, okBuy := snap[buyVenue]
	sellPrice, okSell := snap[sellVenue]
	if !okBuy || !okSell {
		return domain.TradeResult{}, &ExecutionError{
			BuyVenue:  buyVenue,
			SellVenue: sellVenue,
			Err:       domain.ErrNotFound,
		}
	}

	return domain.TradeResult{
		BuyPrice:   buyPrice,
		SellPrice:  sellPrice,
		Profit:     sellPrice.Sub(buyPrice).Mul(baseAmount),
		BuyFee:     decimal.Zero,
		SellFee:    decimal.Zero,
		BaseAmount: baseAmount,
		Simulated:  true,
	}, nil
}

// FreeBalance always reports zero: the simulated gateway holds no funds, and
// dry-run sizing uses a nominal unit amount instead.
func (s *Simulated) FreeBalance(ctx context.Context, venue, asset string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// Compile-time interface check.
var _ TradingGateway = (*Simulated)(nil)
