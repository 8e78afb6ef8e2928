package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AttemptRecord is the journal entry written for every completed arbitrage
// attempt, successful or not.
type AttemptRecord struct {
	ID           string
	Symbol       string
	BuyExchange  string
	SellExchange string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	SpreadPct    decimal.Decimal
	BaseAmount   decimal.Decimal
	Profit       decimal.Decimal
	BuyFee       decimal.Decimal
	SellFee      decimal.Decimal
	Simulated    bool
	Success      bool
	Error        string
	ExecutedAt   time.Time
}

// AttemptStore persists attempt records. Implemented by store/postgres; a nil
// store disables journaling.
type AttemptStore interface {
	Insert(ctx context.Context, rec AttemptRecord) error
	CountLive(ctx context.Context) (int64, error)
}

// PriceCache mirrors the latest tick per exchange to an external cache so
// other processes can observe the bot's view of the market. Implemented by
// cache/redis; a nil cache disables mirroring.
type PriceCache interface {
	SetPrice(ctx context.Context, tick PriceTick) error
	GetPrice(ctx context.Context, exchange, symbol string) (decimal.Decimal, time.Time, error)
}
