// Package domain holds the core types shared by every layer of the bot:
// price ticks, snapshots, opportunities, trade results, and the interfaces
// implemented by the cache and store adapters.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one price observation from one exchange. It is immutable once
// constructed by a feed client.
type PriceTick struct {
	Exchange   string
	Symbol     string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// PriceSnapshot is a consistent point-in-time copy of the latest known price
// per exchange. Exchanges that have never reported a tick are absent from the
// map; a price present in the map is never removed afterwards.
type PriceSnapshot map[string]decimal.Decimal

// Opportunity is a detected spread exceeding the configured threshold between
// two specific exchanges. It is derived on every tick, never stored.
type Opportunity struct {
	BuyExchange  string
	SellExchange string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	SpreadPct    decimal.Decimal
}

// TradeResult describes one completed arbitrage attempt. In simulated mode it
// is synthesized from current prices; in live mode it comes from the trading
// gateway.
type TradeResult struct {
	BuyPrice   decimal.Decimal
	SellPrice  decimal.Decimal
	Profit     decimal.Decimal // quote-currency units
	BuyFee     decimal.Decimal
	SellFee    decimal.Decimal
	BaseAmount decimal.Decimal
	Simulated  bool
}

// Balance is the free base/quote balance of one exchange account.
type Balance struct {
	Base  decimal.Decimal
	Quote decimal.Decimal
}
