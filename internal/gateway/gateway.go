// Package gateway defines the trading capability the coordinator depends on
// and provides the two implementations: a simulated gateway for dry runs and
// a remote client for a real trade-execution service. Exchange REST mechanics
// (order placement, polling, fee math) live behind that service, not here.
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/domain"
)

// TradingGateway places and settles a cross-exchange market-order pair and
// answers balance queries.
type TradingGateway interface {
	// Execute buys baseAmount on buyVenue and sells it on sellVenue. A
	// positive quoteBudget caps the quote spent on the buy leg for venues
	// that size market buys in quote units.
	Execute(ctx context.Context, pair, buyVenue, sellVenue string, baseAmount, quoteBudget decimal.Decimal) (domain.TradeResult, error)

	// FreeBalance returns the free balance of asset on venue.
	FreeBalance(ctx context.Context, venue, asset string) (decimal.Decimal, error)
}

// ExecutionError wraps a trade-execution failure with the venue pair it
// occurred on. Live-mode callers treat it as fatal.
type ExecutionError struct {
	BuyVenue  string
	SellVenue string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("gateway: execute %s->%s: %v", e.BuyVenue, e.SellVenue, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
