// Package pricetable provides the shared table of latest prices per exchange.
// It is the only mutable state touched by multiple feed goroutines and is
// guarded by a single exclusive lock.
package pricetable

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/domain"
)

// Table holds the latest known price for each configured exchange. The set of
// exchanges is fixed at construction; updates for unknown exchanges are
// rejected. A price, once set, is only ever overwritten, never cleared.
type Table struct {
	mu     sync.Mutex
	order  []string
	prices map[string]decimal.Decimal
}

// New creates a Table for the given exchange list. The slice order is
// preserved and exposed through Exchanges for deterministic downstream
// iteration.
func New(exchanges []string) *Table {
	order := make([]string, len(exchanges))
	copy(order, exchanges)
	return &Table{
		order:  order,
		prices: make(map[string]decimal.Decimal, len(exchanges)),
	}
}

// Update overwrites the latest price for the given exchange. It returns
// domain.ErrUnknownVenue when the exchange was not part of the configured set
// and ignores non-positive prices.
func (t *Table) Update(exchange string, price decimal.Decimal) error {
	if !t.knows(exchange) {
		return domain.ErrUnknownVenue
	}
	if !price.IsPositive() {
		return nil
	}
	t.mu.Lock()
	t.prices[exchange] = price
	t.mu.Unlock()
	return nil
}

// Snapshot returns an internally consistent copy of the current prices.
// Exchanges that have not reported yet are absent from the result.
func (t *Table) Snapshot() domain.PriceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := make(domain.PriceSnapshot, len(t.prices))
	for ex, p := range t.prices {
		snap[ex] = p
	}
	return snap
}

// Exchanges returns the configured exchange ids in construction order.
func (t *Table) Exchanges() []string {
	return t.order
}

func (t *Table) knows(exchange string) bool {
	for _, ex := range t.order {
		if ex == exchange {
			return true
		}
	}
	return false
}
