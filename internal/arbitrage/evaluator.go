// Package arbitrage computes the cross-exchange spread from a price snapshot
// and decides whether it constitutes an opportunity.
package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Evaluator is a pure spread calculator. Threshold is the minimum spread in
// percent (inclusive); order is the configured exchange list, used as the
// deterministic tie-break when several exchanges share the minimum or maximum
// price.
type Evaluator struct {
	threshold decimal.Decimal
	order     []string
}

// NewEvaluator creates an Evaluator with the given inclusive threshold
// (percent) and exchange iteration order.
func NewEvaluator(threshold decimal.Decimal, order []string) *Evaluator {
	return &Evaluator{threshold: threshold, order: order}
}

// Threshold returns the configured spread threshold in percent.
func (e *Evaluator) Threshold() decimal.Decimal { return e.threshold }

// Evaluate returns the opportunity for the given snapshot, if any. With fewer
// than two known prices there is never an opportunity. Ties on the minimum or
// maximum price resolve to the exchange that appears first in the configured
// order, so the result is deterministic for any snapshot.
func (e *Evaluator) Evaluate(snap domain.PriceSnapshot) (domain.Opportunity, bool) {
	var (
		buyEx, sellEx string
		minP, maxP    decimal.Decimal
		seen          int
	)
	for _, ex := range e.order {
		p, ok := snap[ex]
		if !ok {
			continue
		}
		if seen == 0 {
			buyEx, sellEx = ex, ex
			minP, maxP = p, p
		} else {
			if p.LessThan(minP) {
				buyEx, minP = ex, p
			}
			if p.GreaterThan(maxP) {
				sellEx, maxP = ex, p
			}
		}
		seen++
	}
	if seen < 2 || buyEx == sellEx {
		return domain.Opportunity{}, false
	}

	spread := maxP.Sub(minP).Div(minP).Mul(hundred)
	if spread.LessThan(e.threshold) {
		return domain.Opportunity{}, false
	}
	return domain.Opportunity{
		BuyExchange:  buyEx,
		SellExchange: sellEx,
		BuyPrice:     minP,
		SellPrice:    maxP,
		SpreadPct:    spread,
	}, true
}
