package arbitrage

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbiq/spreadbot/internal/domain"
)

func snap(pairs map[string]float64) domain.PriceSnapshot {
	s := make(domain.PriceSnapshot, len(pairs))
	for ex, p := range pairs {
		s[ex] = decimal.NewFromFloat(p)
	}
	return s
}

func TestEvaluateSpread(t *testing.T) {
	order := []string{"binance", "okx", "bitget", "htx"}

	tests := []struct {
		name      string
		threshold float64
		prices    map[string]float64
		wantOK    bool
		wantBuy   string
		wantSell  string
		wantPct   string
	}{
		{
			name:      "basic two percent spread",
			threshold: 0.3,
			prices:    map[string]float64{"binance": 100, "okx": 102},
			wantOK:    true,
			wantBuy:   "binance",
			wantSell:  "okx",
			wantPct:   "2.00",
		},
		{
			name:      "threshold is inclusive",
			threshold: 0.3,
			prices:    map[string]float64{"binance": 100, "okx": 100.3},
			wantOK:    true,
			wantBuy:   "binance",
			wantSell:  "okx",
			wantPct:   "0.30",
		},
		{
			name:      "just below threshold",
			threshold: 0.3,
			prices:    map[string]float64{"binance": 100, "okx": 100.29},
			wantOK:    false,
		},
		{
			name:      "fewer than two prices",
			threshold: 0.3,
			prices:    map[string]float64{"binance": 100},
			wantOK:    false,
		},
		{
			name:      "empty snapshot",
			threshold: 0.3,
			prices:    map[string]float64{},
			wantOK:    false,
		},
		{
			name:      "equal prices everywhere",
			threshold: 0.3,
			prices:    map[string]float64{"binance": 100, "okx": 100, "htx": 100},
			wantOK:    false,
		},
		{
			name:      "min picked across four exchanges",
			threshold: 0.5,
			prices:    map[string]float64{"binance": 101, "okx": 100, "bitget": 102, "htx": 101.5},
			wantOK:    true,
			wantBuy:   "okx",
			wantSell:  "bitget",
			wantPct:   "2.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := NewEvaluator(decimal.NewFromFloat(tt.threshold), order)
			opp, ok := eval.Evaluate(snap(tt.prices))
			if ok != tt.wantOK {
				t.Fatalf("Evaluate() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if opp.BuyExchange != tt.wantBuy {
				t.Errorf("buy exchange = %q, want %q", opp.BuyExchange, tt.wantBuy)
			}
			if opp.SellExchange != tt.wantSell {
				t.Errorf("sell exchange = %q, want %q", opp.SellExchange, tt.wantSell)
			}
			if got := opp.SpreadPct.StringFixed(2); got != tt.wantPct {
				t.Errorf("spread = %s, want %s", got, tt.wantPct)
			}
		})
	}
}

func TestEvaluateTieBreakIsDeterministic(t *testing.T) {
	// Two exchanges share the minimum; the first in the configured order wins.
	order := []string{"binance", "okx", "bitget"}
	eval := NewEvaluator(decimal.NewFromFloat(0.3), order)
	s := snap(map[string]float64{"binance": 100, "okx": 100, "bitget": 102})

	for i := 0; i < 50; i++ {
		opp, ok := eval.Evaluate(s)
		if !ok {
			t.Fatal("expected an opportunity")
		}
		if opp.BuyExchange != "binance" || opp.SellExchange != "bitget" {
			t.Fatalf("iteration %d: got buy=%s sell=%s, want buy=binance sell=bitget",
				i, opp.BuyExchange, opp.SellExchange)
		}
	}
}

func TestEvaluateIgnoresExchangesOutsideOrder(t *testing.T) {
	eval := NewEvaluator(decimal.NewFromFloat(0.3), []string{"binance", "okx"})
	s := snap(map[string]float64{"binance": 100, "okx": 100.1, "htx": 200})

	opp, ok := eval.Evaluate(s)
	if ok {
		t.Fatalf("expected no opportunity, got %+v", opp)
	}
}
