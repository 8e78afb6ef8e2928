package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BinanceAdapter consumes the Binance public trade stream. The stream is
// per-symbol and unsolicited: the symbol is embedded in the endpoint path and
// no subscription message is needed.
type BinanceAdapter struct{}

type binanceTrade struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
}

func (a *BinanceAdapter) Name() string { return "binance" }

// FormatSymbol turns "BTC/USDT" into "btcusdt".
func (a *BinanceAdapter) FormatSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
}

func (a *BinanceAdapter) URL(wireSymbol string) string {
	return fmt.Sprintf("wss://stream.binance.com:9443/ws/%s@trade", wireSymbol)
}

func (a *BinanceAdapter) SubscribePayload(string) ([]byte, bool) { return nil, false }

func (a *BinanceAdapter) KeepAlivePayload() ([]byte, bool) { return nil, false }

// Decode extracts the last trade price from a trade event. Non-trade events
// decode to an empty Message.
func (a *BinanceAdapter) Decode(raw []byte) (Message, error) {
	var t binanceTrade
	if err := json.Unmarshal(raw, &t); err != nil {
		return Message{}, fmt.Errorf("binance: unmarshal: %w", err)
	}
	if t.EventType != "trade" || t.Price == "" {
		return Message{}, nil
	}
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return Message{}, fmt.Errorf("binance: parse price %q: %w", t.Price, err)
	}
	return Message{Price: price, HasPrice: true}, nil
}
