// Package feed implements the per-exchange streaming price clients. Each
// exchange differs only in its wire adapter (endpoint, subscription payload,
// symbol format, message shape); the connect/read/decode/publish loop in
// Client is shared.
package feed

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Message is the result of decoding one raw server frame. A frame may carry a
// price, a keep-alive that requires a reply, both, or neither (acks, heartbeats
// and other channels are simply irrelevant).
type Message struct {
	Price    decimal.Decimal
	HasPrice bool
	Reply    []byte // written back to the server when non-nil (e.g. HTX pong)
}

// Adapter is the exchange-specific half of a feed client. Implementations are
// stateless; one exists per supported exchange id.
type Adapter interface {
	// Name returns the exchange id, e.g. "binance".
	Name() string

	// FormatSymbol converts the human-readable pair ("BTC/USDT") into the
	// exchange's wire representation. Called once at startup.
	FormatSymbol(symbol string) string

	// URL returns the websocket endpoint for the given wire symbol. Some
	// exchanges embed the symbol in the path, others use a shared endpoint.
	URL(wireSymbol string) string

	// SubscribePayload returns the subscription message to send after
	// connecting, or ok=false when the endpoint streams without one.
	SubscribePayload(wireSymbol string) ([]byte, bool)

	// KeepAlivePayload returns the application-level heartbeat to send
	// periodically, or ok=false when none is required.
	KeepAlivePayload() ([]byte, bool)

	// Decode extracts a price and/or a required reply from one raw frame.
	// Frames that are valid but irrelevant decode to an empty Message with a
	// nil error; a non-nil error means the frame was malformed.
	Decode(raw []byte) (Message, error)
}

// adapters maps exchange ids to their constructors. This is the fixed
// allow-list; it is not extended at runtime.
var adapters = map[string]func() Adapter{
	"binance": func() Adapter { return &BinanceAdapter{} },
	"okx":     func() Adapter { return &OKXAdapter{} },
	"bitget":  func() Adapter { return &BitgetAdapter{} },
	"htx":     func() Adapter { return &HTXAdapter{} },
}

// NewAdapter returns the adapter for the given exchange id.
func NewAdapter(exchange string) (Adapter, error) {
	ctor, ok := adapters[exchange]
	if !ok {
		return nil, fmt.Errorf("feed: unsupported exchange %q", exchange)
	}
	return ctor(), nil
}

// SupportedExchanges returns the allow-list of exchange ids.
func SupportedExchanges() []string {
	return []string{"binance", "okx", "bitget", "htx"}
}
