package feed

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// HTXAdapter consumes the HTX (Huobi) market trade-detail channel. Frames are
// gzip-compressed, and the server drives keep-alive: every {"ping":n} must be
// answered with {"pong":n} or the connection is dropped.
type HTXAdapter struct{}

type htxMessage struct {
	Ping int64  `json:"ping"`
	Ch   string `json:"ch"`
	Tick *struct {
		Data []struct {
			Price json.Number `json:"price"`
		} `json:"data"`
	} `json:"tick"`
}

func (a *HTXAdapter) Name() string { return "htx" }

// FormatSymbol turns "BTC/USDT" into "btcusdt".
func (a *HTXAdapter) FormatSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
}

func (a *HTXAdapter) URL(string) string {
	return "wss://api-aws.huobi.pro/ws"
}

func (a *HTXAdapter) SubscribePayload(wireSymbol string) ([]byte, bool) {
	payload, _ := json.Marshal(map[string]string{
		"sub": fmt.Sprintf("market.%s.trade.detail", wireSymbol),
		"id":  "price_monitor",
	})
	return payload, true
}

func (a *HTXAdapter) KeepAlivePayload() ([]byte, bool) { return nil, false }

// Decode gunzips the frame if needed, answers server pings, and extracts the
// newest trade price from tick pushes. Subscription acks decode to an empty
// Message.
func (a *HTXAdapter) Decode(raw []byte) (Message, error) {
	data, err := gunzipIfNeeded(raw)
	if err != nil {
		return Message{}, fmt.Errorf("htx: gunzip: %w", err)
	}
	var m htxMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("htx: unmarshal: %w", err)
	}
	if m.Ping != 0 {
		reply, _ := json.Marshal(map[string]int64{"pong": m.Ping})
		return Message{Reply: reply}, nil
	}
	if m.Tick == nil || len(m.Tick.Data) == 0 {
		return Message{}, nil
	}
	price, err := decimal.NewFromString(m.Tick.Data[0].Price.String())
	if err != nil {
		return Message{}, fmt.Errorf("htx: parse price %q: %w", m.Tick.Data[0].Price, err)
	}
	return Message{Price: price, HasPrice: true}, nil
}

// gzip frames start with the 0x1f 0x8b magic; plain JSON frames pass through.
func gunzipIfNeeded(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
