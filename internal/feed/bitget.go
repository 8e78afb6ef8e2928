package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BitgetAdapter consumes the Bitget spot v1 trade channel. Subscription uses
// the instType/channel/instId triple; heartbeats are a text "ping".
type BitgetAdapter struct{}

type bitgetMessage struct {
	Action string `json:"action"`
	Event  string `json:"event"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Arg    *struct {
		InstType string `json:"instType"`
		Channel  string `json:"channel"`
		InstID   string `json:"instId"`
	} `json:"arg"`
	Data []map[string]json.RawMessage `json:"data"`
}

func (a *BitgetAdapter) Name() string { return "bitget" }

// FormatSymbol turns "BTC/USDT" into "BTCUSDT".
func (a *BitgetAdapter) FormatSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

func (a *BitgetAdapter) URL(string) string {
	return "wss://ws.bitget.com/spot/v1/stream"
}

func (a *BitgetAdapter) SubscribePayload(wireSymbol string) ([]byte, bool) {
	payload, _ := json.Marshal(map[string]any{
		"op": "subscribe",
		"args": []map[string]string{{
			"instType": "SP",
			"channel":  "trade",
			"instId":   wireSymbol,
		}},
	})
	return payload, true
}

func (a *BitgetAdapter) KeepAlivePayload() ([]byte, bool) {
	return []byte("ping"), true
}

// Decode extracts the most recent trade price from a snapshot or update push.
// The trade list arrives newest-first; only the head entry is read.
func (a *BitgetAdapter) Decode(raw []byte) (Message, error) {
	if string(raw) == "pong" {
		return Message{}, nil
	}
	var m bitgetMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("bitget: unmarshal: %w", err)
	}
	if m.Event == "error" || m.Code != 0 {
		return Message{}, fmt.Errorf("bitget: server error code=%d msg=%s", m.Code, m.Msg)
	}
	if m.Action != "snapshot" && m.Action != "update" {
		return Message{}, nil
	}
	if len(m.Data) == 0 {
		return Message{}, nil
	}
	rawPrice, ok := m.Data[0]["price"]
	if !ok {
		return Message{}, nil
	}
	// The price field is a JSON string on this channel.
	var s string
	if err := json.Unmarshal(rawPrice, &s); err != nil {
		return Message{}, fmt.Errorf("bitget: price field: %w", err)
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return Message{}, fmt.Errorf("bitget: parse price %q: %w", s, err)
	}
	return Message{Price: price, HasPrice: true}, nil
}
