package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OKXAdapter consumes the OKX v5 public tickers channel on the shared public
// endpoint. Subscription names the instrument explicitly; idle connections are
// kept open with a text "ping" heartbeat.
type OKXAdapter struct{}

type okxMessage struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   *struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
	} `json:"data"`
}

func (a *OKXAdapter) Name() string { return "okx" }

// FormatSymbol turns "BTC/USDT" into "BTC-USDT".
func (a *OKXAdapter) FormatSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

func (a *OKXAdapter) URL(string) string {
	return "wss://ws.okx.com:8443/ws/v5/public"
}

func (a *OKXAdapter) SubscribePayload(wireSymbol string) ([]byte, bool) {
	payload, _ := json.Marshal(map[string]any{
		"op": "subscribe",
		"args": []map[string]string{{
			"channel": "tickers",
			"instId":  wireSymbol,
		}},
	})
	return payload, true
}

func (a *OKXAdapter) KeepAlivePayload() ([]byte, bool) {
	return []byte("ping"), true
}

// Decode extracts the last traded price from a tickers push. Subscription
// acks, error events, and pong frames decode to an empty Message.
func (a *OKXAdapter) Decode(raw []byte) (Message, error) {
	if string(raw) == "pong" {
		return Message{}, nil
	}
	var m okxMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("okx: unmarshal: %w", err)
	}
	if m.Event == "error" || (m.Code != "" && m.Code != "0") {
		return Message{}, fmt.Errorf("okx: server error code=%s msg=%s", m.Code, m.Msg)
	}
	if m.Arg == nil || m.Arg.Channel != "tickers" || len(m.Data) == 0 {
		return Message{}, nil
	}
	last := m.Data[0].Last
	if last == "" {
		return Message{}, nil
	}
	price, err := decimal.NewFromString(last)
	if err != nil {
		return Message{}, fmt.Errorf("okx: parse last %q: %w", last, err)
	}
	return Message{Price: price, HasPrice: true}, nil
}
