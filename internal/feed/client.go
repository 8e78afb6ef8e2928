package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbiq/spreadbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// keepAliveInterval is how often the adapter's heartbeat payload is sent.
	keepAliveInterval = 20 * time.Second

	// reconnectDelay is the fixed wait before re-dialing after any connection
	// or protocol failure. Deliberately flat: no backoff, no circuit breaker.
	reconnectDelay = 5 * time.Second
)

// TickHandler receives every successfully decoded price tick.
type TickHandler func(ctx context.Context, tick domain.PriceTick)

// Client owns one streaming connection to one exchange. It runs a uniform
// connect → subscribe → read → decode → publish cycle and reconnects forever
// on failure; exchange differences live entirely in the Adapter.
type Client struct {
	adapter    Adapter
	symbol     string // human-readable pair, e.g. "BTC/USDT"
	wireSymbol string
	url        string
	onTick     TickHandler
	logger     *slog.Logger
	delay      time.Duration
	heartbeat  time.Duration
}

// wsWriter serializes writes to one connection. The read loop answers server
// pings while keepAlive sends heartbeats, so writes come from two goroutines
// and gorilla permits only one writer at a time.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) write(messageType int, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(messageType, payload)
}

// NewClient creates a feed client for the given exchange adapter and pair.
// The wire symbol and endpoint URL are derived once here.
func NewClient(adapter Adapter, symbol string, onTick TickHandler, logger *slog.Logger) *Client {
	wire := adapter.FormatSymbol(symbol)
	return &Client{
		adapter:    adapter,
		symbol:     symbol,
		wireSymbol: wire,
		url:        adapter.URL(wire),
		onTick:     onTick,
		logger: logger.With(
			slog.String("component", "feed"),
			slog.String("exchange", adapter.Name()),
		),
		delay:     reconnectDelay,
		heartbeat: keepAliveInterval,
	}
}

// Run connects and streams until ctx is cancelled; it never returns nil. Every
// connection or protocol failure is recovered locally by reconnecting after a
// fixed delay, so no feed error ever reaches the coordinator.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", c.delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}
	}
}

// runConnection performs one full connect/subscribe/read cycle and returns the
// error that terminated it.
func (c *Client) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	// Close the connection when ctx is cancelled so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	w := &wsWriter{conn: conn}
	if payload, ok := c.adapter.SubscribePayload(c.wireSymbol); ok {
		if err := w.write(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	c.logger.Info("feed connected",
		slog.String("url", c.url),
		slog.String("wire_symbol", c.wireSymbol),
	)

	go c.keepAlive(w, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := c.adapter.Decode(raw)
		if err != nil {
			// Malformed frames are dropped; the connection stays open.
			c.logger.Debug("dropping undecodable frame", slog.String("error", err.Error()))
			continue
		}
		if msg.Reply != nil {
			if err := w.write(websocket.TextMessage, msg.Reply); err != nil {
				return err
			}
		}
		if msg.HasPrice {
			c.onTick(ctx, domain.PriceTick{
				Exchange:   c.adapter.Name(),
				Symbol:     c.symbol,
				Price:      msg.Price,
				ObservedAt: time.Now(),
			})
		}
	}
}

// keepAlive periodically sends the adapter's heartbeat payload, or a
// protocol-level ping when the adapter has none. It stops when the
// connection's read loop ends.
func (c *Client) keepAlive(w *wsWriter, done <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if payload, ok := c.adapter.KeepAlivePayload(); ok {
				if err := w.write(websocket.TextMessage, payload); err != nil {
					return
				}
			} else if err := w.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
