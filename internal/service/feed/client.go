package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
)

// Client implements SnapshotStream over a WebSocket market-data feed. It
// keeps the TRAP windows warm between decision calls by streaming snapshot
// frames for the subscribed symbols.
type Client struct {
	token          string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

func New(token, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect dials the feed and subscribes to the configured symbols.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.token != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	return nil
}

// wire frame of one snapshot batch.
type frame struct {
	Type string             `json:"type"`
	Data []snapshotWireData `json:"data"`
}

type snapshotWireData struct {
	Symbol      string  `json:"s"`
	SpreadBps   float64 `json:"spread_bps"`
	OBImbalance float64 `json:"ob_imb"`
	TFImbalance float64 `json:"tf_imb"`
	CancelDelta float64 `json:"cancel_delta"`
	AddDelta    float64 `json:"add_delta"`
	TradeCount  int     `json:"trade_count"`
	Vol         float64 `json:"vol_pct"`
	T           int64   `json:"t"` // ms
}

// Read streams snapshots and errors. The error channel closing means the
// read loop exited and a Reconnect is needed.
func (c *Client) Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error) {
	snapshots := make(chan *models.MarketSnapshot, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(snapshots)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var f frame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-snapshot frames
					continue
				}
				if f.Type != "snapshot" {
					continue
				}
				for _, d := range f.Data {
					s := &models.MarketSnapshot{
						Symbol:        d.Symbol,
						SpreadBps:     d.SpreadBps,
						OBImbalance:   d.OBImbalance,
						TFImbalance:   d.TFImbalance,
						CancelDelta:   d.CancelDelta,
						AddDelta:      d.AddDelta,
						TradeCount:    d.TradeCount,
						VolatilityPct: d.Vol,
						Timestamp:     time.UnixMilli(d.T),
					}
					select {
					case snapshots <- s:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return snapshots, errs
}

// Reconnect closes and re-dials with the configured delay.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	return c.Connect(ctx)
}

func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) IsConnected() bool { return c.connected }

var _ drepo.SnapshotStream = (*Client)(nil)
