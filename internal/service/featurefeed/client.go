package featurefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a FeatureStream backed by the upstream feature pipeline's
// WebSocket endpoint.
type Client struct {
	apiKey         string
	websocketURL   string
	channels       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new feature feed FeatureStream.
func New(apiKey, websocketURL string, channels []string, reconnectDelay, pingInterval time.Duration) drepo.FeatureStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		channels:       channels,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("featurefeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("featurefeed: connected")
	return nil
}

// Subscribe subscribes to configured feature channels.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("featurefeed not connected")
	}
	for _, ch := range c.channels {
		msg := map[string]string{"type": "subscribe", "channel": ch}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		log.Printf("featurefeed: subscribed %s", ch)
	}
	return nil
}

type feedRow struct {
	Timestamp string   `json:"timestamp"` // RFC3339
	VIXLevel  *float64 `json:"vix_level"`
	Corr4W    *float64 `json:"corr_4w"`
	RV4W      *float64 `json:"rv_4w"`
}

type feedMessage struct {
	Type string    `json:"type"`
	Data []feedRow `json:"data"`
}

// Read streams feature rows and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.FeatureRow, <-chan error) {
	rows := make(chan *models.FeatureRow, 1024)
	errs := make(chan error, 1)

	// ping loop
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

	// read loop
	go func() {
		defer close(rows)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("featurefeed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("featurefeed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-data frames
					continue
				}
				if m.Type != "features" {
					continue
				}
				for _, d := range m.Data {
					ts, err := time.Parse(time.RFC3339, d.Timestamp)
					if err != nil {
						log.Printf("featurefeed: bad timestamp %q", d.Timestamp)
						continue
					}
					row := &models.FeatureRow{
						Timestamp: ts,
						VIXLevel:  d.VIXLevel,
						Corr4W:    d.Corr4W,
						RV4W:      d.RV4W,
					}
					select {
					case rows <- row:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return rows, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
