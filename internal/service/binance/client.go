package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	drepo "BandPilot/internal/domain/repository"
	applogger "BandPilot/pkg/logger"
)

// Client reads the spot price from the Binance miniTicker stream.
type Client struct {
	websocketURL string
	symbol       string
	readTimeout  time.Duration
	dialer       *websocket.Dialer
	l            *applogger.Logger
}

var _ drepo.SpotPriceSource = (*Client)(nil)

// New creates a spot price source for symbol, e.g. BTCUSDT.
func New(websocketURL, symbol string, readTimeout time.Duration, l *applogger.Logger) *Client {
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Client{
		websocketURL: strings.TrimRight(websocketURL, "/"),
		symbol:       symbol,
		readTimeout:  readTimeout,
		dialer:       websocket.DefaultDialer,
		l:            l,
	}
}

// StreamURL is the miniTicker endpoint for the configured symbol.
func (c *Client) StreamURL() string {
	return fmt.Sprintf("%s/%s@miniTicker", c.websocketURL, strings.ToLower(c.symbol))
}

type miniTicker struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// LatestPrice connects, waits for the first ticker frame and returns its close.
func (c *Client) LatestPrice(ctx context.Context) (float64, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL(), nil)
	if err != nil {
		return 0, fmt.Errorf("binance connect: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("binance read: %w", err)
		}
		var m miniTicker
		if err := json.Unmarshal(b, &m); err != nil || m.Close == "" {
			// ignore non-ticker frames
			continue
		}
		price, err := strconv.ParseFloat(m.Close, 64)
		if err != nil || price <= 0 {
			c.l.Warn("binance bad ticker", applogger.String("payload", string(b)))
			continue
		}
		c.l.Debug("binance price", applogger.String("symbol", m.Symbol), applogger.Float64("price", price))
		return price, nil
	}
}
