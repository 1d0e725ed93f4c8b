// Package ws maintains a Binance futures market stream connection with
// automatic resubscribe on reconnect. Reconnects are bounded: once the
// consecutive-failure ceiling is hit Run returns an error and the process is
// expected to exit rather than trade on stale data.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type Client struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	maxReconnects  int
	log            *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   []string
	nextID int
}

func New(url string, reconnectDelay, pingInterval time.Duration, maxReconnects int, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		maxReconnects:  maxReconnects,
		log:            log,
		nextID:         1,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20)
	c.conn = conn
	return nil
}

// Subscribe registers streams (e.g. "btcusdt@aggTrade") and, when connected,
// sends the SUBSCRIBE frame immediately. Registered streams are replayed on
// every reconnect.
func (c *Client) Subscribe(ctx context.Context, streams ...string) error {
	c.mu.Lock()
	c.subs = append(c.subs, streams...)
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return c.writeSubscribe(ctx, conn, streams)
}

func (c *Client) writeSubscribe(ctx context.Context, conn *websocket.Conn, streams []string) error {
	if len(streams) == 0 {
		return nil
	}
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()
	msg := map[string]any{"method": "SUBSCRIBE", "params": streams, "id": id}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Run reads until the context is canceled or the reconnect budget is spent.
// A session that delivered at least one message resets the failure counter.
func (c *Client) Run(ctx context.Context, handler func(json.RawMessage)) error {
	failures := 0
	for {
		if err := c.ensureConnected(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if c.maxReconnects > 0 && failures > c.maxReconnects {
				return fmt.Errorf("ws reconnect budget exhausted after %d attempts: %w", failures, err)
			}
			c.log.Warn("ws connect failed", zap.Int("attempt", failures), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.reconnectDelay):
			}
			continue
		}

		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			c.pingLoop(pingCtx)
		}()

		received := false
		err := c.readLoop(ctx, func(msg json.RawMessage) {
			received = true
			if handler != nil {
				handler(msg)
			}
		})
		cancel()
		<-pingDone
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			failures = 0
		}
		failures++
		if c.maxReconnects > 0 && failures > c.maxReconnects {
			return fmt.Errorf("ws reconnect budget exhausted after %d attempts: %w", failures, err)
		}
		c.log.Warn("ws read loop ended", zap.Int("attempt", failures), zap.Error(err))
		c.resetConn()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	subs := append([]string(nil), c.subs...)
	c.mu.Unlock()
	return c.writeSubscribe(ctx, conn, subs)
}

func (c *Client) readLoop(ctx context.Context, handler func(json.RawMessage)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("ws not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		handler(json.RawMessage(data))
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	interval := c.pingInterval
	c.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (c *Client) resetConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "reset")
		c.conn = nil
	}
}
