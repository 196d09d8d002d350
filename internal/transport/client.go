// Package transport maintains the persistent frame channel to a relay
// endpoint. The client owns a small connection state machine: it dials,
// reads frames, and on unexpected loss retries on a fixed interval until
// a retry budget is exhausted, after which it stays down until an
// explicit Retry.
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartcart-io/cartd/internal/config"
	"github.com/smartcart-io/cartd/internal/obs"
	"github.com/smartcart-io/cartd/internal/wire"
)

// ConnectionState is the lifecycle state of the channel.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateClosed       ConnectionState = "closed"
	StateReconnecting ConnectionState = "reconnecting"
	StateFailed       ConnectionState = "failed"
)

// ErrNotFailed is returned by Retry when the client has not exhausted
// its reconnect budget.
var ErrNotFailed = errors.New("client is not in the failed state")

// Handler consumes decoded inbound frames. Called from the read
// goroutine; implementations must not block for long.
type Handler func(wire.Message)

// Client is a reconnecting frame channel. Zero value is not usable;
// construct with NewClient.
type Client struct {
	url     string
	tuning  config.Tuning
	handler Handler
	dialer  *websocket.Dialer

	mu             sync.Mutex
	state          ConnectionState
	conn           *websocket.Conn
	attempts       int
	reconnectTimer *time.Timer
	generation     uint64 // invalidates goroutines of torn-down connections

	writeMu sync.Mutex
}

func NewClient(url string, tuning config.Tuning, handler Handler) *Client {
	if handler == nil {
		handler = func(wire.Message) {}
	}
	return &Client{
		url:     url,
		tuning:  tuning,
		handler: handler,
		dialer: &websocket.Dialer{
			HandshakeTimeout: tuning.HandshakeTimeout(),
		},
		state: StateClosed,
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the channel. It returns once the first dial attempt has
// completed; a failed first dial still arms the reconnect timer, so a
// non-nil error does not mean the client gave up.
func (c *Client) Connect() error {
	c.mu.Lock()
	switch c.state {
	case StateOpen, StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.attempts = 0
	c.mu.Unlock()

	return c.dial()
}

// dial performs one connection attempt and transitions the state machine
// on the outcome.
func (c *Client) dial() error {
	conn, _, err := c.dialer.Dial(c.url, nil)

	c.mu.Lock()
	if c.state == StateClosed {
		// Disconnect raced the dial; discard the connection.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		c.mu.Unlock()
		obs.Logger.Warn("channel dial failed", "url", c.url, "error", err)
		c.scheduleReconnect()
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	obs.Logger.Info("channel open", "url", c.url)
	go c.readLoop(conn, gen)
	go c.keepalive(conn, gen)
	return nil
}

// scheduleReconnect arms the fixed-interval retry timer, or parks the
// client in the failed state once the budget is spent.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed || c.state == StateFailed {
		return
	}

	c.attempts++
	if c.attempts > c.tuning.MaxReconnectAttempts {
		c.state = StateFailed
		obs.Logger.Error("channel reconnect budget exhausted",
			"url", c.url, "attempts", c.attempts-1)
		return
	}

	c.state = StateReconnecting
	obs.Logger.Info("channel reconnect scheduled",
		"url", c.url, "attempt", c.attempts, "interval", c.tuning.ReconnectInterval())
	c.reconnectTimer = time.AfterFunc(c.tuning.ReconnectInterval(), func() {
		// The state machine carries the outcome; the error is already logged.
		_ = c.dial()
	})
}

// readLoop drains the connection until it dies, handing each decodable
// frame to the handler. Malformed frames are logged and skipped.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := gen != c.generation || c.state == StateClosed
			if !stale {
				c.conn = nil
			}
			c.mu.Unlock()
			if stale {
				return
			}
			obs.Logger.Warn("channel read failed", "url", c.url, "error", err)
			c.scheduleReconnect()
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			obs.Logger.Warn("discarding malformed frame", "error", err)
			continue
		}
		if u, ok := msg.(wire.Unknown); ok {
			obs.Logger.Debug("ignoring unknown frame type", "type", u.Type)
			continue
		}
		c.handler(msg)
	}
}

// keepalive pings on the configured interval so intermediaries keep the
// connection alive. A failed write is left for the read loop to notice.
func (c *Client) keepalive(conn *websocket.Conn, gen uint64) {
	ticker := time.NewTicker(c.tuning.KeepaliveInterval())
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		stale := gen != c.generation || c.state != StateOpen
		c.mu.Unlock()
		if stale {
			return
		}
		if err := c.write(conn, wire.Ping{}); err != nil {
			obs.Logger.Warn("keepalive write failed", "error", err)
			return
		}
	}
}

func (c *Client) write(conn *websocket.Conn, msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Send writes one frame. When the channel is not open the frame is
// dropped with a warning rather than queued; senders never block on
// channel health.
func (c *Client) Send(msg wire.Message) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != StateOpen || conn == nil {
		obs.Logger.Warn("dropping frame, channel not open", "state", string(state))
		return nil
	}
	if err := c.write(conn, msg); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Retry restarts a client that exhausted its reconnect budget.
func (c *Client) Retry() error {
	c.mu.Lock()
	if c.state != StateFailed {
		c.mu.Unlock()
		return ErrNotFailed
	}
	c.state = StateConnecting
	c.attempts = 0
	c.mu.Unlock()
	return c.dial()
}

// Disconnect tears the channel down and cancels any pending reconnect.
// Safe to call in any state, any number of times.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.generation++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	obs.Logger.Info("channel closed", "url", c.url)
}
