package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// ErrRetriesExhausted is returned by Run when the reconnect budget is spent.
var ErrRetriesExhausted = errors.New("realtime: reconnect retries exhausted")

// State is the connection state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ClientOptions configures a Client. Zero values take the defaults below.
type ClientOptions struct {
	URL    string
	Header http.Header

	BaseDelay    time.Duration // 500ms
	MaxDelay     time.Duration // 30s
	MaxRetries   int           // 10
	PingInterval time.Duration // 20s
	WriteTimeout time.Duration // 5s
	QueueSize    int           // 256

	Dialer *websocket.Dialer
	Logger *slog.Logger

	// OnStateChange observes transitions. It runs on the connection goroutine.
	OnStateChange func(State)
}

func (o *ClientOptions) defaults() {
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 10
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
}

// Client publishes events to an external monitoring websocket.
// It shares no lock with its callers: Publish only touches a buffered channel.
type Client struct {
	opts    ClientOptions
	queue   chan domain.Event
	state   atomic.Int32
	dropped atomic.Uint64

	mu      sync.Mutex
	running bool
}

// NewClient creates a client. Nothing is dialed until Run.
func NewClient(opts ClientOptions) *Client {
	opts.defaults()
	return &Client{
		opts:  opts,
		queue: make(chan domain.Event, opts.QueueSize),
	}
}

// Publish queues evt for delivery, dropping it if the queue is full.
func (c *Client) Publish(evt domain.Event) {
	select {
	case c.queue <- evt:
	default:
		c.dropped.Add(1)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Dropped returns how many events were discarded because the queue was full.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.opts.Logger.Debug("Realtime client state", "state", s.String(), "url", c.opts.URL)
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// Run keeps the connection alive until ctx is done or retries are exhausted.
// The backoff schedule restarts after every successful connection.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("realtime: client already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		c.setState(StateDisconnected)
	}()

	b := NewBackOff(c.opts.BaseDelay, c.opts.MaxDelay, c.opts.MaxRetries)
	for {
		c.setState(StateConnecting)
		conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err == nil {
			b.Reset()
			c.setState(StateConnected)
			c.opts.Logger.Info("Connected to realtime monitor", "url", c.opts.URL)
			err = c.serve(ctx, conn)
		}
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			c.opts.Logger.Error("Giving up on realtime monitor", "url", c.opts.URL, "err", err)
			return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}
		c.opts.Logger.Warn("Realtime monitor connection lost, retrying",
			"url", c.opts.URL, "delay", delay, "err", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// serve pumps queued events and liveness pings until the connection fails.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	readTimeout := 3 * c.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()

		case err := <-readErr:
			return fmt.Errorf("read: %w", err)

		case evt := <-c.queue:
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				// The event is lost with the connection; delivery is best-effort.
				return fmt.Errorf("write: %w", err)
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}
