package realtime

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	wsBufferSize   = 1024

	// DefaultWindow is the number of recent events kept for replay.
	DefaultWindow = 100
	// DefaultSubscriberBuffer is the per-subscriber queue length.
	DefaultSubscriberBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	ch chan domain.Event
}

// Hub broadcasts events to in-process and websocket subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	ring   []domain.Event
	next   int
	full   bool
	logger *slog.Logger
}

// NewHub creates a hub replaying the last window events to new subscribers.
func NewHub(window int, logger *slog.Logger) *Hub {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		ring:   make([]domain.Event, window),
		logger: logger,
	}
}

// Publish records the event and fans it out. Subscribers whose buffer is
// full are disconnected instead of slowing the publisher down.
func (h *Hub) Publish(evt domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = evt
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.full = true
	}

	for sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			h.logger.Warn("Realtime subscriber too slow, dropping it")
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// Recent returns the replay window, oldest first.
func (h *Hub) Recent() []domain.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recentLocked()
}

func (h *Hub) recentLocked() []domain.Event {
	if !h.full {
		return append([]domain.Event(nil), h.ring[:h.next]...)
	}
	out := make([]domain.Event, 0, len(h.ring))
	out = append(out, h.ring[h.next:]...)
	return append(out, h.ring[:h.next]...)
}

// Subscribe registers a subscriber. The returned channel first yields the
// replay window, then live events; it is closed by cancel or when the
// subscriber falls behind.
func (h *Hub) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	recent := h.recentLocked()
	sub := &subscriber{ch: make(chan domain.Event, buffer+len(recent))}
	for _, evt := range recent {
		sub.ch <- evt
	}
	h.subs[sub] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request to a websocket and streams events as JSON.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "err", err)
		return
	}

	events, cancel := h.Subscribe(DefaultSubscriberBuffer)
	go h.stream(conn, events, cancel)
}

func (h *Hub) stream(conn *websocket.Conn, events <-chan domain.Event, cancel func()) {
	defer func() {
		cancel()
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case evt, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
