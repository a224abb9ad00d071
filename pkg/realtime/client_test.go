package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackOff_GrowsToCapAndResets(t *testing.T) {
	b := NewBackOff(100*time.Millisecond, time.Second, 0)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.NextBackOff(), "attempt %d", i)
	}

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestNewBackOff_BoundedRetries(t *testing.T) {
	b := NewBackOff(10*time.Millisecond, 40*time.Millisecond, 3)
	for i := 0; i < 3; i++ {
		assert.NotEqual(t, backoff.Stop, b.NextBackOff())
	}
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}

func TestClient_PublishNeverBlocks(t *testing.T) {
	c := NewClient(ClientOptions{URL: "ws://127.0.0.1:1", QueueSize: 2})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			c.Publish(evt("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	assert.Equal(t, uint64(8), c.Dropped())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var mu sync.Mutex
	var states []State

	c := NewClient(ClientOptions{
		URL:        "ws://127.0.0.1:1/unreachable",
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
		MaxRetries: 2,
		Dialer:     &websocket.Dialer{HandshakeTimeout: 100 * time.Millisecond},
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Run(ctx)
	require.ErrorIs(t, err, ErrRetriesExhausted)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		StateConnecting, StateDisconnected,
		StateConnecting, StateDisconnected,
		StateConnecting, StateDisconnected,
	}, states)
}

func TestClient_DeliversAndReconnects(t *testing.T) {
	received := make(chan domain.Event, 10)
	var conns sync.WaitGroup
	conns.Add(2)
	var count int
	var mu sync.Mutex

	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mu.Lock()
		count++
		n := count
		mu.Unlock()
		conns.Done()

		var e domain.Event
		if err := conn.ReadJSON(&e); err != nil {
			return
		}
		received <- e
		if n == 1 {
			// Drop the first connection to force a reconnect.
			return
		}
		for {
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			received <- e
		}
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		BaseDelay: 5 * time.Millisecond,
		MaxDelay:  20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	c.Publish(evt("first"))
	select {
	case e := <-received:
		assert.Equal(t, "first", e.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("first event not delivered")
	}

	conns.Wait()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)

	c.Publish(evt("second"))
	select {
	case e := <-received:
		assert.Equal(t, "second", e.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered after reconnect")
	}

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, StateDisconnected, c.State())
}

func TestFanout_StampsAndForwards(t *testing.T) {
	a := NewHub(5, nil)
	b := NewHub(5, nil)

	Fanout{a, nil, b}.Publish(domain.Event{Type: domain.EventCallStarted, CallID: "CA9"})

	require.Len(t, a.Recent(), 1)
	require.Len(t, b.Recent(), 1)
	got := a.Recent()[0]
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, got.ID, b.Recent()[0].ID)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "state(9)", State(9).String())
}
