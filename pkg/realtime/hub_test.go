package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evt(id string) domain.Event {
	return domain.Event{ID: id, Type: domain.EventNodeEntered, CallID: "CA1"}
}

func ids(events []domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestHub_RecentWindow(t *testing.T) {
	h := NewHub(3, nil)
	assert.Empty(t, h.Recent())

	h.Publish(evt("1"))
	h.Publish(evt("2"))
	assert.Equal(t, []string{"1", "2"}, ids(h.Recent()))

	h.Publish(evt("3"))
	h.Publish(evt("4"))
	h.Publish(evt("5"))
	assert.Equal(t, []string{"3", "4", "5"}, ids(h.Recent()))
}

func TestHub_SubscribeReplaysThenStreams(t *testing.T) {
	h := NewHub(10, nil)
	h.Publish(evt("old"))

	ch, cancel := h.Subscribe(4)
	defer cancel()

	h.Publish(evt("new"))

	assert.Equal(t, "old", (<-ch).ID)
	assert.Equal(t, "new", (<-ch).ID)
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	h := NewHub(10, nil)
	ch, cancel := h.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			h.Publish(evt("x"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	assert.Equal(t, 0, h.Subscribers())
	<-ch
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after drop")
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	h := NewHub(10, nil)
	_, cancel := h.Subscribe(1)
	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers())
}

func TestHub_WebSocketReplay(t *testing.T) {
	h := NewHub(10, nil)
	h.Publish(evt("before-connect"))

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var got domain.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "before-connect", got.ID)

	h.Publish(evt("live"))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "live", got.ID)
}
