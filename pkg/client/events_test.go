package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStream_ReceivesEventsInOrder(t *testing.T) {
	srv := newEventServer(t, func(conn *websocket.Conn, _ int) {
		conn.WriteJSON(map[string]any{"type": "wake", "data": map[string]string{"phrase": "hey jacq"}, "at": time.Now()})
		conn.WriteJSON(map[string]any{"type": "state", "data": "listening -> cooldown", "at": time.Now()})
		time.Sleep(200 * time.Millisecond)
	})

	received := make(chan Event, 4)
	stream := NewEventStream(EventStreamConfig{URL: wsURL(srv)})
	stream.OnEvent = func(ev Event) { received <- ev }

	require.NoError(t, stream.Connect(context.Background()))
	defer stream.Close()

	ev := waitEvent(t, received)
	assert.Equal(t, "wake", ev.Type)
	assert.Contains(t, string(ev.Data), "hey jacq")

	ev = waitEvent(t, received)
	assert.Equal(t, "state", ev.Type)

	last, at := stream.LastEvent()
	assert.Equal(t, "state", last.Type)
	assert.False(t, at.IsZero())
}

func TestEventStream_ReplayFlagInURL(t *testing.T) {
	sawReplay := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sawReplay <- r.URL.Query().Get("replay"):
		default:
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(100 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	stream := NewEventStream(EventStreamConfig{URL: wsURL(srv), Replay: false})
	require.NoError(t, stream.Connect(context.Background()))
	defer stream.Close()

	select {
	case v := <-sawReplay:
		assert.Equal(t, "false", v)
	case <-time.After(time.Second):
		t.Fatal("server never saw the connection")
	}
}

func TestEventStream_ReconnectsAfterDrop(t *testing.T) {
	srv := newEventServer(t, func(conn *websocket.Conn, n int) {
		if n == 1 {
			// Drop the first connection immediately.
			return
		}
		conn.WriteJSON(map[string]any{"type": "state", "data": "recovered", "at": time.Now()})
		time.Sleep(200 * time.Millisecond)
	})

	received := make(chan Event, 1)
	stream := NewEventStream(EventStreamConfig{
		URL:            wsURL(srv),
		Reconnect:      true,
		ReconnectDelay: 20 * time.Millisecond,
	})
	stream.OnEvent = func(ev Event) {
		select {
		case received <- ev:
		default:
		}
	}
	stream.OnError = func(error) {}

	require.NoError(t, stream.Connect(context.Background()))
	defer stream.Close()

	ev := waitEvent(t, received)
	assert.Equal(t, "state", ev.Type)
}

func TestEventStream_NoReconnectStops(t *testing.T) {
	srv := newEventServer(t, func(conn *websocket.Conn, _ int) {})

	errs := make(chan error, 1)
	stream := NewEventStream(EventStreamConfig{URL: wsURL(srv), Reconnect: false})
	stream.OnError = func(err error) {
		select {
		case errs <- err:
		default:
		}
	}

	require.NoError(t, stream.Connect(context.Background()))

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect error")
	}

	assert.Eventually(t, func() bool {
		return !stream.isRunning()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventStream_ConnectTwiceFails(t *testing.T) {
	srv := newEventServer(t, func(conn *websocket.Conn, _ int) {
		time.Sleep(200 * time.Millisecond)
	})

	stream := NewEventStream(EventStreamConfig{URL: wsURL(srv)})
	require.NoError(t, stream.Connect(context.Background()))
	defer stream.Close()

	assert.Error(t, stream.Connect(context.Background()))
}

func TestEventStream_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	stream := NewEventStream(EventStreamConfig{URL: wsURL(srv)})
	err := stream.Connect(context.Background())
	require.Error(t, err)

	// A failed connect leaves the stream reusable.
	assert.False(t, stream.isRunning())
	assert.NoError(t, stream.Close())
}

func TestDefaultEventStreamConfig(t *testing.T) {
	cfg := DefaultEventStreamConfig()
	assert.Equal(t, "ws://127.0.0.1:8390/v1/events", cfg.URL)
	assert.True(t, cfg.Replay)
	assert.True(t, cfg.Reconnect)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
}

// newEventServer runs script for each WebSocket connection, passing the
// 1-based connection count. The connection closes when script returns.
func newEventServer(t *testing.T, script func(conn *websocket.Conn, n int)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	conns := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		script(conn, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events"
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
