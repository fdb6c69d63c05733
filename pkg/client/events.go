// Package client provides subscription to the daemon's live event stream
// over WebSocket.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event is one message from the daemon's /v1/events stream.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// EventStreamConfig holds settings for the event subscription.
type EventStreamConfig struct {
	// URL is the WebSocket endpoint, e.g. ws://127.0.0.1:8390/v1/events.
	URL string
	// Replay requests the daemon's recent event ring on connect.
	Replay bool
	// Reconnect re-dials after connection loss until the context ends.
	Reconnect bool
	// ReconnectDelay is the pause between redial attempts.
	ReconnectDelay time.Duration
}

// DefaultEventStreamConfig returns settings for a daemon on the default
// local port.
func DefaultEventStreamConfig() EventStreamConfig {
	return EventStreamConfig{
		URL:            "ws://127.0.0.1:8390/v1/events",
		Replay:         true,
		Reconnect:      true,
		ReconnectDelay: 2 * time.Second,
	}
}

// EventStream receives live detector events from a running daemon.
type EventStream struct {
	mu      sync.RWMutex
	cfg     EventStreamConfig
	conn    *websocket.Conn
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	lastEvent Event
	lastTime  time.Time

	// OnEvent receives each decoded event, in arrival order, from the read
	// goroutine. Keep it fast or hand off to a channel.
	OnEvent func(Event)
	// OnError receives read and redial failures.
	OnError func(error)
}

// NewEventStream creates a stream. A zero config falls back to defaults.
func NewEventStream(cfg EventStreamConfig) *EventStream {
	if cfg.URL == "" {
		cfg = DefaultEventStreamConfig()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	return &EventStream{cfg: cfg}
}

// Connect dials the daemon and starts delivering events. The stream stops
// when ctx ends or Close is called.
func (s *EventStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("event stream: already running")
	}
	cctx, cancel := context.WithCancel(ctx)
	s.ctx, s.cancel = cctx, cancel
	s.running = true
	s.mu.Unlock()

	conn, err := s.dial(cctx)
	if err != nil {
		s.Close()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	log.Debug().Str("url", s.cfg.URL).Msg("event stream connected")
	go s.readLoop(cctx)
	return nil
}

// LastEvent returns the most recent event and when it arrived.
func (s *EventStream) LastEvent() (Event, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEvent, s.lastTime
}

// Close stops the stream and closes the connection.
func (s *EventStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

func (s *EventStream) dial(ctx context.Context) (*websocket.Conn, error) {
	url := s.cfg.URL
	if !s.cfg.Replay {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "replay=false"
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("event stream: dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

func (s *EventStream) readLoop(ctx context.Context) {
	for {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || !s.isRunning() {
				return
			}
			if s.OnError != nil {
				s.OnError(err)
			}
			if !s.cfg.Reconnect {
				s.Close()
				return
			}
			if !s.redial(ctx) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.lastEvent = ev
		s.lastTime = time.Now()
		s.mu.Unlock()

		if s.OnEvent != nil {
			s.OnEvent(ev)
		}
	}
}

// redial retries the connection until it succeeds or the stream stops.
func (s *EventStream) redial(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.cfg.ReconnectDelay):
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if s.OnError != nil {
				s.OnError(err)
			}
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return false
		}
		s.conn = conn
		s.mu.Unlock()
		log.Debug().Str("url", s.cfg.URL).Msg("event stream reconnected")
		return true
	}
}

func (s *EventStream) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
