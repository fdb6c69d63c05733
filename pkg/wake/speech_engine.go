// Package wake provides the WebSocket-backed Engine talking to a local
// streaming speech service.
package wake

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	frameFragment = "fragment"
	frameEnded    = "ended"
	frameError    = "error"

	writeTimeout = 5 * time.Second
)

// SpeechEngineConfig holds configuration for the WebSocket speech engine.
type SpeechEngineConfig struct {
	// URL is the WebSocket endpoint of the speech service.
	URL string

	// ConnectTimeout bounds the WebSocket handshake.
	ConnectTimeout time.Duration

	// PingInterval is how often keepalive pings are sent. Zero disables
	// pings.
	PingInterval time.Duration

	// Language is the recognition language tag.
	Language string

	// Strategy selects continuous or burst sessions, normally taken from
	// the capability probe.
	Strategy Strategy
}

// DefaultSpeechEngineConfig returns production defaults.
func DefaultSpeechEngineConfig() SpeechEngineConfig {
	return SpeechEngineConfig{
		URL:            "ws://127.0.0.1:8765/v1/recognize",
		ConnectTimeout: 5 * time.Second,
		PingInterval:   20 * time.Second,
		Language:       "en-US",
		Strategy:       StrategyContinuous,
	}
}

// SpeechEngine creates recognition sessions against a local speech service.
// Each Start dials a fresh connection; sessions are never reused.
type SpeechEngine struct {
	cfg    SpeechEngineConfig
	logger zerolog.Logger
}

// NewSpeechEngine creates an engine with the given configuration.
func NewSpeechEngine(cfg SpeechEngineConfig, logger zerolog.Logger) *SpeechEngine {
	if cfg.URL == "" {
		cfg = DefaultSpeechEngineConfig()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyContinuous
	}
	return &SpeechEngine{cfg: cfg, logger: logger}
}

// Start dials the speech service, opens a session with the configured
// strategy, and begins translating service frames into callbacks.
func (e *SpeechEngine) Start(cb Callbacks) (Session, error) {
	dialer := websocket.Dialer{HandshakeTimeout: e.cfg.ConnectTimeout}
	conn, _, err := dialer.Dial(e.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("speech engine: dial %s: %w", e.cfg.URL, err)
	}

	id := uuid.NewString()
	s := &wsSession{
		conn:   conn,
		cb:     cb,
		done:   make(chan struct{}),
		logger: e.logger.With().Str("session", id).Logger(),
	}

	start := startFrame{
		Type:     "start",
		Mode:     string(e.cfg.Strategy),
		Interim:  e.cfg.Strategy == StrategyContinuous,
		Language: e.cfg.Language,
	}
	if err := s.writeJSON(start); err != nil {
		conn.Close()
		return nil, fmt.Errorf("speech engine: send start: %w", err)
	}

	go s.readLoop()
	if e.cfg.PingInterval > 0 {
		go s.pingLoop(e.cfg.PingInterval)
	}

	s.logger.Debug().
		Str("mode", string(e.cfg.Strategy)).
		Bool("interim", start.Interim).
		Msg("speech session started")
	return s, nil
}

// startFrame is the session-open control message sent to the service.
type startFrame struct {
	Type     string `json:"type"`
	Mode     string `json:"mode"`
	Interim  bool   `json:"interim"`
	Language string `json:"language,omitempty"`
}

// serviceFrame is one event received from the speech service.
type serviceFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// classifyCode maps service error codes onto the restart policy.
func classifyCode(code string) ErrorKind {
	switch code {
	case "not-allowed", "permission-denied":
		return ErrorPermissionDenied
	case "service-not-allowed":
		return ErrorServiceNotAllowed
	default:
		return ErrorTransient
	}
}

// wsSession is one run of the engine over one WebSocket connection. The
// conn is set before the goroutines start and never replaced.
type wsSession struct {
	logger zerolog.Logger
	conn   *websocket.Conn
	done   chan struct{}

	mu      sync.Mutex
	cb      Callbacks
	stopped bool
}

// Stop detaches the callbacks, then closes the connection. A late frame
// read after Stop is dropped. Safe to call more than once.
func (s *wsSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cb = Callbacks{}
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	s.mu.Unlock()

	_ = s.conn.Close()
	s.logger.Debug().Msg("speech session stopped")
}

func (s *wsSession) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.isStopped() {
				return
			}
			s.logger.Debug().Err(err).Msg("speech session read failed")
			s.emitError(ErrorTransient, fmt.Sprintf("connection lost: %v", err))
			return
		}

		var f serviceFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug().Err(err).Msg("unparseable service frame, skipped")
			continue
		}

		switch f.Type {
		case frameFragment:
			s.emitFragment(f.Text, f.Final)
		case frameEnded:
			s.emitEnded()
			return
		case frameError:
			// The service may still send ended after a transient
			// error; keep reading until the session closes.
			s.emitError(classifyCode(f.Code), frameErrMsg(f))
		default:
			s.logger.Debug().Str("type", f.Type).Msg("unknown frame type, ignored")
		}
	}
}

func (s *wsSession) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				s.logger.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

func (s *wsSession) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *wsSession) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// callbacks returns the current callback set under the lock, so emission
// after Stop sees the detached zero value.
func (s *wsSession) callbacks() Callbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cb
}

func (s *wsSession) emitFragment(text string, final bool) {
	if cb := s.callbacks(); cb.OnFragment != nil {
		cb.OnFragment(text, final)
	}
}

func (s *wsSession) emitEnded() {
	if cb := s.callbacks(); cb.OnEnded != nil {
		cb.OnEnded()
	}
}

func (s *wsSession) emitError(kind ErrorKind, msg string) {
	if cb := s.callbacks(); cb.OnError != nil {
		cb.OnError(kind, msg)
	}
}

func frameErrMsg(f serviceFrame) string {
	if f.Message != "" {
		return f.Message
	}
	if f.Code != "" {
		return f.Code
	}
	return "engine error"
}
