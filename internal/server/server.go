// Package server exposes the hotword daemon's loopback control API:
// health probes, Prometheus metrics, detector control, page signal
// inputs, the trigger journal, and the live event stream.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/normanking/hotword/internal/config"
	"github.com/normanking/hotword/internal/journal"
	"github.com/normanking/hotword/internal/metrics"
	"github.com/normanking/hotword/internal/prefs"
	"github.com/normanking/hotword/pkg/wake"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second

	// replayCount is how many recent events a new subscriber receives.
	replayCount = 25
)

// Options carries the daemon components the API surfaces. Config and
// Detector are required; the rest degrade gracefully when nil.
type Options struct {
	Addr      string
	Version   string
	Config    *config.Config
	Detector  *wake.Detector
	Journal   *journal.Journal
	Collector *metrics.Collector
	Prefs     *prefs.Store
	// Hub lets the daemon share an event hub created before the detector,
	// so detector callbacks can broadcast from the start. Nil creates one.
	Hub    *Hub
	Logger zerolog.Logger
}

// Server is the loopback control API for one hotword daemon.
type Server struct {
	opts    Options
	hub     *Hub
	server  *http.Server
	started time.Time
}

// New builds the server and its route table. Call Start to begin serving.
func New(opts Options) *Server {
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(opts.Logger)
	}
	s := &Server{
		opts:    opts,
		hub:     hub,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/enable", s.handleEnable)
	mux.HandleFunc("/v1/disable", s.handleDisable)
	mux.HandleFunc("/v1/suspend", s.handleSuspend)
	mux.HandleFunc("/v1/resume", s.handleResume)
	mux.HandleFunc("/v1/signals/dictation", s.handleDictation)
	mux.HandleFunc("/v1/signals/visibility", s.handleVisibility)
	mux.HandleFunc("/v1/signals/interaction", s.handleInteraction)
	mux.HandleFunc("/v1/signals/speech-completed", s.handleSpeechCompleted)
	mux.HandleFunc("/v1/journal", s.handleJournal)
	mux.HandleFunc("/v1/match", s.handleMatch)
	mux.HandleFunc("/v1/events", s.handleEvents)

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Hub returns the event hub so the daemon can broadcast detector events.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the route table for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.opts.Logger.Info().Str("addr", s.opts.Addr).Msg("control API listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.opts.Logger.Error().Err(err).Msg("control API server error")
		}
	}()
}

// Shutdown disconnects event subscribers and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.opts.Detector.IsSupported() {
		writeError(w, http.StatusServiceUnavailable, "wake detection unsupported on this device")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

type statusResponse struct {
	Version  string               `json:"version,omitempty"`
	Uptime   string               `json:"uptime"`
	Snapshot wake.Snapshot        `json:"snapshot"`
	Config   configSummary        `json:"config"`
	Stats    metrics.SessionStats `json:"stats"`
	Recent   []metrics.Event      `json:"recent_events,omitempty"`
}

// configSummary is the slice of daemon configuration echoed to status
// callers. No filesystem paths.
type configSummary struct {
	Phrases     []string `json:"phrases"`
	MaxDistance int      `json:"max_distance"`
	Cooldown    string   `json:"cooldown"`
	MinInterval string   `json:"min_interval"`
	EngineURL   string   `json:"engine_url"`
	Addr        string   `json:"addr"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	det := s.opts.Config.Detector
	resp := statusResponse{
		Version:  s.opts.Version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Snapshot: s.opts.Detector.Snapshot(),
		Config: configSummary{
			Phrases:     det.Phrases,
			MaxDistance: det.MaxDistance,
			Cooldown:    det.Cooldown.String(),
			MinInterval: det.MinInterval.String(),
			EngineURL:   s.opts.Config.Engine.URL,
			Addr:        s.opts.Config.Server.Addr,
		},
	}
	if s.opts.Collector != nil {
		resp.Stats = s.opts.Collector.Stats()
		resp.Recent = s.opts.Collector.RecentEvents(10)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.opts.Detector.Enable()
	s.persistEnabled(true)
	s.writeState(w)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.opts.Detector.Disable()
	s.persistEnabled(false)
	s.writeState(w)
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.opts.Detector.Suspend()
	s.writeState(w)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.opts.Detector.Resume()
	s.writeState(w)
}

func (s *Server) handleDictation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, `body must be {"active": bool}`)
		return
	}
	s.opts.Detector.SetDictationActive(*req.Active)
	s.writeState(w)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Visible == nil {
		writeError(w, http.StatusBadRequest, `body must be {"visible": bool}`)
		return
	}
	s.opts.Detector.SetPageVisible(*req.Visible)
	s.writeState(w)
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.opts.Detector.NoteUserInteraction()
	s.writeState(w)
}

func (s *Server) handleSpeechCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.opts.Detector.SpeechOutputCompleted()
	s.writeState(w)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.opts.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.opts.Logger.Error().Err(err).Msg("journal query failed")
		writeError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type matchResponse struct {
	Matched  bool   `json:"matched"`
	Phrase   string `json:"phrase,omitempty"`
	Distance int    `json:"distance"`
}

// handleMatch dry-runs the phrase matcher against the configured phrases
// without touching detector state.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, `body must be {"text": string}`)
		return
	}
	det := s.opts.Config.Detector
	res := wake.Evaluate(req.Text, det.Phrases, det.MaxDistance)
	writeJSON(w, http.StatusOK, matchResponse{
		Matched:  res.Matched,
		Phrase:   res.Phrase,
		Distance: res.Distance,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var replay []PushEvent
	if r.URL.Query().Get("replay") != "false" && s.opts.Collector != nil {
		for _, ev := range s.opts.Collector.RecentEvents(replayCount) {
			replay = append(replay, PushEvent{Type: ev.Type, Data: ev.Detail, At: ev.At})
		}
	}
	s.hub.ServeWS(w, r, replay)
}

// persistEnabled records the enabled preference so the daemon restores it
// on restart. Failures are logged, not surfaced to the caller.
func (s *Server) persistEnabled(v bool) {
	if s.opts.Prefs == nil {
		return
	}
	if err := s.opts.Prefs.SetBool(prefs.KeyEnabled, v); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("persisting enabled preference failed")
	}
}

func (s *Server) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"state": s.opts.Detector.State()})
}

// apiError is the JSON body of every non-2xx response.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already out by the time Encode can fail.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Code: status, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
