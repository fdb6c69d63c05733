// Package client is a Go client for the hotword daemon's loopback control
// API. It covers detector control, page signals, the trigger journal, and
// the live event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/normanking/hotword/pkg/wake"
)

// Config holds connection settings for the control API.
type Config struct {
	// BaseURL is the daemon's HTTP address, e.g. http://127.0.0.1:8390.
	BaseURL string
	// Timeout bounds each request.
	Timeout time.Duration
}

// DefaultConfig returns settings for a daemon on the default local port.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8390",
		Timeout: 5 * time.Second,
	}
}

// Client talks to a running hotword daemon.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client. Zero-value fields fall back to defaults.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Status is the daemon's full state report.
type Status struct {
	Version  string        `json:"version"`
	Uptime   string        `json:"uptime"`
	Snapshot wake.Snapshot `json:"snapshot"`
	Config   ConfigSummary `json:"config"`
	Stats    Stats         `json:"stats"`
	Recent   []RecentEvent `json:"recent_events"`
}

// ConfigSummary echoes the daemon configuration relevant to callers.
type ConfigSummary struct {
	Phrases     []string `json:"phrases"`
	MaxDistance int      `json:"max_distance"`
	Cooldown    string   `json:"cooldown"`
	MinInterval string   `json:"min_interval"`
	EngineURL   string   `json:"engine_url"`
	Addr        string   `json:"addr"`
}

// Stats are counters accumulated since the daemon started.
type Stats struct {
	StartTime     time.Time `json:"start_time"`
	Triggers      int       `json:"triggers"`
	StateChanges  int       `json:"state_changes"`
	EngineErrors  int       `json:"engine_errors"`
	SessionStarts int       `json:"session_starts"`
	LastPhrase    string    `json:"last_phrase,omitempty"`
	LastEvent     string    `json:"last_event,omitempty"`
	LastEventTime time.Time `json:"last_event_time,omitzero"`
}

// RecentEvent is one entry of the daemon's in-memory event ring.
type RecentEvent struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// TriggerRecord is one persisted wake trigger.
type TriggerRecord struct {
	ID          string    `json:"id"`
	Phrase      string    `json:"phrase"`
	Fragment    string    `json:"fragment"`
	Distance    int       `json:"distance"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// MatchResult is the daemon's dry-run matcher verdict.
type MatchResult struct {
	Matched  bool   `json:"matched"`
	Phrase   string `json:"phrase,omitempty"`
	Distance int    `json:"distance"`
}

// Health checks the daemon's liveness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Status fetches the daemon's full state report.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Enable turns wake detection on and returns the resulting state.
func (c *Client) Enable(ctx context.Context) (string, error) {
	return c.control(ctx, "/v1/enable", nil)
}

// Disable turns wake detection off and returns the resulting state.
func (c *Client) Disable(ctx context.Context) (string, error) {
	return c.control(ctx, "/v1/disable", nil)
}

// Suspend pauses listening without releasing the enabled toggle.
func (c *Client) Suspend(ctx context.Context) (string, error) {
	return c.control(ctx, "/v1/suspend", nil)
}

// Resume lifts a manual suspension.
func (c *Client) Resume(ctx context.Context) (string, error) {
	return c.control(ctx, "/v1/resume", nil)
}

// SetDictation reports whether a dictation session is active.
func (c *Client) SetDictation(ctx context.Context, active bool) (string, error) {
	return c.control(ctx, "/v1/signals/dictation", map[string]bool{"active": active})
}

// SetVisibility reports whether the page is visible.
func (c *Client) SetVisibility(ctx context.Context, visible bool) (string, error) {
	return c.control(ctx, "/v1/signals/visibility", map[string]bool{"visible": visible})
}

// NoteInteraction reports a user gesture to the detector.
func (c *Client) NoteInteraction(ctx context.Context) (string, error) {
	return c.control(ctx, "/v1/signals/interaction", nil)
}

// SpeechCompleted reports that agent speech output finished.
func (c *Client) SpeechCompleted(ctx context.Context) (string, error) {
	return c.control(ctx, "/v1/signals/speech-completed", nil)
}

// Journal fetches recent wake triggers, newest first. A limit of zero or
// less uses the daemon default.
func (c *Client) Journal(ctx context.Context, limit int) ([]TriggerRecord, error) {
	path := "/v1/journal"
	if limit > 0 {
		path = fmt.Sprintf("/v1/journal?limit=%d", limit)
	}
	var resp struct {
		Entries []TriggerRecord `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Match dry-runs the phrase matcher against a transcript fragment without
// touching detector state.
func (c *Client) Match(ctx context.Context, text string) (*MatchResult, error) {
	var res MatchResult
	if err := c.do(ctx, http.MethodPost, "/v1/match", map[string]string{"text": text}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) control(ctx context.Context, path string, body any) (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("client: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
