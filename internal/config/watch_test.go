package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitChange(t *testing.T, ch <-chan *Config) *Config {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
		return nil
	}
}

func TestWatchFile_ReloadsOnWrite(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	cfg := Default()
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	changes := make(chan *Config, 4)
	w, err := WatchFile(configPath, zerolog.Nop(), func(c *Config) { changes <- c })
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Close()

	cfg.Detector.Enabled = false
	cfg.Detector.Cooldown = 9 * time.Second
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	got := waitChange(t, changes)
	if got.Detector.Enabled {
		t.Error("expected reloaded config with detector disabled")
	}
	if got.Detector.Cooldown != 9*time.Second {
		t.Errorf("expected reloaded cooldown 9s, got %s", got.Detector.Cooldown)
	}
}

func TestWatchFile_ReloadFailureKeepsPrevious(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	cfg := Default()
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	changes := make(chan *Config, 4)
	w, err := WatchFile(configPath, zerolog.Nop(), func(c *Config) { changes <- c })
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Close()

	// Unparseable content must not produce a callback.
	if err := os.WriteFile(configPath, []byte("{ unclosed"), 0o644); err != nil {
		t.Fatalf("failed to corrupt config: %v", err)
	}
	select {
	case c := <-changes:
		t.Fatalf("unexpected reload from corrupt file: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}

	// A later valid write recovers.
	cfg.Server.Addr = "127.0.0.1:9999"
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	got := waitChange(t, changes)
	if got.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("expected recovered config with new addr, got %s", got.Server.Addr)
	}
}

func TestWatcher_CloseStopsDelivery(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	cfg := Default()
	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	changes := make(chan *Config, 4)
	w, err := WatchFile(configPath, zerolog.Nop(), func(c *Config) { changes <- c })
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close watcher: %v", err)
	}

	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	select {
	case c := <-changes:
		t.Fatalf("reload delivered after close: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}
