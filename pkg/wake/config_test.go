package wake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, []string{"hey jacq"}, cfg.Phrases)
	assert.Equal(t, 2, cfg.MaxDistance)
	assert.Equal(t, 4*time.Second, cfg.Cooldown)
	assert.Equal(t, 2*time.Second, cfg.MinInterval)
	assert.Equal(t, 7*time.Second, cfg.WatchdogInterval)
	assert.True(t, cfg.RequireInteraction)
	assert.True(t, cfg.AutoStart)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "no phrases", mutate: func(c *Config) { c.Phrases = nil }, wantErr: true},
		{name: "blank phrases", mutate: func(c *Config) { c.Phrases = []string{"  ", ""} }, wantErr: true},
		{name: "negative distance", mutate: func(c *Config) { c.MaxDistance = -1 }, wantErr: true},
		{name: "zero distance ok", mutate: func(c *Config) { c.MaxDistance = 0 }, wantErr: false},
		{name: "zero cooldown", mutate: func(c *Config) { c.Cooldown = 0 }, wantErr: true},
		{name: "negative min interval", mutate: func(c *Config) { c.MinInterval = -time.Second }, wantErr: true},
		{name: "zero min interval ok", mutate: func(c *Config) { c.MinInterval = 0 }, wantErr: false},
		{name: "negative watchdog", mutate: func(c *Config) { c.WatchdogInterval = -time.Second }, wantErr: true},
		{name: "zero watchdog ok", mutate: func(c *Config) { c.WatchdogInterval = 0 }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizePhrases(t *testing.T) {
	got := normalizePhrases([]string{"  Hey Jacq ", "", "OK COMPUTER", "\t"})
	assert.Equal(t, []string{"hey jacq", "ok computer"}, got)
}
