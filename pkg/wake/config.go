// Package wake provides detector configuration and validation.
package wake

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config configures a Detector. It is read once at construction and never
// mutated afterward.
type Config struct {
	// Enabled is the initial enablement of the feature.
	Enabled bool

	// Phrases are the canonical wake phrases; the first entry is the
	// display form. Matching is case-insensitive.
	Phrases []string

	// MaxDistance is the edit-distance threshold for a match.
	MaxDistance int

	// Cooldown is the mandatory quiet period after a wake trigger.
	Cooldown time.Duration

	// MinInterval is the minimum spacing between two wake callbacks,
	// enforced at match time as a secondary guard under Cooldown.
	MinInterval time.Duration

	// WatchdogInterval is how often the liveness check runs. Zero
	// disables the watchdog.
	WatchdogInterval time.Duration

	// RequireInteraction holds listening until a user interaction has
	// been observed, unless a prior permission grant was persisted.
	RequireInteraction bool

	// AutoStart attempts a first listen at construction.
	AutoStart bool

	// DictationActive is the initial state of the dictation signal.
	DictationActive bool

	// Environment is the user-agent style descriptor of the host
	// environment, classified once by the capability probe.
	Environment string

	// Prefs persists the permission grant across runs. May be nil.
	Prefs PreferenceStore

	// OnWake is invoked synchronously on every confirmed wake trigger, before
	// the session is stopped and the cooldown starts. It runs under the
	// detector's internal lock: do not call Detector methods from it. A
	// panic inside it is recovered and logged.
	OnWake func(Trigger)

	// OnStateChange is invoked on its own goroutine after every state
	// transition.
	OnStateChange func(old, new State)

	// OnError is invoked on its own goroutine when the engine reports a
	// failure.
	OnError func(kind ErrorKind, msg string)

	// Logger receives detector logs. Defaults to a disabled logger.
	Logger zerolog.Logger
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		Phrases:            []string{"hey jacq"},
		MaxDistance:        2,
		Cooldown:           4 * time.Second,
		MinInterval:        2 * time.Second,
		WatchdogInterval:   7 * time.Second,
		RequireInteraction: true,
		AutoStart:          true,
		Environment:        "desktop chromium",
		Logger:             zerolog.Nop(),
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if len(normalizePhrases(c.Phrases)) == 0 {
		return fmt.Errorf("wake config: at least one non-empty phrase required")
	}
	if c.MaxDistance < 0 {
		return fmt.Errorf("wake config: max distance must be >= 0, got %d", c.MaxDistance)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("wake config: cooldown must be positive, got %s", c.Cooldown)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("wake config: min interval must be >= 0, got %s", c.MinInterval)
	}
	if c.WatchdogInterval < 0 {
		return fmt.Errorf("wake config: watchdog interval must be >= 0, got %s", c.WatchdogInterval)
	}
	return nil
}

// normalizePhrases lowercases and trims phrases, dropping empties.
func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
