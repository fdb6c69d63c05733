package wake

import "time"

// State represents the detector's current mode.
type State string

const (
	// StateIdle indicates the detector is constructed but not listening.
	StateIdle State = "idle"
	// StateListening indicates an engine session is running and fragments
	// are being matched.
	StateListening State = "listening"
	// StateCooldown indicates a wake event just fired and listening is
	// paused until the cooldown elapses.
	StateCooldown State = "cooldown"
	// StateSuspended indicates listening is paused by dictation, page
	// visibility, or a manual suspend.
	StateSuspended State = "suspended"
	// StateError indicates the engine reported a failure.
	StateError State = "error"
	// StateUnsupported indicates the environment cannot run continuous
	// recognition. Terminal for the instance.
	StateUnsupported State = "unsupported"
)

// Terminal returns true when no transition can ever leave s.
func (s State) Terminal() bool {
	return s == StateUnsupported
}

// Permission tracks what is known about microphone/recognition permission.
type Permission string

const (
	// PermissionUnknown means no grant or denial has been observed yet.
	PermissionUnknown Permission = "unknown"
	// PermissionGranted means the engine has delivered at least one
	// fragment, or a prior grant was persisted.
	PermissionGranted Permission = "granted"
	// PermissionDenied means the engine reported a permission failure.
	PermissionDenied Permission = "denied"
)

// Trigger describes one confirmed wake event.
type Trigger struct {
	// Phrase is the canonical phrase that matched.
	Phrase string
	// Fragment is the transcript fragment that produced the match.
	Fragment string
	// Distance is the edit distance of the winning candidate.
	Distance int
	// At is when the match was confirmed.
	At time.Time
}

// Snapshot is a point-in-time copy of the detector's read model.
type Snapshot struct {
	State        State      `json:"state"`
	Err          string     `json:"error,omitempty"`
	LastFragment string     `json:"last_fragment,omitempty"`
	LastPhrase   string     `json:"last_phrase,omitempty"`
	Permission   Permission `json:"permission"`
	LastTrigger  time.Time  `json:"last_trigger,omitzero"`
	Supported    bool       `json:"supported"`
	Device       DeviceInfo `json:"device"`

	// Gate signals as last observed.
	ManualSuspend   bool `json:"manual_suspend"`
	Enabled         bool `json:"enabled"`
	DictationActive bool `json:"dictation_active"`
	PageVisible     bool `json:"page_visible"`
	InteractionSeen bool `json:"interaction_seen"`

	// Counters since construction.
	Triggers      uint64 `json:"triggers"`
	Restarts      uint64 `json:"restarts"`
	WatchdogKicks uint64 `json:"watchdog_kicks"`
}
