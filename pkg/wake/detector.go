// Package wake implements passive wake-phrase detection on top of a
// streaming speech-recognition engine.
//
// The Detector owns all mutable state, applies the transition rules, and
// drives engine sessions and timers. Every external signal and engine
// callback funnels through one dispatch path under a single lock, so two
// starts can never race.
package wake

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Jitter window for restarts after an unexpected session end or a
// transient error, so a dying engine is not hammered in a tight loop.
const (
	restartDelayMin = 600 * time.Millisecond
	restartDelayMax = 1000 * time.Millisecond
)

type eventKind int

const (
	evEnable eventKind = iota
	evDisable
	evSuspend
	evResume
	evDictation
	evVisibility
	evInteraction
	evSpeechDone
	evFragment
	evEnded
	evEngineErr
	evCooldownFire
	evRestartFire
	evWatchdogTick
)

// event is one named input to the state machine. Engine events carry the
// session sequence they belong to; timer events carry the epoch they were
// scheduled in. Stale events are dropped.
type event struct {
	kind    eventKind
	flag    bool
	text    string
	errKind ErrorKind
	seq     uint64
	epoch   uint64
}

// Detector is the wake-word state machine. Construct with New; all methods
// are safe for concurrent use.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	logger  zerolog.Logger
	engine  Engine
	device  DeviceInfo
	phrases []string

	supported bool
	closed    bool

	state        State
	lastErr      string
	lastFragment string
	lastPhrase   string
	permission   Permission
	lastTrigger  time.Time

	enabled       bool
	dictation     bool
	visible       bool
	interacted    bool
	manual        bool
	permPersisted bool

	session    Session
	sessionSeq uint64
	epoch      uint64

	cooldownTimer *time.Timer
	restartTimer  *time.Timer
	watchdogDone  chan struct{}

	triggers      uint64
	restarts      uint64
	watchdogKicks uint64
}

// New builds a Detector for the given engine. The environment descriptor is
// probed once: an unsupported environment yields an inert detector whose
// state is permanently StateUnsupported. When cfg.AutoStart is set and the
// constraint gate already holds, listening begins immediately.
func New(cfg Config, eng Engine) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	device := Classify(cfg.Environment)
	d := &Detector{
		cfg:        cfg,
		logger:     cfg.Logger,
		engine:     eng,
		device:     device,
		phrases:    normalizePhrases(cfg.Phrases),
		state:      StateIdle,
		permission: PermissionUnknown,
		enabled:    cfg.Enabled,
		dictation:  cfg.DictationActive,
		visible:    true,
	}

	if !device.Supported() {
		d.state = StateUnsupported
		d.logger.Info().
			Str("platform", string(device.Platform)).
			Str("engine", string(device.Engine)).
			Msg("environment unsupported, wake detection disabled")
		return d, nil
	}
	if eng == nil {
		return nil, fmt.Errorf("wake: engine required")
	}
	d.supported = true

	if cfg.Prefs != nil {
		if v, ok := cfg.Prefs.Get(PrefKeyPermission); ok && v == prefTrue {
			d.permission = PermissionGranted
			d.permPersisted = true
		}
	}

	if cfg.WatchdogInterval > 0 {
		d.watchdogDone = make(chan struct{})
		go d.watchdogLoop(d.watchdogDone)
	}

	if cfg.AutoStart {
		d.mu.Lock()
		d.attemptStart()
		d.mu.Unlock()
	}

	return d, nil
}

// Enable turns the feature on and attempts to start listening.
func (d *Detector) Enable() { d.dispatch(event{kind: evEnable}) }

// Disable turns the feature off, stops the engine, and clears every
// pending timer and the manual-suspend flag.
func (d *Detector) Disable() { d.dispatch(event{kind: evDisable}) }

// Suspend pauses listening until Resume is called.
func (d *Detector) Suspend() { d.dispatch(event{kind: evSuspend}) }

// Resume clears a manual suspend and attempts to start listening.
func (d *Detector) Resume() { d.dispatch(event{kind: evResume}) }

// SetDictationActive tells the detector whether the primary dictation
// feature currently owns the microphone.
func (d *Detector) SetDictationActive(active bool) {
	d.dispatch(event{kind: evDictation, flag: active})
}

// SetPageVisible tells the detector whether the host page is visible.
func (d *Detector) SetPageVisible(visible bool) {
	d.dispatch(event{kind: evVisibility, flag: visible})
}

// NoteUserInteraction records the one-time user interaction that satisfies
// the interaction gate.
func (d *Detector) NoteUserInteraction() { d.dispatch(event{kind: evInteraction}) }

// SpeechOutputCompleted signals that the assistant finished speaking; used
// as an opportunistic early re-arm that cancels a running cooldown.
func (d *Detector) SpeechOutputCompleted() { d.dispatch(event{kind: evSpeechDone}) }

// State returns the current detector state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsSupported reports whether the probed environment can run detection.
func (d *Detector) IsSupported() bool { return d.supported }

// Device returns the capability probe's classification.
func (d *Detector) Device() DeviceInfo { return d.device }

// Snapshot returns a copy of the full read model.
func (d *Detector) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		State:           d.state,
		Err:             d.lastErr,
		LastFragment:    d.lastFragment,
		LastPhrase:      d.lastPhrase,
		Permission:      d.permission,
		ManualSuspend:   d.manual,
		Enabled:         d.enabled,
		DictationActive: d.dictation,
		PageVisible:     d.visible,
		InteractionSeen: d.interacted,
		LastTrigger:     d.lastTrigger,
		Supported:       d.supported,
		Device:          d.device,
		Triggers:        d.triggers,
		Restarts:        d.restarts,
		WatchdogKicks:   d.watchdogKicks,
	}
}

// Close stops the engine, cancels all timers, and shuts the watchdog down.
// Idempotent. No callback scheduled before Close fires after it.
func (d *Detector) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cancelTimers()
	d.stopSession()
	if d.supported {
		d.state = StateIdle
	}
	done := d.watchdogDone
	d.watchdogDone = nil
	d.mu.Unlock()

	if done != nil {
		close(done)
	}
	d.logger.Debug().Msg("detector closed")
	return nil
}

func (d *Detector) dispatch(ev event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.supported {
		return
	}
	d.apply(ev)
}

// apply is the single transition function. Caller holds d.mu.
func (d *Detector) apply(ev event) {
	switch ev.kind {
	case evEnable:
		d.enabled = true
		d.attemptStart()

	case evDisable:
		d.enabled = false
		d.manual = false
		d.cancelTimers()
		d.stopSession()
		d.setState(StateIdle)

	case evSuspend:
		d.manual = true
		d.cancelTimers()
		d.stopSession()
		d.setState(StateSuspended)

	case evResume:
		d.manual = false
		d.attemptStart()

	case evDictation:
		d.dictation = ev.flag
		if ev.flag {
			if d.state == StateListening {
				d.cancelTimers()
				d.stopSession()
				d.setState(StateSuspended)
			}
		} else {
			d.attemptStart()
		}

	case evVisibility:
		d.visible = ev.flag
		if ev.flag {
			d.attemptStart()
			return
		}
		switch d.state {
		case StateListening, StateCooldown, StateSuspended:
			d.manual = false
			d.cancelTimers()
			d.stopSession()
			d.setState(StateSuspended)
		}

	case evInteraction:
		d.interacted = true
		d.attemptStart()

	case evSpeechDone:
		switch d.state {
		case StateCooldown:
			if d.cooldownTimer != nil {
				d.cooldownTimer.Stop()
				d.cooldownTimer = nil
				d.epoch++
			}
			d.finishCooldown()
		case StateIdle, StateSuspended, StateError:
			d.attemptStart()
		}

	case evFragment:
		d.applyFragment(ev)

	case evEnded:
		if ev.seq != d.sessionSeq || d.session == nil {
			return
		}
		d.stopSession()
		if d.state != StateListening {
			return
		}
		d.logger.Debug().Msg("engine session ended, scheduling restart")
		d.scheduleRestart()

	case evEngineErr:
		d.applyEngineError(ev)

	case evCooldownFire:
		if ev.epoch != d.epoch {
			return
		}
		d.cooldownTimer = nil
		if d.state != StateCooldown {
			return
		}
		d.finishCooldown()

	case evRestartFire:
		if ev.epoch != d.epoch {
			return
		}
		d.restartTimer = nil
		if d.session != nil {
			return
		}
		if d.state != StateListening && d.state != StateError {
			return
		}
		if d.gateOK() {
			d.startSession()
		} else if d.state == StateListening {
			d.setState(StateIdle)
		}

	case evWatchdogTick:
		d.applyWatchdog()
	}
}

func (d *Detector) applyFragment(ev event) {
	if ev.seq != d.sessionSeq || d.session == nil {
		return
	}
	d.lastFragment = ev.text
	d.learnPermission()

	res := Evaluate(ev.text, d.phrases, d.cfg.MaxDistance)
	if !res.Matched {
		return
	}
	now := time.Now()
	if !d.lastTrigger.IsZero() && now.Sub(d.lastTrigger) < d.cfg.MinInterval {
		d.logger.Debug().
			Str("phrase", res.Phrase).
			Msg("match inside min interval, ignored")
		return
	}

	d.lastTrigger = now
	d.lastPhrase = res.Phrase
	d.triggers++
	d.logger.Info().
		Str("phrase", res.Phrase).
		Int("distance", res.Distance).
		Msg("wake phrase detected")

	// Callback first, then stop, then cooldown: a fragment arriving
	// moments after the match cannot fire a second callback this cycle.
	d.invokeWake(Trigger{Phrase: res.Phrase, Fragment: ev.text, Distance: res.Distance, At: now})
	d.stopSession()
	d.setState(StateCooldown)
	d.startCooldown()
}

func (d *Detector) applyEngineError(ev event) {
	if ev.seq != d.sessionSeq || d.session == nil {
		return
	}
	d.stopSession()
	d.lastErr = ev.text
	if d.cfg.OnError != nil {
		go d.cfg.OnError(ev.errKind, ev.text)
	}

	if ev.errKind.Permission() {
		d.permission = PermissionDenied
		d.cancelTimers()
		d.setState(StateError)
		d.logger.Warn().
			Str("kind", string(ev.errKind)).
			Str("error", ev.text).
			Msg("recognition permission denied")
		return
	}

	d.setState(StateError)
	d.logger.Debug().
		Str("kind", string(ev.errKind)).
		Str("error", ev.text).
		Msg("transient engine error, scheduling restart")
	d.scheduleRestart()
}

func (d *Detector) applyWatchdog() {
	if !d.gateOK() {
		return
	}
	stuck := d.state != StateListening && d.state != StateCooldown
	lostTimer := d.state == StateListening && d.session == nil && d.restartTimer == nil
	if !stuck && !lostTimer {
		return
	}
	d.watchdogKicks++
	d.logger.Warn().
		Str("state", string(d.state)).
		Msg("watchdog forcing restart")
	d.startSession()
}

// gateOK evaluates the constraint gate checked before every start attempt.
// A prior permission grant bypasses the interaction requirement.
func (d *Detector) gateOK() bool {
	interactionOK := !d.cfg.RequireInteraction || d.interacted || d.permission == PermissionGranted
	return d.supported && d.enabled && !d.dictation && !d.manual && interactionOK && d.visible
}

// attemptStart starts a fresh session when the gate allows it. A failed
// gate is a silent no-op, not an error; an already listening or cooling
// detector is left alone.
func (d *Detector) attemptStart() {
	if d.state == StateListening || d.state == StateCooldown {
		return
	}
	if !d.gateOK() {
		return
	}
	d.startSession()
}

// startSession replaces any current session with a brand-new one. Sessions
// are never reused; stale engine state after long silence misbehaves.
func (d *Detector) startSession() {
	d.stopSession()
	if d.restartTimer != nil {
		d.restartTimer.Stop()
		d.restartTimer = nil
		d.epoch++
	}

	d.sessionSeq++
	seq := d.sessionSeq
	cb := Callbacks{
		OnFragment: func(text string, final bool) {
			d.dispatch(event{kind: evFragment, text: text, flag: final, seq: seq})
		},
		OnEnded: func() {
			d.dispatch(event{kind: evEnded, seq: seq})
		},
		OnError: func(kind ErrorKind, msg string) {
			d.dispatch(event{kind: evEngineErr, errKind: kind, text: msg, seq: seq})
		},
	}

	sess, err := d.engine.Start(cb)
	if err != nil {
		d.lastErr = fmt.Sprintf("engine start: %v", err)
		d.logger.Error().Err(err).Msg("engine start failed")
		if d.cfg.OnError != nil {
			go d.cfg.OnError(ErrorTransient, d.lastErr)
		}
		d.setState(StateError)
		d.scheduleRestart()
		return
	}

	d.session = sess
	d.setState(StateListening)
}

// stopSession detaches and stops the current session, if any.
func (d *Detector) stopSession() {
	if d.session == nil {
		return
	}
	s := d.session
	d.session = nil
	s.Stop()
}

func (d *Detector) finishCooldown() {
	if d.gateOK() {
		d.startSession()
		return
	}
	d.setState(StateIdle)
}

func (d *Detector) startCooldown() {
	epoch := d.epoch
	d.cooldownTimer = time.AfterFunc(d.cfg.Cooldown, func() {
		d.dispatch(event{kind: evCooldownFire, epoch: epoch})
	})
}

// scheduleRestart arms the jittered restart timer unless one is pending.
func (d *Detector) scheduleRestart() {
	if d.restartTimer != nil {
		return
	}
	delay := restartDelayMin + time.Duration(rand.Int63n(int64(restartDelayMax-restartDelayMin)))
	epoch := d.epoch
	d.restarts++
	d.restartTimer = time.AfterFunc(delay, func() {
		d.dispatch(event{kind: evRestartFire, epoch: epoch})
	})
	d.logger.Debug().Dur("delay", delay).Msg("restart scheduled")
}

// cancelTimers stops both timers and bumps the epoch so an already-fired
// callback that lost the race is dropped on arrival.
func (d *Detector) cancelTimers() {
	d.epoch++
	if d.cooldownTimer != nil {
		d.cooldownTimer.Stop()
		d.cooldownTimer = nil
	}
	if d.restartTimer != nil {
		d.restartTimer.Stop()
		d.restartTimer = nil
	}
}

func (d *Detector) setState(s State) {
	if d.state == s {
		return
	}
	old := d.state
	d.state = s
	if s == StateListening {
		d.lastErr = ""
	}
	d.logger.Debug().
		Str("from", string(old)).
		Str("to", string(s)).
		Msg("state changed")
	if d.cfg.OnStateChange != nil {
		go d.cfg.OnStateChange(old, s)
	}
}

// learnPermission marks permission granted on the first delivered fragment
// and persists the grant once.
func (d *Detector) learnPermission() {
	if d.permission == PermissionGranted {
		return
	}
	d.permission = PermissionGranted
	if d.cfg.Prefs == nil || d.permPersisted {
		return
	}
	d.permPersisted = true
	if err := d.cfg.Prefs.Set(PrefKeyPermission, prefTrue); err != nil {
		d.logger.Warn().Err(err).Msg("persisting permission grant failed")
	}
}

// invokeWake runs the wake callback under a recover guard so a panicking
// consumer cannot corrupt detector state.
func (d *Detector) invokeWake(t Trigger) {
	if d.cfg.OnWake == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Msg("wake callback panicked")
		}
	}()
	d.cfg.OnWake(t)
}

func (d *Detector) watchdogLoop(done chan struct{}) {
	ticker := time.NewTicker(d.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			d.dispatch(event{kind: evWatchdogTick})
		}
	}
}
