package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chadiek/voice-gate/internal/faults"
	"github.com/chadiek/voice-gate/internal/wake"
)

// Deps are the collaborators a Manager hands to each controller it creates.
// NewRecorder is a factory because every session owns a fresh recorder.
type Deps struct {
	NewRecorder func() Recorder
	Exchanger   Exchanger
	Player      Player
	Voice       VoiceWaiter
	Encode      Encoder
	Surface     *faults.Surface
}

// Snapshot is the externally observable session state.
type Snapshot struct {
	Phase       string         `json:"phase"`
	RemainingMs int64          `json:"remaining_window_ms"`
	Error       *faults.Record `json:"error,omitempty"`
}

// Manager owns the wake-to-session lifecycle: it creates one controller per
// wake event, replaces it on continuation re-entry, and enforces that at most
// one session is ever active.
type Manager struct {
	cfg      Config
	deps     Deps
	detector wake.Detector
	hooks    Hooks

	seq atomic.Uint64

	mu  sync.Mutex
	cur *Controller
}

func NewManager(cfg Config, deps Deps, detector wake.Detector, hooks Hooks) *Manager {
	return &Manager{cfg: cfg, deps: deps, detector: detector, hooks: hooks}
}

// Run consumes wake events until ctx ends. It blocks; run it on its own
// goroutine.
func (m *Manager) Run(ctx context.Context) {
	events := m.detector.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			log.Printf("wake: %q (%.2f) via %s", ev.Keyword, ev.Confidence, m.detector.Name())
			m.runConversation(ctx)
			// Wake events that fired while the session was active are stale
			// edges, not new sessions.
			m.drain(events)
		}
	}
}

// runConversation runs controller instances back to back until one ends the
// session (continuation re-entry spawns a fresh instance).
func (m *Manager) runConversation(ctx context.Context) {
	for {
		c := m.newController()
		m.setCurrent(c)
		out := c.Run(ctx)
		m.setCurrent(nil)
		if out != OutcomeReenter {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) newController() *Controller {
	id := fmt.Sprintf("s%06d", m.seq.Add(1))
	return New(id, m.cfg, m.deps.NewRecorder(), m.deps.Exchanger, m.deps.Player,
		m.deps.Voice, m.deps.Encode, m.deps.Surface, m.hooks)
}

func (m *Manager) setCurrent(c *Controller) {
	m.mu.Lock()
	m.cur = c
	m.mu.Unlock()
}

func (m *Manager) current() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *Manager) drain(events <-chan wake.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Status returns the current phase, continuation countdown, and active error.
func (m *Manager) Status() Snapshot {
	snap := Snapshot{Phase: PhaseIdle.String()}
	if c := m.current(); c != nil {
		snap.Phase = c.Phase().String()
		snap.RemainingMs = c.RemainingWindowMs()
	}
	if m.deps.Surface != nil {
		snap.Error = m.deps.Surface.Active()
	}
	return snap
}

// StopRecording forwards a manual end-of-utterance to the active session.
func (m *Manager) StopRecording() error {
	c := m.current()
	if c == nil {
		return fmt.Errorf("no active session")
	}
	c.StopRecording()
	return nil
}

// Active reports whether a session is in flight.
func (m *Manager) Active() bool { return m.current() != nil }

// WaitIdle blocks until no session is active or the timeout elapses. Used by
// shutdown and tests.
func (m *Manager) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !m.Active() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return !m.Active()
}
