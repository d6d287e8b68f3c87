// Package session owns the state machine that turns a wake event into a
// recorded utterance, a remote exchange, a played response, and either a
// continuation window or session termination.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chadiek/voice-gate/internal/capture"
	"github.com/chadiek/voice-gate/internal/exchange"
	"github.com/chadiek/voice-gate/internal/faults"
	"github.com/chadiek/voice-gate/internal/playback"
)

// Phase is the session controller's externally observable state.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseProcessing
	PhasePlaying
	PhaseContinuation
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	case PhasePlaying:
		return "playing"
	case PhaseContinuation:
		return "continuation"
	case PhaseEnded:
		return "ended"
	}
	return "unknown"
}

// Outcome is how one controller instance finished.
type Outcome int

const (
	// OutcomeEnded means the session is fully closed.
	OutcomeEnded Outcome = iota
	// OutcomeReenter means a new utterance started during the continuation
	// window; the manager creates a fresh controller entering Recording.
	OutcomeReenter
)

// Recorder is the utterance-recording contract the controller drives.
type Recorder interface {
	Initialize() error
	Start() error
	Stopped() <-chan struct{}
	Stop() (*capture.Utterance, error)
	Dispose()
}

// Exchanger sends one utterance and returns the response payload.
type Exchanger interface {
	Send(ctx context.Context, payload []byte) ([]byte, error)
}

// Player plays one response payload to completion.
type Player interface {
	Play(ctx context.Context, payload []byte) error
}

// VoiceWaiter blocks until a new utterance starts, used during the
// continuation window. May be nil, in which case the window only counts down.
type VoiceWaiter interface {
	WaitForVoice(ctx context.Context) error
}

// Encoder wraps the assembled utterance into the wire payload.
type Encoder func(u *capture.Utterance) []byte

// Config carries the controller's timing knobs.
type Config struct {
	ContinuationWindow time.Duration
	Continuous         bool
	ExchangeTimeout    time.Duration
}

// Hooks are optional observer callbacks. All are invoked from the
// controller's goroutine.
type Hooks struct {
	// OnPhase fires on every phase transition.
	OnPhase func(Phase)
	// OnProgress reports the continuation countdown as a fraction, 1 down to 0.
	OnProgress func(float64)
	// OnClosed fires exactly once when the session fully ends. It does not
	// fire on continuation re-entry, because the conversation continues in a
	// fresh controller.
	OnClosed func()
}

// Controller runs one session from wake to termination. One instance, one
// pass; create a new one for the next wake or re-entry.
type Controller struct {
	id      string
	cfg     Config
	rec     Recorder
	exch    Exchanger
	player  Player
	voice   VoiceWaiter
	encode  Encoder
	surface *faults.Surface
	hooks   Hooks

	phase       atomic.Int32
	remainingMs atomic.Int64

	stopOnce sync.Once
	stopReq  chan struct{}
}

// New builds a Controller. encode may be nil, in which case the raw PCM is
// sent unwrapped.
func New(id string, cfg Config, rec Recorder, exch Exchanger, player Player, voice VoiceWaiter, encode Encoder, surface *faults.Surface, hooks Hooks) *Controller {
	if encode == nil {
		encode = func(u *capture.Utterance) []byte { return u.PCM }
	}
	return &Controller{
		id:      id,
		cfg:     cfg,
		rec:     rec,
		exch:    exch,
		player:  player,
		voice:   voice,
		encode:  encode,
		surface: surface,
		hooks:   hooks,
		stopReq: make(chan struct{}),
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return Phase(c.phase.Load()) }

// RemainingWindowMs reports the continuation countdown; zero outside the
// continuation phase.
func (c *Controller) RemainingWindowMs() int64 { return c.remainingMs.Load() }

// StopRecording requests end-of-utterance. Safe to call from any goroutine
// and more than once; a no-op outside the recording phase.
func (c *Controller) StopRecording() {
	c.stopOnce.Do(func() { close(c.stopReq) })
}

func (c *Controller) setPhase(p Phase) {
	c.phase.Store(int32(p))
	if c.hooks.OnPhase != nil {
		c.hooks.OnPhase(p)
	}
}

func (c *Controller) fail(code faults.Code, err error) {
	log.Printf("[%s] %s fault: %v", c.id, code.Category(), err)
	if c.surface != nil {
		c.surface.Report(code, err)
	}
}

// Run drives the pipeline to completion. Phases execute strictly in order;
// every exit path releases the recorder's device and timers.
func (c *Controller) Run(ctx context.Context) Outcome {
	defer c.rec.Dispose()

	// Recording
	c.setPhase(PhaseRecording)
	if err := c.rec.Initialize(); err != nil {
		c.fail(faults.CodeDeviceUnavailable, err)
		return c.end()
	}
	if err := c.rec.Start(); err != nil {
		c.fail(faults.CodeDeviceUnavailable, err)
		return c.end()
	}
	select {
	case <-ctx.Done():
		return c.abandon()
	case <-c.stopReq:
	case <-c.rec.Stopped():
		// ceiling force-stop; indistinguishable downstream from manual stop
	}
	utt, err := c.rec.Stop()
	if err != nil {
		code := faults.CodeDeviceUnavailable
		if errors.Is(err, capture.ErrEmptyUtterance) {
			code = faults.CodeEmptyUtterance
		}
		c.fail(code, err)
		return c.end()
	}
	// The microphone must be fully released before any later phase begins,
	// so a continuation window never overlaps a held capture stream.
	c.rec.Dispose()
	log.Printf("[%s] utterance: %d chunks, %d bytes", c.id, utt.Chunks, utt.TotalBytes())

	// Processing
	c.setPhase(PhaseProcessing)
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.ExchangeTimeout)
	resp, err := c.exch.Send(sendCtx, c.encode(utt))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return c.abandon()
		}
		c.fail(classifyExchange(err), err)
		return c.end()
	}
	log.Printf("[%s] exchange ok: %d response bytes", c.id, len(resp))

	// Playing
	c.setPhase(PhasePlaying)
	if err := c.player.Play(ctx, resp); err != nil {
		if ctx.Err() != nil {
			return c.abandon()
		}
		c.fail(faults.CodePlaybackFailed, err)
		return c.end()
	}

	if !c.cfg.Continuous {
		return c.end()
	}
	return c.continuation(ctx)
}

// continuation opens the bounded follow-up window: a countdown with a
// monotonically decreasing progress value, cancelled by a new utterance.
func (c *Controller) continuation(ctx context.Context) Outcome {
	c.setPhase(PhaseContinuation)
	window := c.cfg.ContinuationWindow
	c.remainingMs.Store(window.Milliseconds())
	c.progress(1.0)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.remainingMs.Store(0)

	voiceCh := make(chan error, 1)
	if c.voice != nil {
		go func() { voiceCh <- c.voice.WaitForVoice(wctx) }()
	}

	deadline := time.Now().Add(window)
	expiry := time.NewTimer(window)
	defer expiry.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.abandon()
		case <-expiry.C:
			c.remainingMs.Store(0)
			c.progress(0)
			log.Printf("[%s] continuation window expired", c.id)
			return c.end()
		case <-ticker.C:
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			c.remainingMs.Store(remaining.Milliseconds())
			c.progress(float64(remaining) / float64(window))
		case err := <-voiceCh:
			if err == nil {
				log.Printf("[%s] voice detected, re-entering recording", c.id)
				return OutcomeReenter
			}
			if wctx.Err() == nil {
				// Listening failed (device in use elsewhere, permissions).
				// The window still counts down; only re-entry is lost.
				log.Printf("[%s] continuation listener: %v", c.id, err)
			}
		}
	}
}

func (c *Controller) progress(v float64) {
	if c.hooks.OnProgress != nil {
		c.hooks.OnProgress(v)
	}
}

// end closes the session: terminal phase, completion hook exactly once.
func (c *Controller) end() Outcome {
	c.setPhase(PhaseEnded)
	if c.hooks.OnClosed != nil {
		c.hooks.OnClosed()
	}
	return OutcomeEnded
}

// abandon is an externally-driven teardown mid-phase. Device handles and
// timers are released by the deferred Dispose in Run; the session still
// reports a clean terminal phase rather than a stuck one.
func (c *Controller) abandon() Outcome {
	log.Printf("[%s] session abandoned in phase %s", c.id, c.Phase())
	return c.end()
}

func classifyExchange(err error) faults.Code {
	switch {
	case errors.Is(err, exchange.ErrTransportUnavailable):
		return faults.CodeTransportUnavailable
	case errors.Is(err, exchange.ErrEmptyResponse):
		return faults.CodeEmptyResponse
	default:
		return faults.CodeRemoteRejected
	}
}

// ensure the concrete implementations satisfy the contracts
var (
	_ Recorder    = (*capture.Recorder)(nil)
	_ Exchanger   = (*exchange.HTTPClient)(nil)
	_ Exchanger   = (*exchange.WSClient)(nil)
	_ Player      = (*playback.Controller)(nil)
	_ VoiceWaiter = (*capture.VoiceListener)(nil)
)
