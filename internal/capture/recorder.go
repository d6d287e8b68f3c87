package capture

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Utterance is one assembled recording: the concatenated PCM of every chunk
// captured between start and stop.
type Utterance struct {
	PCM        []byte
	Chunks     int
	SampleRate int
}

// TotalBytes returns the assembled payload size.
func (u *Utterance) TotalBytes() int { return len(u.PCM) }

// Recorder buffers microphone chunks into a single utterance. A hard ceiling
// timer force-stops capture even without caller action, so the pipeline
// always progresses. Downstream cannot tell a ceiling stop from a manual one.
type Recorder struct {
	opener  Opener
	profile Profile
	ceiling time.Duration

	mu        sync.Mutex
	device    Device
	recording bool
	chunks    [][]byte
	total     int
	ceilTimer *time.Timer
	stopped   chan struct{}
}

// NewRecorder builds a Recorder. ceiling bounds a single recording's duration.
func NewRecorder(opener Opener, profile Profile, ceiling time.Duration) *Recorder {
	return &Recorder{opener: opener, profile: profile, ceiling: ceiling}
}

// Initialize acquires the microphone stream. Calling it while a stream is
// already held releases the prior stream first, so two device handles are
// never active at once.
func (r *Recorder) Initialize() error {
	r.mu.Lock()
	prior := r.device
	r.device = nil
	r.recording = false
	if r.ceilTimer != nil {
		r.ceilTimer.Stop()
		r.ceilTimer = nil
	}
	r.mu.Unlock()
	if prior != nil {
		prior.Close()
	}

	dev, err := r.opener.Open(r.profile)
	if err != nil {
		return fmt.Errorf("recorder init: %w", err)
	}
	r.mu.Lock()
	r.device = dev
	r.mu.Unlock()
	return nil
}

// Start clears any prior buffered chunks, begins capture, and arms the
// ceiling timer.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.device == nil {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	if r.recording {
		r.mu.Unlock()
		return nil
	}
	r.chunks = nil
	r.total = 0
	r.recording = true
	r.stopped = make(chan struct{})
	r.ceilTimer = time.AfterFunc(r.ceiling, r.forceStop)
	dev := r.device
	r.mu.Unlock()

	if err := dev.Start(r.onChunk); err != nil {
		r.mu.Lock()
		r.recording = false
		if r.ceilTimer != nil {
			r.ceilTimer.Stop()
			r.ceilTimer = nil
		}
		r.mu.Unlock()
		return fmt.Errorf("recorder start: %w", err)
	}
	return nil
}

func (r *Recorder) onChunk(pcm []byte) {
	r.mu.Lock()
	if r.recording {
		r.chunks = append(r.chunks, pcm)
		r.total += len(pcm)
	}
	r.mu.Unlock()
}

// Stopped is closed when capture halts, whether by Stop or by the ceiling.
// Valid after Start.
func (r *Recorder) Stopped() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Recorder) forceStop() {
	log.Printf("recorder: ceiling %s reached, force-stopping capture", r.ceiling)
	r.halt()
}

// halt stops capture and disarms the timer. Idempotent.
func (r *Recorder) halt() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	if r.ceilTimer != nil {
		r.ceilTimer.Stop()
		r.ceilTimer = nil
	}
	dev := r.device
	stopped := r.stopped
	r.mu.Unlock()

	if dev != nil {
		_ = dev.Stop()
	}
	if stopped != nil {
		close(stopped)
	}
}

// Stop halts capture if still running and assembles the buffered chunks into
// one Utterance. A zero-byte recording yields ErrEmptyUtterance; the caller
// must surface it instead of sending.
func (r *Recorder) Stop() (*Utterance, error) {
	r.halt()

	r.mu.Lock()
	chunks := r.chunks
	total := r.total
	r.chunks = nil
	r.total = 0
	r.mu.Unlock()

	if total == 0 {
		return nil, ErrEmptyUtterance
	}
	pcm := make([]byte, 0, total)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}
	return &Utterance{PCM: pcm, Chunks: len(chunks), SampleRate: r.profile.SampleRate}, nil
}

// Dispose releases the device stream and all timers. Safe to call multiple
// times and from any state.
func (r *Recorder) Dispose() {
	r.mu.Lock()
	if r.recording {
		r.recording = false
		if r.stopped != nil {
			close(r.stopped)
		}
	}
	if r.ceilTimer != nil {
		r.ceilTimer.Stop()
		r.ceilTimer = nil
	}
	dev := r.device
	r.device = nil
	r.chunks = nil
	r.total = 0
	r.mu.Unlock()

	if dev != nil {
		dev.Close()
	}
}
