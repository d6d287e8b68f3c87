// Package playback turns a response audio payload into sound on the output
// device and signals completion.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chadiek/voice-gate/internal/audio"
)

var (
	// ErrPlaybackFailed means the audio sink rejected the payload.
	ErrPlaybackFailed = errors.New("playback: failed")
	// ErrAlreadyPlaying flags a caller-ordering bug: playback must be
	// serialized by the session controller.
	ErrAlreadyPlaying = errors.New("playback: another playback is active")
)

// Sink plays raw PCM16LE mono at the given rate and returns when the audio
// has been fully delivered.
type Sink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Controller decodes response payloads and drives the sink. One playback at
// a time; it owns the output device through the sink and never exposes it.
type Controller struct {
	sink        Sink
	defaultRate int

	mu     sync.Mutex
	active bool
}

// NewController builds a Controller. defaultRate applies to bare PCM payloads
// that carry no envelope.
func NewController(sink Sink, defaultRate int) *Controller {
	return &Controller{sink: sink, defaultRate: defaultRate}
}

// Play decodes the payload and plays it to completion. It returns
// ErrPlaybackFailed (wrapped) on a malformed payload or a sink failure.
func (c *Controller) Play(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrAlreadyPlaying
	}
	c.active = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}()

	pcm, rate, err := audio.DecodePayload(payload, c.defaultRate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	if err := c.sink.Play(ctx, pcm, rate); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	return nil
}

// Duration returns the play time of a PCM16LE mono buffer at rate.
func Duration(pcm []byte, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
