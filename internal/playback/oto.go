package playback

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoSink plays PCM through the system output device. The oto context is
// process-wide and created on first use with the first payload's sample rate;
// later payloads must match it.
type OtoSink struct {
	mu   sync.Mutex
	ctx  *oto.Context
	rate int
}

func NewOtoSink() *OtoSink { return &OtoSink{} }

func (s *OtoSink) context(sampleRate int) (*oto.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		if sampleRate != s.rate {
			return nil, fmt.Errorf("sample rate %d does not match output device rate %d", sampleRate, s.rate)
		}
		return s.ctx, nil
	}
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init output device: %w", err)
	}
	<-ready
	s.ctx = ctx
	s.rate = sampleRate
	return ctx, nil
}

// Play blocks until the payload has been played out or ctx is cancelled.
func (s *OtoSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return fmt.Errorf("empty pcm buffer")
	}
	octx, err := s.context(sampleRate)
	if err != nil {
		return err
	}

	player := octx.NewPlayer(bytes.NewReader(pcm))
	defer func() { _ = player.Close() }()
	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(Duration(pcm, sampleRate) + 2*time.Second)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				if err := player.Err(); err != nil {
					return fmt.Errorf("output device: %w", err)
				}
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("playback did not drain within %s", Duration(pcm, sampleRate)+2*time.Second)
			}
		}
	}
}
