package playback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chadiek/voice-gate/internal/audio"
)

type fakeSink struct {
	err   error
	delay time.Duration

	plays    int32
	lastRate int32
	lastLen  int32
}

func (s *fakeSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	atomic.AddInt32(&s.plays, 1)
	atomic.StoreInt32(&s.lastRate, int32(sampleRate))
	atomic.StoreInt32(&s.lastLen, int32(len(pcm)))
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.err
}

func TestController_PlaysWAVEnvelope(t *testing.T) {
	sink := &fakeSink{}
	c := NewController(sink, 24000)

	pcm := make([]byte, 9600)
	payload := audio.EncodeWAV(pcm, 48000)
	if err := c.Play(context.Background(), payload); err != nil {
		t.Fatalf("play: %v", err)
	}
	if atomic.LoadInt32(&sink.plays) != 1 {
		t.Fatalf("expected one sink play")
	}
	if atomic.LoadInt32(&sink.lastRate) != 48000 {
		t.Fatalf("expected envelope rate forwarded, got %d", sink.lastRate)
	}
	if atomic.LoadInt32(&sink.lastLen) != 9600 {
		t.Fatalf("expected unwrapped pcm, got %d bytes", sink.lastLen)
	}
}

func TestController_RawPayloadUsesDefaultRate(t *testing.T) {
	sink := &fakeSink{}
	c := NewController(sink, 24000)
	if err := c.Play(context.Background(), make([]byte, 4800)); err != nil {
		t.Fatalf("play: %v", err)
	}
	if atomic.LoadInt32(&sink.lastRate) != 24000 {
		t.Fatalf("expected default rate, got %d", sink.lastRate)
	}
}

func TestController_MalformedPayload(t *testing.T) {
	sink := &fakeSink{}
	c := NewController(sink, 24000)
	err := c.Play(context.Background(), []byte{1, 2, 3}) // odd raw length
	if !errors.Is(err, ErrPlaybackFailed) {
		t.Fatalf("expected ErrPlaybackFailed, got %v", err)
	}
	if atomic.LoadInt32(&sink.plays) != 0 {
		t.Fatalf("sink must not be touched for malformed payloads")
	}
}

func TestController_SinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("decode error")}
	c := NewController(sink, 24000)
	if err := c.Play(context.Background(), make([]byte, 10)); !errors.Is(err, ErrPlaybackFailed) {
		t.Fatalf("expected ErrPlaybackFailed, got %v", err)
	}
}

func TestController_SerializesPlayback(t *testing.T) {
	sink := &fakeSink{delay: 100 * time.Millisecond}
	c := NewController(sink, 24000)

	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), make([]byte, 10)) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt32(&sink.plays) == 0 {
		time.Sleep(2 * time.Millisecond)
	}

	// second play while the first is active is a caller-ordering bug
	if err := c.Play(context.Background(), make([]byte, 10)); !errors.Is(err, ErrAlreadyPlaying) {
		t.Fatalf("expected ErrAlreadyPlaying, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first play failed: %v", err)
	}
}

func TestController_CancelledContext(t *testing.T) {
	sink := &fakeSink{delay: time.Second}
	c := NewController(sink, 24000)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := c.Play(ctx, make([]byte, 10)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestDuration(t *testing.T) {
	if d := Duration(make([]byte, 48000), 24000); d != time.Second {
		t.Fatalf("expected 1s, got %s", d)
	}
	if d := Duration(nil, 0); d != 0 {
		t.Fatalf("expected 0 for zero rate, got %s", d)
	}
}
