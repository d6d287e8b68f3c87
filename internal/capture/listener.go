package capture

import (
	"context"
	"fmt"

	"github.com/chadiek/voice-gate/internal/vad"
)

// VoiceListener opens a short-lived capture stream and waits for speech. The
// session controller uses it during the continuation window to detect the
// start of a new utterance; the stream is fully released before returning so
// a follow-up recording never overlaps it.
type VoiceListener struct {
	opener  Opener
	profile Profile
}

func NewVoiceListener(opener Opener, profile Profile) *VoiceListener {
	return &VoiceListener{opener: opener, profile: profile}
}

// WaitForVoice blocks until voice energy is detected or ctx ends. It returns
// nil on speech, ctx.Err() on cancellation, and a device error otherwise.
func (l *VoiceListener) WaitForVoice(ctx context.Context) error {
	dev, err := l.opener.Open(l.profile)
	if err != nil {
		return fmt.Errorf("voice listener: %w", err)
	}
	defer dev.Close()

	det := vad.NewRMS()
	heard := make(chan struct{}, 1)
	if err := dev.Start(func(pcm []byte) {
		if det.IsSpeech(pcm) {
			select {
			case heard <- struct{}{}:
			default:
			}
		}
	}); err != nil {
		return fmt.Errorf("voice listener: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-heard:
		return nil
	}
}
