package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	// ErrDeviceUnavailable means no input device exists or it could not be opened.
	ErrDeviceUnavailable = errors.New("capture: input device unavailable")
	// ErrEmptyUtterance means a recording stopped with zero captured bytes.
	ErrEmptyUtterance = errors.New("capture: empty utterance")
	// ErrNotInitialized means Start was called before Initialize succeeded.
	ErrNotInitialized = errors.New("capture: recorder not initialized")
)

// Profile is the fixed microphone capture profile. Echo cancellation and
// noise suppression are requested from the audio backend where it supports
// them; they are part of the contract, not runtime-tunable.
type Profile struct {
	SampleRate       int
	Channels         int
	BitDepth         int
	EchoCancellation bool
	NoiseSuppression bool
	DeviceID         string
}

// DefaultProfile returns the profile every utterance is captured with.
func DefaultProfile() Profile {
	return Profile{
		SampleRate:       16000,
		Channels:         1,
		BitDepth:         16,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// BytesPerSecond returns the PCM byte rate of the profile.
func (p Profile) BytesPerSecond() int {
	return p.SampleRate * p.Channels * p.BitDepth / 8
}

// Device is one open microphone stream. Implementations deliver PCM16LE
// chunks to the callback passed to Start from their own goroutine.
type Device interface {
	Start(onChunk func(pcm []byte)) error
	Stop() error
	Close()
}

// Opener acquires a Device for a Profile. It owns the platform audio context.
type Opener interface {
	Open(profile Profile) (Device, error)
}

// MalgoOpener opens microphone devices through miniaudio. The underlying
// context is created lazily on first Open and reused afterwards.
type MalgoOpener struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

func NewMalgoOpener() *MalgoOpener { return &MalgoOpener{} }

func (o *MalgoOpener) Open(profile Profile) (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		cfg := malgo.ContextConfig{}
		cfg.ThreadPriority = malgo.ThreadPriorityRealtime
		ctx, err := malgo.InitContext(nil, cfg, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: init context: %v", ErrDeviceUnavailable, err)
		}
		o.ctx = ctx
	}
	return &malgoDevice{ctx: o.ctx.Context, profile: profile}, nil
}

// Shutdown releases the audio context. Open after Shutdown re-creates it.
func (o *MalgoOpener) Shutdown() {
	o.mu.Lock()
	if o.ctx != nil {
		_ = o.ctx.Uninit()
		o.ctx = nil
	}
	o.mu.Unlock()
}

// captureEndpoint is one enumerated input device.
type captureEndpoint struct {
	name string
	id   malgo.DeviceID
}

// selectEndpoint resolves a configured device name to its backend id. Names
// match case-insensitively; an unknown name is ErrDeviceUnavailable rather
// than a silent fallback to the default device.
func selectEndpoint(endpoints []captureEndpoint, want string) (malgo.DeviceID, error) {
	for _, ep := range endpoints {
		if strings.EqualFold(ep.name, want) {
			return ep.id, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("%w: no input device named %q", ErrDeviceUnavailable, want)
}

type malgoDevice struct {
	ctx     malgo.Context
	profile Profile

	mu     sync.Mutex
	device *malgo.Device
}

func (d *malgoDevice) Start(onChunk func(pcm []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		return nil
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(d.profile.Channels)
	cfg.SampleRate = uint32(d.profile.SampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	if d.profile.DeviceID != "" {
		infos, err := d.ctx.Devices(malgo.Capture)
		if err != nil {
			return fmt.Errorf("%w: enumerate devices: %v", ErrDeviceUnavailable, err)
		}
		endpoints := make([]captureEndpoint, len(infos))
		for i := range infos {
			endpoints[i] = captureEndpoint{name: infos[i].Name(), id: infos[i].ID}
		}
		id, err := selectEndpoint(endpoints, d.profile.DeviceID)
		if err != nil {
			return err
		}
		cfg.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			if len(pInputSamples) == 0 {
				return
			}
			chunk := make([]byte, len(pInputSamples))
			copy(chunk, pInputSamples)
			onChunk(chunk)
		},
	}

	device, err := malgo.InitDevice(d.ctx, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("%w: init device: %v", ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: start device: %v", ErrDeviceUnavailable, err)
	}
	d.device = device
	return nil
}

func (d *malgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil
	}
	return d.device.Stop()
}

func (d *malgoDevice) Close() {
	d.mu.Lock()
	if d.device != nil {
		_ = d.device.Stop()
		d.device.Uninit()
		d.device = nil
	}
	d.mu.Unlock()
}
