// Package vad provides a pure-Go voice activity detector based on RMS energy.
package vad

import (
	"encoding/binary"
	"math"
	"sync"
)

// RMS detects speech in PCM16LE mono chunks using energy thresholds with
// hysteresis to avoid flickering between speech and silence.
type RMS struct {
	speechThreshold  float64 // RMS level to start speech
	silenceThreshold float64 // RMS level to end speech
	speechFrames     int     // consecutive speech chunks needed to trigger
	silenceFrames    int     // consecutive silence chunks needed to end

	mu           sync.Mutex
	inSpeech     bool
	speechCount  int
	silenceCount int
}

// NewRMS returns a detector tuned for 16kHz mono speech in raw int16 units.
func NewRMS() *RMS {
	return &RMS{
		speechThreshold:  300.0,
		silenceThreshold: 150.0,
		speechFrames:     3,
		silenceFrames:    30,
	}
}

// IsSpeech feeds one chunk and reports whether the detector currently
// considers the input to be speech.
func (v *RMS) IsSpeech(pcm []byte) bool {
	level := Level(pcm)
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.inSpeech {
		if level < v.silenceThreshold {
			v.silenceCount++
			v.speechCount = 0
			if v.silenceCount >= v.silenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
			}
		} else {
			v.silenceCount = 0
		}
	} else {
		if level >= v.speechThreshold {
			v.speechCount++
			v.silenceCount = 0
			if v.speechCount >= v.speechFrames {
				v.inSpeech = true
				v.speechCount = 0
			}
		} else {
			v.speechCount = 0
		}
	}
	return v.inSpeech
}

// Reset clears internal state.
func (v *RMS) Reset() {
	v.mu.Lock()
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
	v.mu.Unlock()
}

// Level computes the RMS energy of a PCM16LE chunk in raw int16 units.
func Level(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		f := float64(s)
		sumSquares += f * f
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSquares / float64(count))
}
