package faults

import (
	"sync"
	"time"
)

// Category groups fault codes by the pipeline stage they belong to.
type Category string

const (
	CategoryRecording  Category = "recording"
	CategoryProcessing Category = "processing"
	CategoryPlayback   Category = "playback"
)

// Code identifies a specific fault within a category.
type Code string

const (
	CodeDeviceUnavailable    Code = "device_unavailable"
	CodeEmptyUtterance       Code = "empty_utterance"
	CodeTransportUnavailable Code = "transport_unavailable"
	CodeRemoteRejected       Code = "remote_rejected"
	CodeEmptyResponse        Code = "empty_response"
	CodePlaybackFailed       Code = "playback_failed"
)

// Category returns the pipeline stage a code belongs to.
func (c Code) Category() Category {
	switch c {
	case CodeDeviceUnavailable, CodeEmptyUtterance:
		return CategoryRecording
	case CodeTransportUnavailable, CodeRemoteRejected, CodeEmptyResponse:
		return CategoryProcessing
	default:
		return CategoryPlayback
	}
}

// hint carries the user-facing title and remediation text for a category.
type hint struct {
	Title       string
	Remediation string
}

var categoryHints = map[Category]hint{
	CategoryRecording: {
		Title:       "Recording problem",
		Remediation: "Check that a microphone is connected and that the app has permission to use it, then try again.",
	},
	CategoryProcessing: {
		Title:       "Processing problem",
		Remediation: "Check your network connection and access key, then try again.",
	},
	CategoryPlayback: {
		Title:       "Playback problem",
		Remediation: "Check your audio output device and volume, then try again.",
	},
}

// Record is one classified fault. At most one Record is active at a time.
type Record struct {
	Code      Code      `json:"code"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Hint      string    `json:"hint"`
	CreatedAt time.Time `json:"created_at"`
}

// Classify builds a Record for a code and the underlying error.
func Classify(code Code, err error) Record {
	cat := code.Category()
	h := categoryHints[cat]
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Record{
		Code:      code,
		Category:  cat,
		Title:     h.Title,
		Message:   msg,
		Hint:      h.Remediation,
		CreatedAt: time.Now(),
	}
}

// Surface holds the single active error record and expires it after a fixed
// display duration. A newer fault replaces the current one rather than queuing.
type Surface struct {
	ttl      time.Duration
	onChange func(*Record)

	mu     sync.Mutex
	active *Record
	timer  *time.Timer
	gen    uint64
}

// NewSurface builds a Surface. onChange is invoked with the new active record
// (nil on clear) and may be nil.
func NewSurface(ttl time.Duration, onChange func(*Record)) *Surface {
	return &Surface{ttl: ttl, onChange: onChange}
}

// Report classifies the fault, makes it the active record, and re-arms the
// expiry timer.
func (s *Surface) Report(code Code, err error) Record {
	rec := Classify(code, err)
	s.mu.Lock()
	s.active = &rec
	// Each report starts a new generation; a stale timer callback that
	// already fired but has not run yet must not clear this record.
	s.gen++
	g := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.ttl, func() { s.expire(g) })
	s.mu.Unlock()
	s.notify(&rec)
	return rec
}

// Active returns a copy of the current record, or nil when no error is shown.
func (s *Surface) Active() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	cp := *s.active
	return &cp
}

// Clear dismisses the active record. Safe to call when nothing is active.
func (s *Surface) Clear() {
	s.mu.Lock()
	had := s.active != nil
	s.active = nil
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	if had {
		s.notify(nil)
	}
}

func (s *Surface) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	had := s.active != nil
	s.active = nil
	s.mu.Unlock()
	if had {
		s.notify(nil)
	}
}

func (s *Surface) notify(rec *Record) {
	if s.onChange != nil {
		s.onChange(rec)
	}
}
