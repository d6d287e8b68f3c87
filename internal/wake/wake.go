// Package wake defines the contract for wake-word detection. The detection
// model itself is an external capability; this package only carries its
// events into the session manager.
package wake

import "time"

// Event is one wake-word detection. Only the rising edge matters: events
// arriving while a session is already active are dropped by the consumer.
type Event struct {
	Keyword    string
	Confidence float32
	Timestamp  time.Time
}

// Detector emits wake events on a channel.
type Detector interface {
	Name() string
	Events() <-chan Event
}

// Trigger is a channel-backed Detector fired programmatically, used by the
// HTTP control surface and by deployments without a hotword engine.
type Trigger struct {
	ch chan Event
}

func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan Event, 4)}
}

func (t *Trigger) Name() string { return "manual" }

func (t *Trigger) Events() <-chan Event { return t.ch }

// Fire emits one wake event. If the buffer is full the event is dropped;
// a stale trigger is worthless once a session is already running.
func (t *Trigger) Fire(keyword string) {
	ev := Event{Keyword: keyword, Confidence: 1.0, Timestamp: time.Now()}
	select {
	case t.ch <- ev:
	default:
	}
}
