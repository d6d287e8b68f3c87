package faults

import (
	"errors"
	"testing"
	"time"
)

func TestCode_Category(t *testing.T) {
	cases := []struct {
		code Code
		want Category
	}{
		{CodeDeviceUnavailable, CategoryRecording},
		{CodeEmptyUtterance, CategoryRecording},
		{CodeTransportUnavailable, CategoryProcessing},
		{CodeRemoteRejected, CategoryProcessing},
		{CodeEmptyResponse, CategoryProcessing},
		{CodePlaybackFailed, CategoryPlayback},
	}
	for _, tc := range cases {
		if got := tc.code.Category(); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.code, got, tc.want)
		}
	}
}

func TestClassify_CarriesHintAndMessage(t *testing.T) {
	rec := Classify(CodeRemoteRejected, errors.New("status=503"))
	if rec.Category != CategoryProcessing {
		t.Fatalf("unexpected category %s", rec.Category)
	}
	if rec.Message != "status=503" {
		t.Fatalf("unexpected message %q", rec.Message)
	}
	if rec.Title == "" || rec.Hint == "" {
		t.Fatalf("expected title and hint, got %q / %q", rec.Title, rec.Hint)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt set")
	}
}

func TestSurface_NewerRecordReplacesOlder(t *testing.T) {
	s := NewSurface(time.Minute, nil)
	s.Report(CodeDeviceUnavailable, errors.New("no mic"))
	s.Report(CodePlaybackFailed, errors.New("decode"))
	active := s.Active()
	if active == nil {
		t.Fatalf("expected active record")
	}
	if active.Code != CodePlaybackFailed {
		t.Fatalf("expected newest record active, got %s", active.Code)
	}
}

func TestSurface_AutoExpires(t *testing.T) {
	var changes []bool
	s := NewSurface(30*time.Millisecond, func(r *Record) { changes = append(changes, r != nil) })
	s.Report(CodeEmptyUtterance, errors.New("zero bytes"))
	if s.Active() == nil {
		t.Fatalf("expected active record before expiry")
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && s.Active() != nil {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Active() != nil {
		t.Fatalf("expected record to expire")
	}
}

func TestSurface_ReportReArmsExpiry(t *testing.T) {
	s := NewSurface(60*time.Millisecond, nil)
	s.Report(CodeEmptyUtterance, nil)
	time.Sleep(40 * time.Millisecond)
	s.Report(CodeEmptyResponse, nil)
	time.Sleep(40 * time.Millisecond)
	// first TTL would have elapsed; the re-triggered record must still be up
	if s.Active() == nil {
		t.Fatalf("expected re-triggered record still active")
	}
}

// An expiry callback from a superseded timer must leave the current record
// alone, even if it fires after the replacement was reported.
func TestSurface_StaleExpiryIgnored(t *testing.T) {
	s := NewSurface(time.Minute, nil)
	s.Report(CodeEmptyUtterance, nil)
	s.Report(CodePlaybackFailed, nil)
	s.expire(1) // the first report's timer firing late
	active := s.Active()
	if active == nil || active.Code != CodePlaybackFailed {
		t.Fatalf("stale expiry cleared the current record: %+v", active)
	}
	s.expire(2) // the current generation expires normally
	if s.Active() != nil {
		t.Fatalf("expected current generation to expire")
	}
}

func TestSurface_ClearIdempotent(t *testing.T) {
	s := NewSurface(time.Minute, nil)
	s.Clear()
	s.Report(CodeTransportUnavailable, nil)
	s.Clear()
	s.Clear()
	if s.Active() != nil {
		t.Fatalf("expected no active record after clear")
	}
}
