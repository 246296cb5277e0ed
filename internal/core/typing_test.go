package core

import (
	"testing"
	"time"
)

func newTypingTracker(rec *recorder) *TypingTracker {
	return NewTypingTracker(rec, 5*time.Second, 10*time.Second, testLogger())
}

func TestTypingBroadcastsToChannelRoom(t *testing.T) {
	rec := &recorder{}
	tracker := newTypingTracker(rec)
	origin := newTestConn("c1", "u1", 4)

	tracker.SetTyping("ch1", "u1", origin)

	events := rec.named(EventUserTyping)
	if len(events) != 1 {
		t.Fatalf("got %d typing events, want 1", len(events))
	}
	if events[0].Room != ChannelRoom("ch1") {
		t.Errorf("room = %s, want %s", events[0].Room, ChannelRoom("ch1"))
	}
	if events[0].Exclude != origin {
		t.Error("typing event not excluding its origin connection")
	}
	payload := events[0].Event.Payload.(TypingPayload)
	if !payload.IsTyping || payload.UserID != "u1" || payload.ChannelID != "ch1" {
		t.Errorf("payload = %+v, want u1 typing in ch1", payload)
	}
}

func TestTypingClearOnce(t *testing.T) {
	rec := &recorder{}
	tracker := newTypingTracker(rec)

	tracker.SetTyping("ch1", "u1", nil)
	tracker.ClearTyping("ch1", "u1", nil)
	// Repeat clears and clears for absent entries emit nothing.
	tracker.ClearTyping("ch1", "u1", nil)
	tracker.ClearTyping("ch2", "u1", nil)

	events := rec.named(EventUserTyping)
	if len(events) != 2 {
		t.Fatalf("got %d typing events, want 2 (start + single stop)", len(events))
	}
	stop := events[1].Event.Payload.(TypingPayload)
	if stop.IsTyping {
		t.Error("second event should be a stopped-typing notification")
	}
}

func TestTypingSweepExpires(t *testing.T) {
	rec := &recorder{}
	tracker := newTypingTracker(rec)

	tracker.SetTyping("ch1", "u1", nil)
	tracker.SetTyping("ch1", "u2", nil)

	// Before the TTL nothing expires.
	tracker.sweepExpired(time.Now().Add(time.Second))
	if got := rec.named(EventUserTyping); len(got) != 2 {
		t.Fatalf("got %d events before expiry, want 2", len(got))
	}

	tracker.sweepExpired(time.Now().Add(6 * time.Second))
	events := rec.named(EventUserTyping)
	if len(events) != 4 {
		t.Fatalf("got %d events after sweep, want 4", len(events))
	}
	for _, ev := range events[2:] {
		if ev.Event.Payload.(TypingPayload).IsTyping {
			t.Error("sweep emitted a typing=true event")
		}
	}

	// The sweeper already announced the stop; a late explicit clear is a no-op.
	tracker.ClearTyping("ch1", "u1", nil)
	if got := rec.named(EventUserTyping); len(got) != 4 {
		t.Errorf("got %d events after late clear, want 4", len(got))
	}
}

func TestTypingRefreshExtendsTTL(t *testing.T) {
	rec := &recorder{}
	tracker := newTypingTracker(rec)

	tracker.SetTyping("ch1", "u1", nil)
	time.Sleep(10 * time.Millisecond)
	tracker.SetTyping("ch1", "u1", nil)

	// A sweep at the original deadline finds the refreshed entry still live.
	tracker.sweepExpired(time.Now().Add(5*time.Second - 5*time.Millisecond))
	for _, ev := range rec.named(EventUserTyping) {
		if !ev.Event.Payload.(TypingPayload).IsTyping {
			t.Fatal("refreshed entry expired at the original deadline")
		}
	}
}

func TestTypingClearUser(t *testing.T) {
	rec := &recorder{}
	tracker := newTypingTracker(rec)

	tracker.SetTyping("ch1", "u1", nil)
	tracker.SetTyping("ch2", "u1", nil)
	tracker.SetTyping("ch1", "u2", nil)

	tracker.ClearUser("u1")

	var stops int
	for _, ev := range rec.named(EventUserTyping) {
		p := ev.Event.Payload.(TypingPayload)
		if !p.IsTyping {
			if p.UserID != "u1" {
				t.Errorf("stop emitted for %s, want only u1", p.UserID)
			}
			stops++
		}
	}
	if stops != 2 {
		t.Errorf("got %d stop events, want 2", stops)
	}
}
