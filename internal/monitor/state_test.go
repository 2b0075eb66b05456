package monitor

import (
	"testing"
	"time"

	"starwatch/internal/nina"
)

func TestTrackerInsertAndTest(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	if !tr.IsNew("a") {
		t.Fatal("first insert must be new")
	}
	if tr.IsNew("a") {
		t.Fatal("second insert must not be new")
	}
	if !tr.IsNew("b") {
		t.Fatal("different key must be new")
	}
	if tr.Size() != 2 {
		t.Fatalf("Size = %d, want 2", tr.Size())
	}
}

func TestEventKeyIncludesDetails(t *testing.T) {
	t.Parallel()
	base := nina.Event{Time: "2026-08-20T01:00:00", Type: nina.EventFilterWheelChanged}

	a := base
	a.Details = nina.FilterWheelChange{
		Previous: nina.FilterInfo{Name: "L", ID: 1},
		New:      nina.FilterInfo{Name: "R", ID: 2},
	}
	b := base
	b.Details = nina.FilterWheelChange{
		Previous: nina.FilterInfo{Name: "R", ID: 2},
		New:      nina.FilterInfo{Name: "G", ID: 3},
	}
	if EventKey(a) == EventKey(b) {
		t.Fatal("same-instant events with different payloads must have distinct keys")
	}
	if EventKey(a) != EventKey(a) {
		t.Fatal("key must be deterministic")
	}
}

func TestImageKey(t *testing.T) {
	t.Parallel()
	a := nina.ImageMetadata{Date: "2026-08-20T01:00:00", CameraName: "ASI2600"}
	b := nina.ImageMetadata{Date: "2026-08-20T01:00:00", CameraName: "ASI174"}
	if ImageKey(a) == ImageKey(b) {
		t.Fatal("same-instant frames from different cameras must have distinct keys")
	}
}

func TestCooldownGateTwoPhase(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 1, 0, 0, 0, time.UTC)
	g := NewCooldownGate(time.Minute)
	g.now = func() time.Time { return now }

	// t=0: nothing sent yet, gate open.
	if !g.ShouldSendNow() {
		t.Fatal("gate must be open before the first send")
	}
	if skipped := g.RecordSent(); skipped != 0 {
		t.Fatalf("skipped = %d, want 0", skipped)
	}

	// t=30s: inside the window.
	now = now.Add(30 * time.Second)
	if g.ShouldSendNow() {
		t.Fatal("gate must be closed inside the window")
	}
	g.RecordSuppressed()
	g.RecordSuppressed()

	// ShouldSendNow is a pure query: repeated calls don't restart anything.
	if g.ShouldSendNow() {
		t.Fatal("query must not mutate the gate")
	}

	// t=61s: window elapsed; the send reports the suppressed count once.
	now = now.Add(31 * time.Second)
	if !g.ShouldSendNow() {
		t.Fatal("gate must reopen after the window")
	}
	if skipped := g.RecordSent(); skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
	if skipped := g.RecordSent(); skipped != 0 {
		t.Fatalf("suppressed count must reset, got %d", skipped)
	}
}

func TestCooldownGateSetCooldown(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 20, 1, 0, 0, 0, time.UTC)
	g := NewCooldownGate(time.Minute)
	g.now = func() time.Time { return now }

	g.RecordSent()
	now = now.Add(10 * time.Second)
	if g.ShouldSendNow() {
		t.Fatal("closed under 60s cooldown")
	}
	g.SetCooldown(5 * time.Second)
	if !g.ShouldSendNow() {
		t.Fatal("open after shrinking the cooldown")
	}
}
