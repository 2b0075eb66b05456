// Package monitor implements the polling loop: it tracks what has already
// been seen, resolves the active observation target, gates image
// notifications behind a cooldown, and turns new activity into cards.
package monitor

import (
	"sync"
	"time"

	"starwatch/internal/nina"
)

// Tracker is an insert-and-test dedup set. IsNew inserts the key and
// reports whether it was absent, so a key is only ever "new" once even if
// the caller later drops the resulting notification.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

func (t *Tracker) IsNew(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[key]; ok {
		return false
	}
	t.seen[key] = struct{}{}
	return true
}

func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// EventKey builds the dedup fingerprint for an event. Details participate
// so that two same-typed events in the same timestamp tick stay distinct.
func EventKey(ev nina.Event) string {
	details := ""
	if ev.Details != nil {
		details = ev.Details.String()
	}
	return ev.Time + "|" + ev.Type + "|" + details
}

// ImageKey builds the dedup fingerprint for an image history entry.
func ImageKey(img nina.ImageMetadata) string {
	return img.Date + "|" + img.CameraName
}

// TargetSource says where the current target name came from. A name from a
// TS-TARGETSTART event wins over one derived from the sequence tree.
type TargetSource int

const (
	SourceSequence TargetSource = iota
	SourceTargetStartEvent
)

// TargetInfo is the resolved active observation target. Project and
// coordinate fields are populated only when the source is a TS-TARGETSTART
// event.
type TargetInfo struct {
	Name        string
	ProjectName string
	Coordinates nina.TargetCoordinates
	Rotation    float64
	Source      TargetSource
}

// CooldownGate rate-limits image cards: at most one per cooldown window,
// with suppressed sends counted so the next card can report them. The two
// phases are separate on purpose: ShouldSendNow is a pure query, and the
// window only restarts when a send is actually recorded.
type CooldownGate struct {
	mu         sync.Mutex
	cooldown   time.Duration
	lastSent   time.Time
	suppressed int
	now        func() time.Time
}

func NewCooldownGate(cooldown time.Duration) *CooldownGate {
	return &CooldownGate{cooldown: cooldown, now: time.Now}
}

// ShouldSendNow reports whether the cooldown window has elapsed. It does
// not mutate the gate.
func (g *CooldownGate) ShouldSendNow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastSent.IsZero() {
		return true
	}
	return g.now().Sub(g.lastSent) >= g.cooldown
}

// RecordSent restarts the window and returns how many images were
// suppressed since the previous send, resetting the count.
func (g *CooldownGate) RecordSent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.suppressed
	g.suppressed = 0
	g.lastSent = g.now()
	return n
}

// RecordSuppressed counts a new image that the cooldown swallowed.
func (g *CooldownGate) RecordSuppressed() {
	g.mu.Lock()
	g.suppressed++
	g.mu.Unlock()
}

// SetCooldown adjusts the window length (live config reload).
func (g *CooldownGate) SetCooldown(d time.Duration) {
	g.mu.Lock()
	g.cooldown = d
	g.mu.Unlock()
}

// SessionCounters accumulate over the process lifetime for the scheduled
// summary card.
type SessionCounters struct {
	mu               sync.Mutex
	startedAt        time.Time
	eventsSeen       int
	imagesSeen       int
	imagesNotified   int
	imagesSuppressed int
	targetsVisited   map[string]struct{}
}

func NewSessionCounters(now time.Time) *SessionCounters {
	return &SessionCounters{
		startedAt:      now,
		targetsVisited: make(map[string]struct{}),
	}
}

func (c *SessionCounters) AddEvents(n int) {
	c.mu.Lock()
	c.eventsSeen += n
	c.mu.Unlock()
}

func (c *SessionCounters) AddImage(notified bool) {
	c.mu.Lock()
	c.imagesSeen++
	if notified {
		c.imagesNotified++
	} else {
		c.imagesSuppressed++
	}
	c.mu.Unlock()
}

func (c *SessionCounters) VisitTarget(name string) {
	c.mu.Lock()
	c.targetsVisited[name] = struct{}{}
	c.mu.Unlock()
}

// SessionStats is a point-in-time copy of the counters.
type SessionStats struct {
	StartedAt        time.Time
	EventsSeen       int
	ImagesSeen       int
	ImagesNotified   int
	ImagesSuppressed int
	Targets          []string
}

func (c *SessionCounters) Snapshot() SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	targets := make([]string, 0, len(c.targetsVisited))
	for t := range c.targetsVisited {
		targets = append(targets, t)
	}
	return SessionStats{
		StartedAt:        c.startedAt,
		EventsSeen:       c.eventsSeen,
		ImagesSeen:       c.imagesSeen,
		ImagesNotified:   c.imagesNotified,
		ImagesSuppressed: c.imagesSuppressed,
		Targets:          targets,
	}
}
