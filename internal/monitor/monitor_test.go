package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"starwatch/internal/nina"
	"starwatch/internal/notify"
	logx "starwatch/pkg/logx"
)

type fakeClient struct {
	mu     sync.Mutex
	events []nina.Event
	images []nina.ImageMetadata
	nodes  []any

	seqErr   error
	mount    *nina.MountInfo
	af       *nina.AutofocusReport
	thumbErr error
}

func (c *fakeClient) set(fn func(*fakeClient)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

func (c *fakeClient) EventHistory(context.Context) ([]nina.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]nina.Event(nil), c.events...), nil
}

func (c *fakeClient) AllImageHistory(context.Context) ([]nina.ImageMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]nina.ImageMetadata(nil), c.images...), nil
}

func (c *fakeClient) Sequence(context.Context) (*nina.SequenceSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seqErr != nil {
		return nil, c.seqErr
	}
	return &nina.SequenceSnapshot{Nodes: c.nodes}, nil
}

func (c *fakeClient) MountInfo(context.Context) (*nina.MountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mount == nil {
		return nil, errors.New("no mount")
	}
	return c.mount, nil
}

func (c *fakeClient) LastAutofocus(context.Context) (*nina.AutofocusReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.af == nil {
		return nil, errors.New("no report")
	}
	return c.af, nil
}

func (c *fakeClient) Thumbnail(context.Context, int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thumbErr != nil {
		return nil, c.thumbErr
	}
	return []byte{0xFF, 0xD8}, nil
}

func (c *fakeClient) Version(context.Context) (string, error) { return "2.2.2", nil }
func (c *fakeClient) BaseURL() string                         { return "http://test:1888" }

type fakeChannel struct {
	mu     sync.Mutex
	titles []string
	photos int
}

func (ch *fakeChannel) Name() string { return "fake" }

func (ch *fakeChannel) Send(_ context.Context, msg notify.Message) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.titles = append(ch.titles, msg.Title)
	return nil
}

func (ch *fakeChannel) SendWithAttachment(_ context.Context, msg notify.Message, _ []byte, _ string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.titles = append(ch.titles, msg.Title)
	ch.photos++
	return nil
}

func (ch *fakeChannel) sent() []string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]string(nil), ch.titles...)
}

func newTestMonitor(t *testing.T, client *fakeClient) (*Monitor, *fakeChannel) {
	t.Helper()
	ch := &fakeChannel{}
	d := notify.NewDispatcher([]notify.Channel{ch}, notify.DispatcherConfig{}, nil, logx.Nop())
	m := New(client, d, Config{
		PollInterval:   time.Second,
		ImageCooldown:  time.Minute,
		StartupSummary: false,
	}, nil, logx.Nop())
	return m, ch
}

func ev(at, typ string) nina.Event { return nina.Event{Time: at, Type: typ} }

func TestBaselineSuppressesHistory(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		events: []nina.Event{
			ev("t1", nina.EventCameraConnected),
			ev("t2", nina.EventSequenceStart),
			{Time: "t3", Type: nina.EventFilterWheelChanged, Details: nina.FilterWheelChange{
				Previous: nina.FilterInfo{Name: "Ha", ID: 4},
				New:      nina.FilterInfo{Name: "Ha", ID: 4},
			}},
			ev("t4", nina.EventGuiderStart),
			ev("t5", nina.EventExposureStart),
		},
		images: []nina.ImageMetadata{
			{Date: "d1", CameraName: "cam"},
			{Date: "d2", CameraName: "cam"},
		},
	}
	m, ch := newTestMonitor(t, client)

	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	// The no-op filter change never enters the tracker.
	if got := m.events.Size(); got != 4 {
		t.Fatalf("event fingerprints = %d, want 4", got)
	}
	if got := m.images.Size(); got != 2 {
		t.Fatalf("image fingerprints = %d, want 2", got)
	}
	if len(ch.sent()) != 0 {
		t.Fatalf("baseline must not notify, got %v", ch.sent())
	}

	// A full tick over identical history is silent.
	m.tick(context.Background())
	if len(ch.sent()) != 0 {
		t.Fatalf("unchanged history must not notify, got %v", ch.sent())
	}
}

func TestBaselineSeedsTargetFromLatestStart(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		events: []nina.Event{
			{Time: "t1", Type: nina.EventTargetStart, Details: nina.TargetStartDetails{TargetName: "M 31"}},
			{Time: "t2", Type: nina.EventTargetStart, Details: nina.TargetStartDetails{TargetName: "Sequential Instruction Set"}},
			{Time: "t3", Type: nina.EventTargetStart, Details: nina.TargetStartDetails{TargetName: "IC 1396"}},
		},
	}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	target := m.CurrentTarget()
	if target == nil || target.Name != "IC 1396" {
		t.Fatalf("target = %+v, want IC 1396", target)
	}
	if len(ch.sent()) != 0 {
		t.Fatal("seeding the baseline target must not notify")
	}
}

func TestBaselineResolvesRunningTargetSilently(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		nodes: mustNodesJSON(t, `[
			{"GlobalTriggers":[{"Name":"Meridian Flip_Trigger","TimeToFlip":2.5}]},
			{"Name":"M 42_Container","Status":"RUNNING"}]`),
	}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}

	target := m.CurrentTarget()
	if target == nil || target.Name != "M 42" {
		t.Fatalf("target = %+v, want M 42 from the sequence tree", target)
	}
	if target.Source != SourceSequence {
		t.Fatalf("source = %v, want sequence", target.Source)
	}
	m.mu.Lock()
	meridian := m.meridianHours
	m.mu.Unlock()
	if meridian == nil || *meridian != 2.5 {
		t.Fatalf("meridian = %v, want seeded 2.5", meridian)
	}
	if len(ch.sent()) != 0 {
		t.Fatalf("a target already running at startup must not notify, got %v", ch.sent())
	}

	// The first tick sees the same tree and stays quiet.
	m.tick(context.Background())
	if len(ch.sent()) != 0 {
		t.Fatalf("first tick over baseline state must not notify, got %v", ch.sent())
	}
}

func TestBaselineEventTargetOutranksSequenceTarget(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		events: []nina.Event{
			{Time: "t1", Type: nina.EventTargetStart, Details: nina.TargetStartDetails{TargetName: "IC 1396"}},
		},
		nodes: mustNodesJSON(t, `[{"GlobalTriggers":[]},{"Name":"IC 1396 Session_Container","Status":"RUNNING"}]`),
	}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	target := m.CurrentTarget()
	if target == nil || target.Name != "IC 1396" || target.Source != SourceTargetStartEvent {
		t.Fatalf("target = %+v, want the event-sourced name", target)
	}
	if len(ch.sent()) != 0 {
		t.Fatalf("baseline must not notify, got %v", ch.sent())
	}
}

func TestSequenceFetchFailureKeepsState(t *testing.T) {
	t.Parallel()
	client := &fakeClient{
		nodes: mustNodesJSON(t, `[
			{"GlobalTriggers":[{"Name":"Meridian Flip_Trigger","TimeToFlip":0.5}]},
			{"Name":"M 101_Container","Status":"RUNNING"}]`),
	}
	m, _ := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	m.tick(context.Background())

	client.set(func(c *fakeClient) { c.seqErr = errors.New("sequencer offline") })
	m.tick(context.Background())

	m.mu.Lock()
	meridian := m.meridianHours
	m.mu.Unlock()
	if meridian == nil || *meridian != 0.5 {
		t.Fatalf("meridian = %v, want previous 0.5 kept across the fetch failure", meridian)
	}
	if target := m.CurrentTarget(); target == nil || target.Name != "M 101" {
		t.Fatalf("target = %+v, want previous target kept", target)
	}
}

func TestNewEventNotifiesOnce(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}

	client.set(func(c *fakeClient) {
		c.events = []nina.Event{ev("t1", nina.EventGuiderStart)}
	})
	m.tick(context.Background())
	m.tick(context.Background())

	got := ch.sent()
	if len(got) != 1 {
		t.Fatalf("sends = %v, want exactly one", got)
	}
	if got[0] != "🎯 Guiding Started" {
		t.Fatalf("title = %q", got[0])
	}
}

func TestNoOpFilterChangeNeverNotifies(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}

	client.set(func(c *fakeClient) {
		c.events = []nina.Event{{Time: "t1", Type: nina.EventFilterWheelChanged, Details: nina.FilterWheelChange{
			Previous: nina.FilterInfo{Name: "L", ID: 1},
			New:      nina.FilterInfo{Name: "L", ID: 1},
		}}}
	})
	m.tick(context.Background())
	if len(ch.sent()) != 0 {
		t.Fatalf("no-op change must not notify, got %v", ch.sent())
	}
}

func TestFailedAutofocusRunSendsNoCard(t *testing.T) {
	t.Parallel()
	client := &fakeClient{af: &nina.AutofocusReport{Success: false}}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}

	client.set(func(c *fakeClient) {
		c.events = []nina.Event{ev("t1", nina.EventAutofocusFinished)}
	})
	m.tick(context.Background())
	if got := ch.sent(); len(got) != 0 {
		t.Fatalf("failed run must not notify, got %v", got)
	}

	// A completed run with a weak curve still gets its "poor fit" card.
	client.set(func(c *fakeClient) {
		c.af = &nina.AutofocusReport{Success: true}
		c.events = append(c.events, ev("t2", nina.EventAutofocusFinished))
	})
	m.tick(context.Background())
	got := ch.sent()
	if len(got) != 1 || !strings.Contains(got[0], "poor fit") {
		t.Fatalf("sends = %v, want one poor-fit card", got)
	}
}

func TestTargetPrecedenceEventOverSequence(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}

	// A target starts running after the baseline; the sequence resolves it.
	client.set(func(c *fakeClient) {
		c.nodes = mustNodesJSON(t, `[{"GlobalTriggers":[]},{"Name":"M 81_Container","Status":"RUNNING"}]`)
	})
	m.tick(context.Background())
	if target := m.CurrentTarget(); target == nil || target.Name != "M 81" {
		t.Fatalf("target = %+v, want M 81", target)
	}

	// A target-start event overrides it.
	client.set(func(c *fakeClient) {
		c.events = []nina.Event{{Time: "t1", Type: nina.EventTargetStart, Details: nina.TargetStartDetails{
			TargetName:  "M 81 Bode's Galaxy",
			ProjectName: "Galaxies",
		}}}
	})
	m.tick(context.Background())
	target := m.CurrentTarget()
	if target == nil || target.Name != "M 81 Bode's Galaxy" {
		t.Fatalf("target = %+v, want event name", target)
	}
	if target.Source != SourceTargetStartEvent {
		t.Fatalf("source = %v, want event", target.Source)
	}

	// The sequence container name no longer overrides the event name.
	m.tick(context.Background())
	if target := m.CurrentTarget(); target.Name != "M 81 Bode's Galaxy" {
		t.Fatalf("target flapped back to %q", target.Name)
	}

	sent := ch.sent()
	if len(sent) != 2 {
		t.Fatalf("sends = %v, want target started + target changed", sent)
	}
	if !strings.Contains(sent[0], "Target Started") || !strings.Contains(sent[1], "Target Changed") {
		t.Fatalf("titles = %v", sent)
	}
}

func TestImageCooldownInLoop(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	m, ch := newTestMonitor(t, client)

	now := time.Date(2026, 8, 20, 2, 0, 0, 0, time.UTC)
	m.gate.now = func() time.Time { return now }
	m.now = func() time.Time { return now }

	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}

	// Two new frames in one batch: the first opens the window and closes
	// it behind itself.
	client.set(func(c *fakeClient) {
		c.images = []nina.ImageMetadata{
			{Date: "d1", CameraName: "cam", ImageType: "LIGHT"},
			{Date: "d2", CameraName: "cam", ImageType: "LIGHT"},
		}
	})
	m.tick(context.Background())
	if got := ch.sent(); len(got) != 1 {
		t.Fatalf("sends = %v, want one card", got)
	}

	// Inside the window: another new frame is suppressed.
	now = now.Add(30 * time.Second)
	client.set(func(c *fakeClient) {
		c.images = append(c.images, nina.ImageMetadata{Date: "d3", CameraName: "cam", ImageType: "LIGHT"})
	})
	m.tick(context.Background())
	if got := ch.sent(); len(got) != 1 {
		t.Fatalf("sends = %v, want still one card", got)
	}

	// Past the window: the next card reports both skipped frames.
	now = now.Add(45 * time.Second)
	client.set(func(c *fakeClient) {
		c.images = append(c.images, nina.ImageMetadata{Date: "d4", CameraName: "cam", ImageType: "LIGHT"})
	})
	m.tick(context.Background())
	got := ch.sent()
	if len(got) != 2 {
		t.Fatalf("sends = %v, want two cards", got)
	}
	if !strings.Contains(got[1], "(+2 skipped)") {
		t.Fatalf("second card title = %q, want skipped count", got[1])
	}
	if ch.photos != 2 {
		t.Fatalf("photos = %d, want both cards with thumbnails", ch.photos)
	}
}

func TestThumbnailFailureFallsBackToText(t *testing.T) {
	t.Parallel()
	client := &fakeClient{thumbErr: errors.New("boom")}
	m, ch := newTestMonitor(t, client)
	if err := m.Baseline(context.Background()); err != nil {
		t.Fatalf("Baseline: %v", err)
	}

	client.set(func(c *fakeClient) {
		c.images = []nina.ImageMetadata{{Date: "d1", CameraName: "cam", ImageType: "LIGHT"}}
	})
	m.tick(context.Background())
	if got := ch.sent(); len(got) != 1 {
		t.Fatalf("sends = %v, want one text card", got)
	}
	if ch.photos != 0 {
		t.Fatal("failed thumbnail must fall back to text-only")
	}
}

func mustNodesJSON(t *testing.T, raw string) []any {
	t.Helper()
	var nodes []any
	if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return nodes
}
