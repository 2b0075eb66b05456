package monitor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"starwatch/internal/nina"
	"starwatch/internal/notify"
	logx "starwatch/pkg/logx"
)

// Client is the slice of the API client the monitor needs.
type Client interface {
	EventHistory(ctx context.Context) ([]nina.Event, error)
	AllImageHistory(ctx context.Context) ([]nina.ImageMetadata, error)
	Sequence(ctx context.Context) (*nina.SequenceSnapshot, error)
	MountInfo(ctx context.Context) (*nina.MountInfo, error)
	LastAutofocus(ctx context.Context) (*nina.AutofocusReport, error)
	Thumbnail(ctx context.Context, index int) ([]byte, error)
	Version(ctx context.Context) (string, error)
	BaseURL() string
}

// Metrics receives poll-loop telemetry. All methods may be called
// concurrently.
type Metrics interface {
	PollTick()
	FetchError(endpoint string)
	ImageObserved(notified bool)
	EventsObserved(n int)
}

type nopMetrics struct{}

func (nopMetrics) PollTick()          {}
func (nopMetrics) FetchError(string)  {}
func (nopMetrics) ImageObserved(bool) {}
func (nopMetrics) EventsObserved(int) {}

// ImageRecorder persists observed frames. Errors are logged, never fatal.
type ImageRecorder interface {
	RecordImage(ctx context.Context, img nina.ImageMetadata, target string, notified bool) error
}

// placeholderTarget is emitted by target-scheduler plugins between real
// targets; it never names an observation target.
const placeholderTarget = "Sequential Instruction Set"

type Config struct {
	PollInterval   time.Duration
	ImageCooldown  time.Duration
	StartupSummary bool
}

// Monitor owns the polling loop. Each tick runs three phases in order:
// sequence (target + meridian), events, images. The phases share the
// dedup trackers, so an entry notified once is never notified again even
// across target changes.
type Monitor struct {
	client     Client
	dispatcher *notify.Dispatcher
	metrics    Metrics
	log        logx.Logger

	events   *Tracker
	images   *Tracker
	gate     *CooldownGate
	counters *SessionCounters
	recorder ImageRecorder

	mu            sync.Mutex
	pollInterval  time.Duration
	startupCard   bool
	currentTarget *TargetInfo
	meridianHours *float64
	seqFetchedOK  bool

	now func() time.Time
}

func New(client Client, dispatcher *notify.Dispatcher, cfg Config, metrics Metrics, log logx.Logger) *Monitor {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	cooldown := cfg.ImageCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Monitor{
		client:       client,
		dispatcher:   dispatcher,
		metrics:      metrics,
		log:          log,
		events:       NewTracker(),
		images:       NewTracker(),
		gate:         NewCooldownGate(cooldown),
		counters:     NewSessionCounters(time.Now()),
		pollInterval: interval,
		startupCard:  cfg.StartupSummary,
		now:          time.Now,
	}
}

// SetRecorder attaches a persistence hook. Call before Run.
func (m *Monitor) SetRecorder(r ImageRecorder) { m.recorder = r }

// Apply adjusts the live cadence settings (config reload).
func (m *Monitor) Apply(cfg Config) {
	m.mu.Lock()
	if cfg.PollInterval > 0 {
		m.pollInterval = cfg.PollInterval
	}
	m.mu.Unlock()
	if cfg.ImageCooldown > 0 {
		m.gate.SetCooldown(cfg.ImageCooldown)
	}
}

func (m *Monitor) interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollInterval
}

// CurrentTarget returns a copy of the resolved target, if any.
func (m *Monitor) CurrentTarget() *TargetInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentTarget == nil {
		return nil
	}
	cp := *m.currentTarget
	return &cp
}

// Stats snapshots the session counters for the summary card.
func (m *Monitor) Stats() SessionStats {
	return m.counters.Snapshot()
}

// Baseline seeds the dedup trackers from the current histories so that
// only activity after startup produces notifications. Fetch failures here
// are logged and tolerated: an empty baseline just means the first poll
// treats existing history as new... which is exactly what a fresh session
// looks like anyway.
func (m *Monitor) Baseline(ctx context.Context) error {
	events, err := m.client.EventHistory(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.metrics.FetchError("event-history")
		m.log.Warn("baseline event fetch failed", logx.Err(err))
	}
	var lastStart *nina.Event
	for i := range events {
		ev := events[i]
		if isNoOpFilterChange(ev) {
			continue
		}
		m.events.IsNew(EventKey(ev))
		if ev.Type == nina.EventTargetStart {
			if d, ok := ev.Details.(nina.TargetStartDetails); ok && d.TargetName != placeholderTarget {
				lastStart = &events[i]
			}
		}
	}
	if lastStart != nil {
		d := lastStart.Details.(nina.TargetStartDetails)
		m.mu.Lock()
		m.currentTarget = &TargetInfo{
			Name:        d.TargetName,
			ProjectName: d.ProjectName,
			Coordinates: d.Coordinates,
			Rotation:    d.Rotation,
			Source:      SourceTargetStartEvent,
		}
		m.mu.Unlock()
		m.counters.VisitTarget(d.TargetName)
	}

	images, err := m.client.AllImageHistory(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.metrics.FetchError("image-history")
		m.log.Warn("baseline image fetch failed", logx.Err(err))
	}
	for _, img := range images {
		m.images.IsNew(ImageKey(img))
	}

	// The sequence may already be mid-run at startup: resolve the target
	// and meridian countdown now so the first tick has nothing new to
	// announce. A TargetStart event seeded above still wins.
	if snap, err := m.client.Sequence(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.metrics.FetchError("sequence")
		m.log.Warn("baseline sequence fetch failed", logx.Err(err))
	} else {
		m.mu.Lock()
		m.seqFetchedOK = true
		if hours, ok := snap.MeridianFlipHours(); ok {
			m.meridianHours = &hours
		}
		noTarget := m.currentTarget == nil
		m.mu.Unlock()
		if name, ok := snap.CurrentTarget(); ok && noTarget {
			m.mu.Lock()
			m.currentTarget = &TargetInfo{Name: name, Source: SourceSequence}
			m.mu.Unlock()
			m.counters.VisitTarget(name)
		}
	}

	m.log.Info("baseline established",
		logx.Int("events", m.events.Size()),
		logx.Int("images", m.images.Size()))

	if m.startupCard && m.dispatcher.ChannelCount() > 0 {
		version, err := m.client.Version(ctx)
		if err != nil {
			m.log.Debug("version fetch failed", logx.Err(err))
		}
		card := StartupCard(version, m.client.BaseURL(), m.interval(), m.channelNote(), m.now())
		card.AddField("Baseline", fmt.Sprintf("%d events, %d images", m.events.Size(), m.images.Size()), true)
		if target := m.CurrentTarget(); target != nil {
			card.AddField("Current Target", target.Name, true)
		}
		if mount, err := m.client.MountInfo(ctx); err == nil && mount.Connected {
			card.Footer = "Mount: " + mount.Name
			if mount.TimeToMeridianFlipText != "" {
				card.AddField("Meridian Flip", mount.TimeToMeridianFlipText, true)
			}
		}
		m.dispatcher.Dispatch(ctx, card)
	}
	return nil
}

func (m *Monitor) channelNote() []string {
	// The dispatcher hides its channel list; the count is enough for the
	// startup card.
	n := m.dispatcher.ChannelCount()
	if n == 1 {
		return []string{"1 channel"}
	}
	return []string{strconv.Itoa(n) + " channels"}
}

// Run polls until the context is canceled. One tick is sequence, then
// events, then images; the tick sleeps for the configured interval
// afterwards, so a slow endpoint stretches the cycle rather than piling
// up requests.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		m.tick(ctx)
		m.metrics.PollTick()

		t := time.NewTimer(m.interval())
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.pollSequence(ctx)
	m.pollEvents(ctx)
	m.pollImages(ctx)
}

// pollSequence resolves the active target and meridian countdown from the
// sequence tree. A fetch failure leaves the previous target and meridian
// value in effect, and is only worth a warning before the first success
// (the sequencer may simply not be running yet); afterwards it is routine
// noise between sessions and drops to debug.
func (m *Monitor) pollSequence(ctx context.Context) {
	snap, err := m.client.Sequence(ctx)
	if err != nil {
		m.metrics.FetchError("sequence")
		m.mu.Lock()
		fetched := m.seqFetchedOK
		m.mu.Unlock()
		if fetched {
			m.log.Debug("sequence fetch failed", logx.Err(err))
		} else {
			m.log.Warn("sequence fetch failed", logx.Err(err))
		}
		return
	}

	var meridian *float64
	if hours, ok := snap.MeridianFlipHours(); ok {
		meridian = &hours
	}

	m.mu.Lock()
	m.seqFetchedOK = true
	m.meridianHours = meridian
	current := m.currentTarget
	m.mu.Unlock()

	name, ok := snap.CurrentTarget()
	if !ok {
		return
	}
	// A target named by a TS-TARGETSTART event outranks the container
	// name; the event stream will announce the next transition itself.
	if current != nil && (current.Name == name || current.Source == SourceTargetStartEvent) {
		return
	}
	next := TargetInfo{Name: name, Source: SourceSequence}
	m.setTarget(ctx, next)
}

func (m *Monitor) setTarget(ctx context.Context, next TargetInfo) {
	m.mu.Lock()
	prev := m.currentTarget
	m.currentTarget = &next
	m.mu.Unlock()

	m.counters.VisitTarget(next.Name)
	m.log.Info("target resolved",
		logx.String("target", next.Name),
		logx.Bool("from_event", next.Source == SourceTargetStartEvent))
	m.dispatcher.Dispatch(ctx, TargetCard(prev, next, m.now()))
}

func isNoOpFilterChange(ev nina.Event) bool {
	if ev.Type != nina.EventFilterWheelChanged {
		return false
	}
	d, ok := ev.Details.(nina.FilterWheelChange)
	return ok && d.NoOp()
}

// pollEvents fetches the event history and notifies everything the
// trackers have not seen. No-op filter changes are discarded before the
// tracker so that a later real change with the same timestamp is not
// shadowed.
func (m *Monitor) pollEvents(ctx context.Context) {
	events, err := m.client.EventHistory(ctx)
	if err != nil {
		m.metrics.FetchError("event-history")
		m.log.Warn("event fetch failed", logx.Err(err))
		return
	}

	fresh := 0
	for _, ev := range events {
		if isNoOpFilterChange(ev) {
			continue
		}
		if !m.events.IsNew(EventKey(ev)) {
			continue
		}
		fresh++
		m.handleEvent(ctx, ev)
	}
	if fresh > 0 {
		m.counters.AddEvents(fresh)
		m.metrics.EventsObserved(fresh)
		m.log.Debug("new events", logx.Int("count", fresh))
	}
}

func (m *Monitor) handleEvent(ctx context.Context, ev nina.Event) {
	switch ev.Type {
	case nina.EventImageSave:
		// Image history carries the full metadata; the bare event is
		// redundant.
		return

	case nina.EventTargetStart:
		d, ok := ev.Details.(nina.TargetStartDetails)
		if !ok || d.TargetName == placeholderTarget {
			return
		}
		m.mu.Lock()
		same := m.currentTarget != nil && m.currentTarget.Name == d.TargetName
		m.mu.Unlock()
		if same {
			return
		}
		m.setTarget(ctx, TargetInfo{
			Name:        d.TargetName,
			ProjectName: d.ProjectName,
			Coordinates: d.Coordinates,
			Rotation:    d.Rotation,
			Source:      SourceTargetStartEvent,
		})

	case nina.EventAutofocusFinished:
		report, err := m.client.LastAutofocus(ctx)
		if err != nil {
			m.metrics.FetchError("last-af")
			m.log.Debug("autofocus report fetch failed", logx.Err(err))
			m.dispatcher.Dispatch(ctx, GenericEventCard(ev, m.now()))
			return
		}
		// A run that never completed gets no card; "poor fit" is reserved
		// for completed runs with a weak curve.
		if !report.Success {
			m.log.Debug("autofocus run failed, skipping card")
			return
		}
		m.dispatcher.Dispatch(ctx, AutofocusCard(report, m.now()))

	case nina.EventMountBeforeFlip, nina.EventMountAfterFlip, nina.EventMountParked:
		mount, err := m.client.MountInfo(ctx)
		if err != nil {
			m.metrics.FetchError("mount-info")
			mount = nil
		}
		m.dispatcher.Dispatch(ctx, MountEventCard(ev.Type, mount, m.now()))

	default:
		m.dispatcher.Dispatch(ctx, GenericEventCard(ev, m.now()))
	}
}

// pollImages fetches the image history and sends a card for at most one
// new frame per cooldown window; the rest are counted and reported as
// "skipped" on the next card that makes it through.
func (m *Monitor) pollImages(ctx context.Context) {
	images, err := m.client.AllImageHistory(ctx)
	if err != nil {
		m.metrics.FetchError("image-history")
		m.log.Warn("image fetch failed", logx.Err(err))
		return
	}

	for idx, img := range images {
		if !m.images.IsNew(ImageKey(img)) {
			continue
		}
		m.mu.Lock()
		target := m.currentTarget
		meridian := m.meridianHours
		m.mu.Unlock()

		if !m.gate.ShouldSendNow() {
			m.gate.RecordSuppressed()
			m.counters.AddImage(false)
			m.metrics.ImageObserved(false)
			m.record(ctx, img, target, false)
			m.log.Debug("image suppressed by cooldown",
				logx.String("camera", img.CameraName),
				logx.String("date", img.Date))
			continue
		}
		skipped := m.gate.RecordSent()
		m.counters.AddImage(true)
		m.metrics.ImageObserved(true)
		m.record(ctx, img, target, true)

		card := ImageCard(img, target, meridian, skipped, m.now())
		index := idx
		m.dispatcher.DispatchWithThumbnail(ctx, card, func(ctx context.Context) ([]byte, error) {
			return m.client.Thumbnail(ctx, index)
		}, "thumbnail.jpg")
	}
}

func (m *Monitor) record(ctx context.Context, img nina.ImageMetadata, target *TargetInfo, notified bool) {
	if m.recorder == nil {
		return
	}
	name := ""
	if target != nil {
		name = target.Name
	}
	if err := m.recorder.RecordImage(ctx, img, name, notified); err != nil {
		m.log.Debug("image record failed", logx.Err(err))
	}
}

// TargetsVisited returns the sorted set of targets seen this session.
func (m *Monitor) TargetsVisited() []string {
	stats := m.counters.Snapshot()
	sort.Strings(stats.Targets)
	return stats.Targets
}
