// Package summary sends a scheduled session summary card on a cron
// schedule.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"starwatch/internal/monitor"
	"starwatch/internal/notify"
	logx "starwatch/pkg/logx"
)

type Config struct {
	Enabled  bool
	Schedule string // cron expression; default 08:00 daily
	Timezone string // IANA name; default local
}

type Scheduler struct {
	cron *cron.Cron
	log  logx.Logger
}

// Start builds and starts the cron scheduler. The returned Scheduler is
// nil when disabled.
func Start(ctx context.Context, cfg Config, mon *monitor.Monitor, dispatcher *notify.Dispatcher, log logx.Logger) (*Scheduler, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	schedule := strings.TrimSpace(cfg.Schedule)
	if schedule == "" {
		schedule = "0 8 * * *"
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("summary: bad timezone %q: %w", tz, err)
		}
		loc = l
	}

	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(schedule, func() {
		now := time.Now().In(loc)
		card := monitor.SummaryCard(mon.Stats(), mon.CurrentTarget(), now)
		dispatcher.Dispatch(ctx, card)
		log.Info("session summary sent")
	})
	if err != nil {
		return nil, fmt.Errorf("summary: bad schedule %q: %w", schedule, err)
	}
	c.Start()
	log.Info("summary scheduler started",
		logx.String("schedule", schedule),
		logx.String("timezone", loc.String()))
	return &Scheduler{cron: c, log: log}, nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}
