// Package app wires configuration, logging, the API client, notification
// channels, and the monitor together, and owns the start/stop lifecycle.
package app

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"starwatch/internal/config"
	"starwatch/internal/monitor"
	"starwatch/internal/nina"
	"starwatch/internal/notify"
	"starwatch/internal/observability/metrics"
	"starwatch/internal/runtime/supervisor"
	"starwatch/internal/storage"
	"starwatch/internal/summary"
	"starwatch/internal/web"
	logx "starwatch/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	client     *nina.Client
	dispatcher *notify.Dispatcher
	mon        *monitor.Monitor
	web        *web.Server
	sched      *summary.Scheduler
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	client, err := buildClient(cfg, log.With(logx.String("comp", "nina")))
	if err != nil {
		return nil, err
	}

	// A misconfigured channel is fatal: silently running without a
	// configured destination is worse than refusing to start. Zero
	// configured channels is fine (dry-run / metrics-only operation).
	channels, err := buildChannels(cfg)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		log.Warn("no notification channels configured; running without delivery")
	}

	// Storage (optional)
	var store storage.Store
	if cfg.Storage != nil {
		st, err := storage.Open(storage.Config{
			Driver: cfg.Storage.Driver,
			Path:   cfg.Storage.Path,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if st != nil {
			store = st
			log.Info("storage enabled", logx.String("driver", cfg.Storage.Driver))
		}
	}

	metricsEnabled := cfg.Metrics != nil && cfg.Metrics.Enabled
	if metricsEnabled {
		metrics.Init()
	}

	dcfg, err := mapDispatcherConfig(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(channels, dcfg,
		&deliveryObserver{store: store, metrics: metricsEnabled},
		log.With(logx.String("comp", "notify")))

	mcfg, err := mapMonitorConfig(cfg)
	if err != nil {
		return nil, err
	}
	var mm monitor.Metrics
	if metricsEnabled {
		mm = promMetrics{}
	}
	mon := monitor.New(client, dispatcher, mcfg, mm, log.With(logx.String("comp", "monitor")))
	if store != nil {
		mon.SetRecorder(&imageRecorder{store: store})
	}

	var webSrv *web.Server
	if metricsEnabled {
		webSrv = web.New(web.Config{Listen: cfg.Metrics.Listen}, log.With(logx.String("comp", "web")))
	}

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		store:      store,
		client:     client,
		dispatcher: dispatcher,
		mon:        mon,
		web:        webSrv,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	// Seed the dedup trackers before the loop so existing history never
	// notifies.
	if err := a.mon.Baseline(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("monitor.run", func(c context.Context) error {
		return a.mon.Run(c)
	})

	if a.web != nil {
		a.sup.Go("web", func(_ context.Context) error {
			return a.web.Run()
		})
	}

	cfg := a.cfgm.Get()
	if cfg.Summary != nil {
		sched, err := summary.Start(a.sup.Context(), summary.Config{
			Enabled:  cfg.Summary.Enabled,
			Schedule: cfg.Summary.Schedule,
			Timezone: cfg.Summary.Timezone,
		}, a.mon, a.dispatcher, a.log.With(logx.String("comp", "summary")))
		if err != nil {
			return err
		}
		a.sched = sched
	}

	// Hot reload: logging and monitor cadence apply live; channel, API,
	// and storage changes need a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyReload(old, cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	mcfg, err := mapMonitorConfig(cfg)
	if err != nil {
		a.log.Warn("invalid monitor config; keeping previous", logx.Err(err))
	} else {
		a.mon.Apply(mcfg)
	}

	if changed := restartRequired(old, cfg); len(changed) > 0 {
		a.log.Warn("config changed; restart required for these sections to take effect",
			logx.String("sections", strings.Join(changed, ",")))
	}
	a.log.Info("config reloaded")
}

// restartRequired names sections whose changes cannot be applied live.
func restartRequired(old, cfg *config.Config) []string {
	if old == nil {
		return nil
	}
	var sections []string
	if !reflect.DeepEqual(old.API, cfg.API) {
		sections = append(sections, "api")
	}
	if !reflect.DeepEqual(old.Channels, cfg.Channels) {
		sections = append(sections, "channels")
	}
	if !reflect.DeepEqual(old.Storage, cfg.Storage) {
		sections = append(sections, "storage")
	}
	if !reflect.DeepEqual(old.Metrics, cfg.Metrics) {
		sections = append(sections, "metrics")
	}
	if !reflect.DeepEqual(old.Summary, cfg.Summary) {
		sections = append(sections, "summary")
	}
	return sections
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context so the poll loop starts unwinding immediately.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	step("summary", 2*time.Second, func(context.Context) error { a.sched.Stop(); return nil })
	if a.web != nil {
		step("web", 2*time.Second, func(c context.Context) error { return a.web.Shutdown(c) })
	}
	step("storage", 1*time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (monitor loop, config watch).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
