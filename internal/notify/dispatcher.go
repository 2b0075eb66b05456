package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "starwatch/pkg/logx"
)

// Observer receives delivery outcomes (for metrics/storage). All methods
// may be called concurrently.
type Observer interface {
	NotificationSent(channel, title string)
	NotificationFailed(channel, title string)
}

type nopObserver struct{}

func (nopObserver) NotificationSent(string, string)   {}
func (nopObserver) NotificationFailed(string, string) {}

type DispatcherConfig struct {
	SendTimeout time.Duration // per-channel; default 30s
	RatePerSec  float64       // global outbound message rate; 0 disables limiting
}

// Dispatcher fans one message out to every configured channel in parallel.
// A channel failure is logged and counted but never propagated: one broken
// webhook must not silence the others, and must never stall the poll loop.
type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	limiter  *rate.Limiter
	obs      Observer
	log      logx.Logger
}

func NewDispatcher(channels []Channel, cfg DispatcherConfig, obs Observer, log logx.Logger) *Dispatcher {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Dispatcher{
		channels: channels,
		timeout:  timeout,
		limiter:  limiter,
		obs:      obs,
		log:      log,
	}
}

// ChannelCount reports how many channels are configured.
func (d *Dispatcher) ChannelCount() int { return len(d.channels) }

// Dispatch sends msg to every channel and waits for all deliveries.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	d.dispatch(ctx, msg, nil, "")
}

// ThumbnailFetcher produces the attachment bytes for a card. It is invoked
// at most once per dispatch, not once per channel.
type ThumbnailFetcher func(ctx context.Context) ([]byte, error)

// DispatchWithThumbnail fetches the thumbnail once and sends the card with
// it attached. If the fetch fails the card still goes out text-only.
func (d *Dispatcher) DispatchWithThumbnail(ctx context.Context, msg Message, fetch ThumbnailFetcher, filename string) {
	if len(d.channels) == 0 {
		return
	}
	var data []byte
	if fetch != nil {
		var err error
		data, err = fetch(ctx)
		if err != nil {
			d.log.Warn("thumbnail fetch failed, sending text-only",
				logx.Err(err))
			data = nil
		}
	}
	d.dispatch(ctx, msg, data, filename)
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message, attachment []byte, filename string) {
	if len(d.channels) == 0 {
		return
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
	}

	var wg sync.WaitGroup
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			d.sendOne(ctx, ch, msg, attachment, filename)
		}(ch)
	}
	wg.Wait()
}

func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, msg Message, attachment []byte, filename string) {
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	if len(attachment) > 0 {
		err = ch.SendWithAttachment(sctx, msg, attachment, filename)
	} else {
		err = ch.Send(sctx, msg)
	}
	if err != nil {
		d.obs.NotificationFailed(ch.Name(), msg.Title)
		d.log.Error("channel send failed",
			logx.String("channel", ch.Name()),
			logx.String("title", msg.Title),
			logx.Err(err))
		return
	}
	d.obs.NotificationSent(ch.Name(), msg.Title)
	d.log.Debug("notification delivered",
		logx.String("channel", ch.Name()),
		logx.String("title", msg.Title))
}
