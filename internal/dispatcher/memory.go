package dispatcher

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"assetgraph/pkg/circuitbreaker"
	"assetgraph/pkg/cloudevent"
)

// Notification outcomes reported to MetricsRecorder.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
	OutcomeRequeued  = "requeued"
)

// queueReportInterval is how often the queue depth gauge is refreshed.
const queueReportInterval = 5 * time.Second

// MetricsRecorder receives delivery measurements. Implemented by observability.Metrics.
type MetricsRecorder interface {
	RecordNotification(ctx context.Context, outcome string, d time.Duration)
	RecordNotificationQueue(ctx context.Context, size int64)
}

type counters struct {
	queued, delivered, failed, dropped, requeued, retries atomic.Int64
}

// MemoryDispatcher queues events in a bounded channel served by a worker pool.
// Dispatch never blocks: with the buffer full the event is dropped. Each
// destination host has its own breaker; events for an open host wait out the
// cooldown and are queued again.
type MemoryDispatcher struct {
	cfg      MemoryConfig
	queue    chan *Event
	sender   *cloudevent.Sender
	breakers *circuitbreaker.Set[string]
	metrics  MetricsRecorder
	logger   *slog.Logger
	stats    counters

	workers  sync.WaitGroup
	done     chan struct{}
	closed   atomic.Bool
	timersMu sync.Mutex
	timers   map[*time.Timer]struct{}
}

// NewMemory starts a dispatcher. metrics may be nil.
func NewMemory(cfg MemoryConfig, metrics MetricsRecorder) *MemoryDispatcher {
	cfg = cfg.withDefaults()
	d := &MemoryDispatcher{
		cfg:      cfg,
		queue:    make(chan *Event, cfg.BufferSize),
		sender:   cloudevent.NewSender(cfg.HTTPTimeout),
		breakers: circuitbreaker.New[string](cfg.Breaker),
		metrics:  metrics,
		logger:   slog.With("component", "dispatcher"),
		done:     make(chan struct{}),
		timers:   make(map[*time.Timer]struct{}),
	}

	d.workers.Add(cfg.Workers)
	for range cfg.Workers {
		go d.work()
	}
	if metrics != nil {
		go d.reportQueue()
	}

	d.logger.Info("Dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// Dispatch queues event for delivery.
func (d *MemoryDispatcher) Dispatch(event *Event) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if !d.enqueue(event) {
		d.drop(event, "buffer full")
		return ErrBufferFull
	}
	d.stats.queued.Add(1)
	return nil
}

// Stats returns current counters.
func (d *MemoryDispatcher) Stats() Stats {
	return Stats{
		QueueDepth:   len(d.queue),
		Queued:       d.stats.queued.Load(),
		Delivered:    d.stats.delivered.Load(),
		Failed:       d.stats.failed.Load(),
		Dropped:      d.stats.dropped.Load(),
		Requeued:     d.stats.requeued.Load(),
		RetriesTotal: d.stats.retries.Load(),
		BreakersOpen: d.breakers.Stats().Open,
	}
}

// Close stops accepting events and delivers what is queued. Events waiting for
// a breaker cooldown are abandoned. ctx bounds the wait.
func (d *MemoryDispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}
	d.logger.Info("Dispatcher shutting down", "queued", len(d.queue))

	d.timersMu.Lock()
	for t := range d.timers {
		t.Stop()
	}
	clear(d.timers)
	d.timersMu.Unlock()
	close(d.done)

	finished := make(chan struct{})
	go func() {
		d.workers.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s := d.Stats()
		d.logger.Info("Dispatcher shutdown complete", "delivered", s.Delivered, "failed", s.Failed, "dropped", s.Dropped)
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *MemoryDispatcher) enqueue(event *Event) bool {
	select {
	case d.queue <- event:
		return true
	default:
		return false
	}
}

func (d *MemoryDispatcher) work() {
	defer d.workers.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *MemoryDispatcher) deliver(event *Event) {
	host := extractHost(event.Destination)
	if !d.breakers.Allow(host) {
		d.requeue(event)
		return
	}

	// Every attempt may use the full HTTP timeout, plus the backoff between them.
	budget := time.Duration(d.cfg.MaxRetries+1)*d.cfg.HTTPTimeout + d.cfg.Retry.Delay(d.cfg.MaxRetries)*time.Duration(d.cfg.MaxRetries)
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	start := time.Now()
	if err := d.send(ctx, event); err != nil {
		if d.breakers.Failure(host) {
			d.logger.Warn("Destination blocked after repeated failures", "destination", host, "cooldown", d.cfg.Breaker.Cooldown)
		}
		d.stats.failed.Add(1)
		d.record(OutcomeFailed, time.Since(start))
		d.logger.Warn("Delivery failed",
			"destination", host,
			"type", event.Payload.Type,
			"subject", event.Payload.Subject,
			"error", err)
		return
	}

	d.breakers.Success(host)
	d.stats.delivered.Add(1)
	d.record(OutcomeDelivered, time.Since(start))
}

// send retries retryable failures with backoff.
func (d *MemoryDispatcher) send(ctx context.Context, event *Event) error {
	var err error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			d.stats.retries.Add(1)
			timer := time.NewTimer(d.cfg.Retry.Delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		err = d.sender.Send(ctx, event.Destination, event.Payload, d.cfg.SigningKey)
		if err == nil || !cloudevent.Retryable(err) {
			return err
		}
	}
	return err
}

// requeue queues event again after the breaker cooldown, up to MaxRequeues times.
func (d *MemoryDispatcher) requeue(event *Event) {
	if event.Requeues >= d.cfg.MaxRequeues {
		d.drop(event, "destination blocked")
		return
	}
	event.Requeues++
	d.stats.requeued.Add(1)
	d.record(OutcomeRequeued, 0)

	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	if d.closed.Load() {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d.cfg.Breaker.Cooldown, func() {
		d.timersMu.Lock()
		delete(d.timers, timer)
		d.timersMu.Unlock()
		if d.closed.Load() {
			return
		}
		if !d.enqueue(event) {
			d.drop(event, "buffer full on requeue")
		}
	})
	d.timers[timer] = struct{}{}
}

func (d *MemoryDispatcher) drop(event *Event, reason string) {
	d.stats.dropped.Add(1)
	d.record(OutcomeDropped, 0)
	d.logger.Warn("Notification dropped",
		"reason", reason,
		"destination", extractHost(event.Destination),
		"type", event.Payload.Type,
		"subject", event.Payload.Subject,
		"requeues", event.Requeues)
}

func (d *MemoryDispatcher) record(outcome string, dur time.Duration) {
	if d.metrics != nil {
		d.metrics.RecordNotification(context.Background(), outcome, dur)
	}
}

func (d *MemoryDispatcher) reportQueue() {
	ticker := time.NewTicker(queueReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.metrics.RecordNotificationQueue(context.Background(), int64(len(d.queue)))
		}
	}
}

// extractHost keys breakers by destination host.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

var _ Dispatcher = (*MemoryDispatcher)(nil)
