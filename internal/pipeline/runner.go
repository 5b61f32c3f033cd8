// Package pipeline evaluates and refreshes the assets of a registry in
// dependency order.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/pkg/backoff"
	"assetgraph/pkg/circuitbreaker"
)

const (
	// ReasonSourceAsset is reported for assets without upstream dependencies.
	ReasonSourceAsset = "source asset is produced outside the graph"
	// ReasonQuarantined is reported for assets skipped after repeated failures.
	ReasonQuarantined = "quarantined after consecutive failures"
)

// Materializer is a downstream asset the runner can refresh.
type Materializer interface {
	asset.Asset
	UpstreamIDs() []asset.ID
	Eligibility(ctx context.Context) (asset.Decision, error)
	Materialize(ctx context.Context) error
	Persist(ctx context.Context) error
}

// MetricsRecorder receives run measurements. Implemented by observability.Metrics.
type MetricsRecorder interface {
	RecordEvaluation(ctx context.Context, assetID string, eligible bool)
	RecordMaterialization(ctx context.Context, assetID string, status asset.Status, d time.Duration)
	RecordPersist(ctx context.Context, assetID string, status asset.Status, d time.Duration)
	RecordRun(ctx context.Context, d time.Duration, failed int)
}

// Report describes one pass over the registry.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Assets     []AssetResult `json:"assets"`
}

// AssetResult is the outcome for one asset.
type AssetResult struct {
	ID       asset.ID     `json:"id"`
	Eligible bool         `json:"eligible"`
	Reason   string       `json:"reason"`
	Status   asset.Status `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// Failed counts assets that ended in a failed state or reported an error.
func (r *Report) Failed() int {
	n := 0
	for _, a := range r.Assets {
		if a.Error != "" || a.Status.Failed() {
			n++
		}
	}
	return n
}

// Materialized lists the assets refreshed during the run.
func (r *Report) Materialized() []asset.ID {
	var ids []asset.ID
	for _, a := range r.Assets {
		if a.Eligible && a.Status == asset.StatusPersisted && a.Error == "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// Notifier is told about every finished run, including aborted ones. It must
// not block.
type Notifier interface {
	RunFinished(ctx context.Context, report *Report, err error)
}

// Runner refreshes eligible assets one at a time.
type Runner struct {
	registry   *asset.Registry
	metrics    MetricsRecorder
	notifier   Notifier
	quarantine *circuitbreaker.Set[asset.ID]
	retry      *backoff.Policy
	running    sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithQuarantine skips an asset for cfg.Cooldown once cfg.Threshold consecutive
// refresh attempts have failed. After the cooldown one attempt decides whether
// the asset is released or skipped again.
func WithQuarantine(cfg circuitbreaker.Config) Option {
	return func(r *Runner) { r.quarantine = circuitbreaker.New[asset.ID](cfg) }
}

// WithNotifier reports finished runs to n.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithRetry makes Loop retry an aborted run after p.Delay(failures) instead of
// waiting a full interval. Delays never exceed the interval.
func WithRetry(p backoff.Policy) Option {
	return func(r *Runner) { r.retry = &p }
}

// NewRunner creates a runner over registry. metrics may be nil.
func NewRunner(registry *asset.Registry, metrics MetricsRecorder, opts ...Option) *Runner {
	r := &Runner{registry: registry, metrics: metrics}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Quarantined reports whether id is currently skipped after repeated failures.
func (r *Runner) Quarantined(id asset.ID) bool {
	return r.quarantine != nil && r.quarantine.State(id) == circuitbreaker.Open
}

// Validate checks every registered asset and the dependency order.
func (r *Runner) Validate(ctx context.Context) error {
	if _, err := Order(r.registry); err != nil {
		return err
	}
	for _, a := range r.registry.Assets() {
		if err := a.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run makes one pass in dependency order: each eligible asset is materialized
// and, if that succeeded, persisted. Failures of individual assets are recorded
// in the report; configuration and schema errors stop the run and are returned
// together with the partial report. Only one run executes at a time.
func (r *Runner) Run(ctx context.Context) (report *Report, err error) {
	if !r.running.TryLock() {
		return nil, apperrors.Conflict("run", "", "a run is already in progress")
	}
	defer r.running.Unlock()

	report = &Report{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := slog.With("component", "runner", "runId", report.RunID)
	defer func() {
		report.FinishedAt = time.Now().UTC()
		if r.metrics != nil {
			r.metrics.RecordRun(ctx, report.FinishedAt.Sub(report.StartedAt), report.Failed())
		}
		if r.notifier != nil {
			r.notifier.RunFinished(context.WithoutCancel(ctx), report, err)
		}
	}()

	ordered, err := Order(r.registry)
	if err != nil {
		return report, err
	}
	logger.Info("Run started", "assets", len(ordered))

	for _, a := range ordered {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := r.refresh(ctx, a)
		report.Assets = append(report.Assets, result)
		if err != nil {
			logger.Error("Run aborted", "assetId", a.ID(), "error", err)
			return report, err
		}
	}

	logger.Info("Run finished",
		"materialized", len(report.Materialized()),
		"failed", report.Failed(),
		"duration", time.Since(report.StartedAt))
	return report, nil
}

// refresh handles one asset. The returned error is non-nil only when the run
// must stop.
func (r *Runner) refresh(ctx context.Context, a asset.Asset) (AssetResult, error) {
	result := AssetResult{ID: a.ID()}

	m, ok := a.(Materializer)
	if !ok {
		result.Reason = ReasonSourceAsset
		err := a.LoadMeta(ctx)
		result.Status = a.Lifecycle().Status
		return result, r.absorb(&result, err)
	}

	if r.quarantine != nil && !r.quarantine.Allow(a.ID()) {
		result.Reason = ReasonQuarantined
		result.Status = m.Lifecycle().Status
		return result, nil
	}

	decision, err := m.Eligibility(ctx)
	result.Status = m.Lifecycle().Status
	if err != nil {
		return result, r.absorb(&result, err)
	}
	result.Eligible, result.Reason = decision.Eligible, decision.Reason
	if r.metrics != nil {
		r.metrics.RecordEvaluation(ctx, string(a.ID()), decision.Eligible)
	}
	if !decision.Eligible {
		return result, nil
	}

	start := time.Now()
	err = m.Materialize(ctx)
	result.Status = m.Lifecycle().Status
	if r.metrics != nil {
		r.metrics.RecordMaterialization(ctx, string(a.ID()), result.Status, time.Since(start))
	}
	if err != nil || result.Status != asset.StatusMaterialized {
		return r.finish(&result, m, err)
	}

	start = time.Now()
	err = m.Persist(ctx)
	result.Status = m.Lifecycle().Status
	if r.metrics != nil {
		r.metrics.RecordPersist(ctx, string(a.ID()), result.Status, time.Since(start))
	}
	return r.finish(&result, m, err)
}

func (r *Runner) finish(result *AssetResult, a asset.Asset, err error) (AssetResult, error) {
	if err == nil && a.Lifecycle().HasError() {
		result.Error = a.Lifecycle().LastLog()
	}
	err = r.absorb(result, err)
	if r.quarantine != nil && err == nil {
		if result.Error == "" {
			r.quarantine.Success(a.ID())
		} else if r.quarantine.Failure(a.ID()) {
			slog.Warn("Asset quarantined",
				"assetId", a.ID(),
				"failures", r.quarantine.Failures(a.ID()))
		}
	}
	return *result, err
}

// absorb records operational errors on the result and passes the rest through.
func (r *Runner) absorb(result *AssetResult, err error) error {
	if err == nil {
		return nil
	}
	if !apperrors.IsOperational(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	result.Error = err.Error()
	return nil
}

// Loop runs the pipeline every interval until ctx is cancelled. Run errors are
// logged and do not stop the loop; with WithRetry an aborted run is retried
// sooner.
func (r *Runner) Loop(ctx context.Context, interval time.Duration) {
	logger := slog.With("component", "runner")
	timer := time.NewTimer(interval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		_, err := r.Run(ctx)
		switch {
		case err == nil, errors.Is(err, apperrors.ErrConflict):
			failures = 0
		case ctx.Err() != nil:
			return
		default:
			failures++
			logger.Error("Scheduled run failed", "error", err, "consecutiveFailures", failures)
		}
		timer.Reset(r.nextDelay(interval, failures))
	}
}

func (r *Runner) nextDelay(interval time.Duration, failures int) time.Duration {
	if failures == 0 || r.retry == nil {
		return interval
	}
	return min(r.retry.Delay(failures-1), interval)
}
