package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/persist"
	"assetgraph/internal/testutil"
	"assetgraph/pkg/backoff"
	"assetgraph/pkg/circuitbreaker"
)

type fakeMetrics struct {
	mu           sync.Mutex
	evaluations  map[string]int
	materialized map[string]asset.Status
	persisted    map[string]asset.Status
	runs         atomic.Int64
	lastFailed   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		evaluations:  make(map[string]int),
		materialized: make(map[string]asset.Status),
		persisted:    make(map[string]asset.Status),
	}
}

func (m *fakeMetrics) RecordEvaluation(ctx context.Context, id string, eligible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[id]++
}

func (m *fakeMetrics) RecordMaterialization(ctx context.Context, id string, status asset.Status, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materialized[id] = status
}

func (m *fakeMetrics) RecordPersist(ctx context.Context, id string, status asset.Status, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted[id] = status
}

func (m *fakeMetrics) RecordRun(ctx context.Context, d time.Duration, failed int) {
	m.mu.Lock()
	m.lastFailed = failed
	m.mu.Unlock()
	m.runs.Add(1)
}

type graph struct {
	reg    *asset.Registry
	meta   *persist.MemoryMeta
	ints   *persist.Data[int]
	source *asset.Base[*asset.Meta, int]
	double *asset.Downstream[int]
	sum    *asset.Downstream[int]
}

// newGraph wires raw.n -> derived.double -> derived.sum (double + raw.n).
func newGraph(t *testing.T) *graph {
	t.Helper()
	g := &graph{
		reg:  asset.NewRegistry(),
		meta: persist.NewMemoryMeta(),
		ints: persist.NewData[int](persist.NewMemory[int]()),
	}
	g.double = asset.NewDownstream(asset.DownstreamConfig[int]{
		ID:       "derived.double",
		Registry: g.reg,
		Upstream: asset.IDs("raw.n"),
		Transform: asset.Transform1(func(ctx context.Context, n int) (int, error) {
			return 2 * n, nil
		}),
	})
	g.sum = asset.NewDownstream(asset.DownstreamConfig[int]{
		ID:       "derived.sum",
		Registry: g.reg,
		Upstream: asset.IDs("derived.double", "raw.n"),
		Transform: asset.Transform2(func(ctx context.Context, d, n int) (int, error) {
			return d + n, nil
		}),
	})
	if err := g.reg.Add(g.sum, g.double); err != nil {
		t.Fatalf("Add: %v", err)
	}
	g.meta.Register(g.double, g.sum)
	g.ints.Register(g.double, g.sum)
	g.source = testutil.PersistSource[int](t, g.reg, g.meta, g.ints, "raw.n", 5)
	return g
}

func resultFor(t *testing.T, r *Report, id asset.ID) AssetResult {
	t.Helper()
	for _, a := range r.Assets {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("no result for %s", id)
	return AssetResult{}
}

func TestOrder(t *testing.T) {
	t.Parallel()
	g := newGraph(t)

	ordered, err := Order(g.reg)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	var ids []asset.ID
	for _, a := range ordered {
		ids = append(ids, a.ID())
	}
	if !reflect.DeepEqual(ids, asset.IDs("raw.n", "derived.double", "derived.sum")) {
		t.Errorf("unexpected order: %v", ids)
	}
}

func TestOrder_TiesByID(t *testing.T) {
	t.Parallel()
	reg := asset.NewRegistry()
	if err := reg.Add(asset.NewBase[int]("c"), asset.NewBase[int]("a"), asset.NewBase[int]("b")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ordered, err := Order(reg)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if ordered[0].ID() != "a" || ordered[1].ID() != "b" || ordered[2].ID() != "c" {
		t.Errorf("expected id order for independent assets")
	}
}

func TestOrder_Errors(t *testing.T) {
	t.Parallel()
	identity := asset.Transform1(func(ctx context.Context, n int) (int, error) { return n, nil })

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()
		reg := asset.NewRegistry()
		x := asset.NewDownstream(asset.DownstreamConfig[int]{ID: "x", Registry: reg, Upstream: asset.IDs("y"), Transform: identity})
		y := asset.NewDownstream(asset.DownstreamConfig[int]{ID: "y", Registry: reg, Upstream: asset.IDs("x"), Transform: identity})
		if err := reg.Add(x, y); err != nil {
			t.Fatalf("Add: %v", err)
		}
		_, err := Order(reg)
		if !errors.Is(err, apperrors.ErrConfiguration) || !strings.Contains(err.Error(), "cycle") {
			t.Errorf("expected cycle configuration error, got %v", err)
		}
	})

	t.Run("unregistered upstream", func(t *testing.T) {
		t.Parallel()
		reg := asset.NewRegistry()
		x := asset.NewDownstream(asset.DownstreamConfig[int]{ID: "x", Registry: reg, Upstream: asset.IDs("missing"), Transform: identity})
		if err := reg.Add(x); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if _, err := Order(reg); !errors.Is(err, apperrors.ErrConfiguration) {
			t.Errorf("expected configuration error, got %v", err)
		}
	})
}

func TestRun_RefreshesInDependencyOrder(t *testing.T) {
	t.Parallel()
	g := newGraph(t)
	metrics := newFakeMetrics()
	r := NewRunner(g.reg, metrics)
	ctx := context.Background()

	if err := r.Validate(ctx); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	report, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID == "" || report.FinishedAt.Before(report.StartedAt) {
		t.Errorf("unexpected report header: %+v", report)
	}
	if !reflect.DeepEqual(report.Materialized(), asset.IDs("derived.double", "derived.sum")) {
		t.Errorf("unexpected materialized set: %v", report.Materialized())
	}
	if src := resultFor(t, report, "raw.n"); src.Reason != ReasonSourceAsset || src.Status != asset.StatusPersisted {
		t.Errorf("unexpected source result: %+v", src)
	}
	if g.sum.Data() != 15 {
		t.Errorf("expected sum 15, got %d", g.sum.Data())
	}
	if metrics.persisted["derived.sum"] != asset.StatusPersisted || metrics.runs.Load() != 1 {
		t.Errorf("unexpected metrics: %+v", metrics.persisted)
	}

	// Nothing changed upstream: second pass refreshes nothing.
	report, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Materialized()) != 0 {
		t.Errorf("expected no refresh, got %v", report.Materialized())
	}
	if res := resultFor(t, report, "derived.double"); res.Eligible || res.Reason != asset.ReasonNotAllRefreshed {
		t.Errorf("unexpected result: %+v", res)
	}

	// The source refreshes: both downstream assets follow in one pass.
	testutil.Repersist(t, g.source, 7)
	report, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Materialized()) != 2 || g.sum.Data() != 21 {
		t.Errorf("expected both refreshed with sum 21, got %v and %d", report.Materialized(), g.sum.Data())
	}
	if report.Failed() != 0 {
		t.Errorf("expected no failures, got %d", report.Failed())
	}
}

func TestRun_TransformFailureIsRecorded(t *testing.T) {
	t.Parallel()
	reg := asset.NewRegistry()
	meta := persist.NewMemoryMeta()
	ints := persist.NewData[int](persist.NewMemory[int]())
	bad := asset.NewDownstream(asset.DownstreamConfig[int]{
		ID:       "derived.bad",
		Registry: reg,
		Upstream: asset.IDs("raw.n"),
		Transform: asset.Transform1(func(ctx context.Context, n int) (int, error) {
			return 0, errors.New("upstream value out of range")
		}),
	})
	if err := reg.Add(bad); err != nil {
		t.Fatalf("Add: %v", err)
	}
	meta.Register(bad)
	ints.Register(bad)
	testutil.PersistSource[int](t, reg, meta, ints, "raw.n", 1)

	metrics := newFakeMetrics()
	report, err := NewRunner(reg, metrics).Run(context.Background())
	if err != nil {
		t.Fatalf("expected failure to be absorbed, got %v", err)
	}
	res := resultFor(t, report, "derived.bad")
	if res.Status != asset.StatusMaterializingFailed || !strings.Contains(res.Error, "out of range") {
		t.Errorf("unexpected result: %+v", res)
	}
	if report.Failed() != 1 || metrics.lastFailed != 1 {
		t.Errorf("expected one failure, got %d / %d", report.Failed(), metrics.lastFailed)
	}
	if _, persisted := metrics.persisted["derived.bad"]; persisted {
		t.Error("a failed materialization must not be persisted")
	}
}

func TestRun_QuarantineAfterRepeatedFailures(t *testing.T) {
	t.Parallel()
	reg := asset.NewRegistry()
	meta := persist.NewMemoryMeta()
	ints := persist.NewData[int](persist.NewMemory[int]())
	var calls atomic.Int64
	flaky := asset.NewDownstream(asset.DownstreamConfig[int]{
		ID:       "derived.flaky",
		Registry: reg,
		Upstream: asset.IDs("raw.n"),
		Transform: asset.Transform1(func(ctx context.Context, n int) (int, error) {
			calls.Add(1)
			return 0, errors.New("remote source unavailable")
		}),
	})
	if err := reg.Add(flaky); err != nil {
		t.Fatalf("Add: %v", err)
	}
	meta.Register(flaky)
	ints.Register(flaky)
	testutil.PersistSource[int](t, reg, meta, ints, "raw.n", 1)

	r := NewRunner(reg, nil, WithQuarantine(circuitbreaker.Config{Threshold: 2, Cooldown: time.Hour}))
	ctx := context.Background()

	for i := range 2 {
		report, err := r.Run(ctx)
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if res := resultFor(t, report, "derived.flaky"); !res.Eligible || res.Error == "" {
			t.Fatalf("Run %d: expected a failed attempt, got %+v", i, res)
		}
	}
	if !r.Quarantined("derived.flaky") {
		t.Fatal("expected asset to be quarantined after two failures")
	}

	report, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := resultFor(t, report, "derived.flaky")
	if res.Eligible || res.Reason != ReasonQuarantined || res.Status != asset.StatusMaterializingFailed {
		t.Errorf("unexpected quarantined result: %+v", res)
	}
	if calls.Load() != 2 {
		t.Errorf("expected the transform to be skipped while quarantined, got %d calls", calls.Load())
	}
	if r.Quarantined("raw.n") {
		t.Error("source assets are never quarantined")
	}
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []*Report
	errs    []error
}

func (n *fakeNotifier) RunFinished(ctx context.Context, report *Report, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	n.errs = append(n.errs, err)
}

func TestRun_NotifiesFinishedRuns(t *testing.T) {
	t.Parallel()
	g := newGraph(t)
	n := &fakeNotifier{}
	r := NewRunner(g.reg, nil, WithNotifier(n))

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.reports) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(n.reports))
	}
	if n.reports[0] != report || n.errs[0] != nil {
		t.Errorf("unexpected first notification: %+v, %v", n.reports[0], n.errs[0])
	}
	if n.reports[0].FinishedAt.IsZero() {
		t.Error("notification must carry the finished report")
	}
	if !errors.Is(n.errs[1], context.Canceled) {
		t.Errorf("expected aborted run to be reported with its error, got %v", n.errs[1])
	}
}

func TestRunner_NextDelay(t *testing.T) {
	t.Parallel()
	interval := time.Minute
	plain := NewRunner(asset.NewRegistry(), nil)
	retrying := NewRunner(asset.NewRegistry(), nil, WithRetry(backoff.Policy{Initial: 5 * time.Second, Max: time.Hour}))

	tests := []struct {
		name     string
		r        *Runner
		failures int
		want     time.Duration
	}{
		{"healthy", retrying, 0, interval},
		{"no retry policy", plain, 3, interval},
		{"first failure", retrying, 1, 5 * time.Second},
		{"second failure", retrying, 2, 10 * time.Second},
		{"capped at interval", retrying, 10, interval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.r.nextDelay(interval, tt.failures); got != tt.want {
				t.Errorf("nextDelay(%d) = %v, want %v", tt.failures, got, tt.want)
			}
		})
	}
}

func TestRun_ConfigurationErrorAborts(t *testing.T) {
	t.Parallel()
	reg := asset.NewRegistry()
	meta := persist.NewMemoryMeta()
	strs := persist.NewData[string](persist.NewMemory[string]())
	ints := persist.NewData[int](persist.NewMemory[int]())
	wrong := asset.NewDownstream(asset.DownstreamConfig[int]{
		ID:        "derived.wrong",
		Registry:  reg,
		Upstream:  asset.IDs("raw.s"),
		Transform: asset.Transform1(func(ctx context.Context, n int) (int, error) { return n, nil }),
	})
	if err := reg.Add(wrong); err != nil {
		t.Fatalf("Add: %v", err)
	}
	meta.Register(wrong)
	ints.Register(wrong)
	testutil.PersistSource[string](t, reg, meta, strs, "raw.s", "text")

	report, err := NewRunner(reg, nil).Run(context.Background())
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if report == nil || len(report.Assets) != 2 {
		t.Fatalf("expected a partial report with both assets, got %+v", report)
	}
}

func TestRun_OneAtATime(t *testing.T) {
	t.Parallel()
	g := newGraph(t)
	r := NewRunner(g.reg, nil)

	r.running.Lock()
	_, err := r.Run(context.Background())
	r.running.Unlock()

	if !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected conflict while a run is in progress, got %v", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()
	g := newGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(g.reg, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_Loop(t *testing.T) {
	t.Parallel()
	g := newGraph(t)
	metrics := newFakeMetrics()
	r := NewRunner(g.reg, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Loop(ctx, 5*time.Millisecond)
		close(done)
	}()

	testutil.MustWaitForCount(t, &metrics.runs, 2)
	cancel()
	<-done
}
