//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"assetgraph/internal/api"
	"assetgraph/internal/asset"
	"assetgraph/internal/dataset"
	"assetgraph/internal/health"
	"assetgraph/internal/observability"
	"assetgraph/internal/persist"
	"assetgraph/internal/pipeline"
)

// stack is one process worth of assets over shared storage. Two stacks over the
// same directory behave like two processes sharing a deployment.
type stack struct {
	db      *persist.DB
	meta    persist.MetaStore
	reg     *asset.Registry
	events  *asset.Base[*asset.Meta, *dataset.Table]
	counts  *asset.Downstream[*dataset.Table]
	runner  *pipeline.Runner
	metrics *observability.Metrics
	scrape  http.Handler
}

func newStack(tb testing.TB, dir string) *stack {
	tb.Helper()
	db, err := persist.OpenDB(filepath.Join(dir, "assets.db"))
	if err != nil {
		tb.Fatalf("OpenDB: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	cfg := persist.Config{MetaBackend: persist.BackendSQLite}
	meta, err := persist.NewMetaStore(cfg, db)
	if err != nil {
		tb.Fatalf("NewMetaStore: %v", err)
	}

	s := &stack{db: db, meta: meta, reg: asset.NewRegistry()}
	s.events = asset.NewBase[*dataset.Table]("raw.events")
	s.counts = asset.NewDownstream(asset.DownstreamConfig[*dataset.Table]{
		ID:        "reports.event_counts",
		Registry:  s.reg,
		Upstream:  asset.IDs("raw.events"),
		Transform: asset.Transform1(countByKind),
	})
	if err := s.reg.Add(s.events, s.counts); err != nil {
		tb.Fatalf("Add: %v", err)
	}
	meta.Register(s.events, s.counts)
	persist.NewData[*dataset.Table](persist.RecordsFile{Root: dir, Format: dataset.FormatNDJSON}).Register(s.events)
	persist.NewData[*dataset.Table](persist.RecordsTable{DB: db, Batch: 100}).Register(s.counts)

	s.metrics, s.scrape, err = observability.NewMetrics(context.Background())
	if err != nil {
		tb.Fatalf("NewMetrics: %v", err)
	}
	s.runner = pipeline.NewRunner(s.reg, s.metrics)
	if err := s.runner.Validate(context.Background()); err != nil {
		tb.Fatalf("Validate: %v", err)
	}
	return s
}

func (s *stack) serve(tb testing.TB) *httptest.Server {
	tb.Helper()
	server := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Registry:      s.reg,
		Meta:          s.meta,
		Lister:        s.meta,
		Runner:        s.runner,
		Metrics:       s.metrics,
		HealthChecker: health.NewChecker(s.meta).WithCheck("database", health.HeartbeatFunc(s.db.Ping)),
	}))
	tb.Cleanup(server.Close)
	return server
}

// ingest persists n generated events as the source payload.
func (s *stack) ingest(tb testing.TB, n int) {
	tb.Helper()
	events := dataset.NewTable("id", "kind")
	kinds := []string{"click", "view", "purchase"}
	for i := range n {
		if err := events.Append(int64(i), kinds[i%len(kinds)]); err != nil {
			tb.Fatalf("Append: %v", err)
		}
	}
	s.events.SetData(events)
	if err := s.events.Persist(context.Background()); err != nil {
		tb.Fatalf("Persist: %v", err)
	}
	if st := s.events.Lifecycle().Status; st != asset.StatusPersisted {
		tb.Fatalf("source status %s: %s", st, s.events.Lifecycle().LastLog())
	}
}

func countByKind(ctx context.Context, events *dataset.Table) (*dataset.Table, error) {
	counts := make(map[string]int64)
	var order []string
	for i := range events.Len() {
		v, _ := events.Value(i, "kind")
		kind := fmt.Sprint(v)
		if _, seen := counts[kind]; !seen {
			order = append(order, kind)
		}
		counts[kind]++
	}
	out := dataset.NewTable("kind", "events")
	for _, k := range order {
		if err := out.Append(k, counts[k]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
