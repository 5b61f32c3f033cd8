//go:build e2e

package e2e

import (
	"context"
	"strconv"
	"testing"
	"time"

	"assetgraph/internal/asset"
)

// BenchmarkRefresh measures a full refresh: evaluation, transform over an
// NDJSON source and a batched table write.
// Run with: go test -tags=e2e -run=^$ -bench=BenchmarkRefresh ./e2e/
func BenchmarkRefresh(b *testing.B) {
	for _, rows := range []int{1_000, 50_000} {
		b.Run(sizeName(rows), func(b *testing.B) {
			s := newStack(b, b.TempDir())
			ctx := context.Background()

			for b.Loop() {
				b.StopTimer()
				time.Sleep(time.Millisecond)
				s.ingest(b, rows)
				b.StartTimer()

				report, err := s.runner.Run(ctx)
				if err != nil {
					b.Fatalf("Run: %v", err)
				}
				if len(report.Materialized()) != 1 {
					b.Fatalf("expected one refresh, got %+v", report.Assets)
				}
			}
		})
	}
}

// TestRefreshThroughput reports how long repeated refreshes of a large source take.
func TestRefreshThroughput(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping throughput test in short mode")
	}

	const (
		rows   = 100_000
		rounds = 5
	)

	s := newStack(t, t.TempDir())
	ctx := context.Background()

	var total time.Duration
	for i := range rounds {
		time.Sleep(time.Millisecond)
		s.ingest(t, rows)

		start := time.Now()
		report, err := s.runner.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if report.Failed() != 0 {
			t.Fatalf("round %d: failures %+v", i, report.Assets)
		}
		total += elapsed
	}

	if s.counts.Lifecycle().Status != asset.StatusPersisted {
		t.Errorf("expected persisted, got %s", s.counts.Lifecycle().Status)
	}
	t.Logf("Refreshed %d rows %d times, average %v per run", rows, rounds, total/rounds)
}

func sizeName(rows int) string {
	switch {
	case rows >= 1_000_000:
		return "rows=" + strconv.Itoa(rows/1_000_000) + "M"
	case rows >= 1_000:
		return "rows=" + strconv.Itoa(rows/1_000) + "k"
	default:
		return "rows=" + strconv.Itoa(rows)
	}
}
