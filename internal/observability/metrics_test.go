package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"assetgraph/internal/asset"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()
	metrics, handler, err := NewMetrics(context.Background())
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}
	if metrics == nil || handler == nil {
		t.Fatal("expected metrics and handler")
	}
}

func TestMetrics_Exported(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics, handler, err := NewMetrics(ctx)
	if err != nil {
		t.Fatalf("Failed to create metrics: %v", err)
	}

	metrics.RecordHTTPRequest(ctx, "GET", "/v1/assets/{assetId}", 200, 0.002)
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/runs", 409, 0.001)
	metrics.RecordEvaluation(ctx, "sales.daily", true)
	metrics.RecordEvaluation(ctx, "sales.weekly", false)
	metrics.RecordMaterialization(ctx, "sales.daily", asset.StatusMaterialized, 120*time.Millisecond)
	metrics.RecordMaterialization(ctx, "sales.weekly", asset.StatusMaterializingFailed, time.Second)
	metrics.RecordPersist(ctx, "sales.daily", asset.StatusPersisted, 5*time.Millisecond)
	metrics.RecordPersist(ctx, "sales.weekly", asset.StatusPersistingFailed, 5*time.Millisecond)
	metrics.RecordRun(ctx, 2*time.Second, 1)
	metrics.RecordNotification(ctx, "delivered", 30*time.Millisecond)
	metrics.RecordNotification(ctx, "dropped", 0)
	metrics.RecordNotificationQueue(ctx, 4)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, name := range []string{
		"http_requests_total",
		"asset_evaluations_total",
		"asset_materialize_duration_seconds",
		"asset_materialize_failures_total",
		"asset_persist_failures_total",
		"pipeline_runs_total",
		"pipeline_failed_assets_total",
		"notifications_total",
		"notification_delivery_duration_seconds",
		"notification_queue_size",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("expected %s in scrape output", name)
		}
	}
	if !strings.Contains(out, `route="/v1/assets/{assetId}"`) {
		t.Error("expected route label")
	}
}
