package api

import (
	"net/http"

	"assetgraph/internal/asset"
	"assetgraph/internal/health"
	"assetgraph/internal/observability"
	"assetgraph/internal/persist"
	"assetgraph/internal/pipeline"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Registry      *asset.Registry
	Meta          asset.MetaPersister
	Lister        persist.Lister
	Runner        *pipeline.Runner
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Registry, cfg.Meta, cfg.Lister, cfg.Runner, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Probes - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	auth := AuthMiddleware(cfg.APIKey)
	mux.Handle("GET /v1/assets", auth(http.HandlerFunc(handler.ListAssets)))
	mux.Handle("GET /v1/assets/{assetId}", auth(http.HandlerFunc(handler.GetAsset)))
	mux.Handle("GET /v1/assets/{assetId}/eligibility", auth(http.HandlerFunc(handler.GetEligibility)))
	mux.Handle("POST /v1/assets/{assetId}/refreshed", auth(http.HandlerFunc(handler.MarkRefreshed)))
	mux.Handle("GET /v1/meta", auth(http.HandlerFunc(handler.ListStored)))
	mux.Handle("POST /v1/runs", auth(http.HandlerFunc(handler.CreateRun)))

	// Outermost first
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	route := MuxRoute(mux)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics, route)(h)
	}
	h = LoggingMiddleware(route)(h)
	h = RequestIDMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
