// assets-service runs the example asset pipeline and serves its status API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assetgraph/internal/api"
	"assetgraph/internal/config"
	"assetgraph/internal/dataset"
	"assetgraph/internal/dispatcher"
	"assetgraph/internal/health"
	"assetgraph/internal/observability"
	"assetgraph/internal/persist"
	"assetgraph/internal/pipeline"
	"assetgraph/pkg/backoff"
	"assetgraph/pkg/circuitbreaker"
)

func main() {
	svcCfg := config.LoadServiceConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: svcCfg.LogLevel})))

	if err := run(svcCfg); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run(svcCfg *config.ServiceConfig) error {
	ctx := context.Background()

	// Load configuration
	storeCfg := persist.LoadConfigFromEnv()
	if err := storeCfg.Validate(); err != nil {
		return err
	}

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Open storage
	db, err := persist.OpenDB(storeCfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Opened database", "path", db.Path())

	metaStore, err := persist.NewMetaStore(storeCfg, db)
	if err != nil {
		return err
	}

	totals, err := totalsResource(db)
	if err != nil {
		return err
	}

	orders := persist.RecordsFile{Root: storeCfg.DataDir, Format: storeCfg.DataFormat}
	ex, err := buildPipeline(pipelineConfig{
		Meta:    metaStore,
		Orders:  orders,
		Totals:  totals,
		Summary: persist.DocumentFile[OrderSummary]{Root: storeCfg.DataDir, Format: dataset.FormatYAML},
	})
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if svcCfg.RetryInitial > 0 {
		opts = append(opts, pipeline.WithRetry(backoff.Policy{Initial: svcCfg.RetryInitial, Max: svcCfg.RunInterval}))
	}
	if svcCfg.QuarantineAfter > 0 {
		opts = append(opts, pipeline.WithQuarantine(circuitbreaker.Config{
			Threshold: svcCfg.QuarantineAfter,
			Cooldown:  svcCfg.QuarantineFor,
		}))
	}

	// Setup run notifications
	var notifications *dispatcher.MemoryDispatcher
	notifyCfg := dispatcher.LoadConfigFromEnv()
	if notifyCfg.Enabled() {
		notifications = dispatcher.NewMemory(notifyCfg.Memory, metrics)
		opts = append(opts, pipeline.WithNotifier(dispatcher.NewNotifier(notifications, notifyCfg.URLs, notifyCfg.Source)))
		slog.Info("Run notifications enabled", "destinations", len(notifyCfg.URLs))
	}

	runner := pipeline.NewRunner(ex.registry, metrics, opts...)
	if err := runner.Validate(ctx); err != nil {
		return err
	}
	if config.GetBoolEnv("SEED_ORDERS", true) {
		if err := ex.seed(ctx); err != nil {
			return err
		}
	}
	slog.Info("Pipeline ready", "assets", ex.registry.Len(), "metaBackend", storeCfg.MetaBackend)

	// Create health checker
	healthChecker := health.NewChecker(metaStore).
		WithCheck("database", health.HeartbeatFunc(db.Ping))

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Registry:      ex.registry,
		Meta:          metaStore,
		Lister:        metaStore,
		Runner:        runner,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // POST /v1/runs waits for the run
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 2)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start the scheduled runs
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if svcCfg.RunOnStart {
			if _, err := runner.Run(loopCtx); err != nil {
				slog.Error("Initial run failed", "error", err)
			}
		}
		if svcCfg.RunInterval > 0 {
			runner.Loop(loopCtx, svcCfg.RunInterval)
		}
	}()

	// Watch the source file for external rewrites
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if !svcCfg.WatchSources {
			return
		}
		watcher := pipeline.NewWatcher(runner, svcCfg.WatchDebounce,
			pipeline.SourceFile{ID: ordersID, Path: orders.Path(ordersID)})
		if err := watcher.Watch(loopCtx); err != nil {
			slog.Error("Source watcher stopped", "error", err)
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		stopLoop()
		<-loopDone
		<-watchDone
		shutdown(5 * time.Second)
		drainNotifications(notifications, 5*time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Stop scheduling. A run in flight sees the cancelled context
	// between assets.
	slog.Info("Stopping scheduled runs")
	stopLoop()
	<-loopDone
	<-watchDone

	// Phase 3: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 4: Deliver queued notifications
	drainNotifications(notifications, 10*time.Second)

	slog.Info("Shutdown complete")
	return nil
}

// drainNotifications waits for queued notifications to be delivered. d may be nil.
func drainNotifications(d *dispatcher.MemoryDispatcher, timeout time.Duration) {
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		slog.Error("Notification dispatcher shutdown error", "error", err)
	}
	stats := d.Stats()
	slog.Info("Notification dispatcher stopped",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
		"pending", stats.QueueDepth)
}

// totalsResource builds the reports.order_totals resource from TOTALS_RESOURCE,
// a JSON resource spec such as {"type":"table","if_table_exists":"replace"}.
func totalsResource(db *persist.DB) (persist.Resource[*dataset.Table], error) {
	raw := config.GetEnv("TOTALS_RESOURCE", `{"type":"table"}`)
	spec, err := persist.UnmarshalResourceSpec([]byte(raw))
	if err != nil {
		return nil, err
	}
	return persist.BuildRecordsResource(spec, db)
}
