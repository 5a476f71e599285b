// Command controlplane wires the Equipment Control Orchestrator's
// collaborators and runs its three concurrent surfaces: the tick
// loop, the per-location worker pool's Kafka consumers, and the
// Command API's HTTP server.
//
// Grounded on the MAPE service's cmd/server/main.go: load
// config, wire collaborators, start background loops, serve HTTP,
// wait on SIGINT/SIGTERM, shut down with a bounded timeout.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"nrgchamp/equipment-control/internal/config"
	"nrgchamp/equipment-control/internal/docstore"
	"nrgchamp/equipment-control/internal/httpapi"
	"nrgchamp/equipment-control/internal/leadlag"
	"nrgchamp/equipment-control/internal/obslog"
	"nrgchamp/equipment-control/internal/obsmetrics"
	"nrgchamp/equipment-control/internal/orchestrator"
	"nrgchamp/equipment-control/internal/statestore"
	"nrgchamp/equipment-control/internal/timeseries"
	"nrgchamp/equipment-control/internal/uicommand"
	"nrgchamp/equipment-control/internal/workerpool"
)

func main() {
	lg, lf := obslog.Init("controlplane")
	defer lf.Close()

	lg.Info("equipment control orchestrator starting")

	cfg, err := config.LoadEnvAndFiles()
	if err != nil {
		lg.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	docs, err := docstore.New(cfg.DocStoreDSN, lg, docstore.Options{SeedFixturePath: cfg.SeedFixturePath})
	if err != nil {
		lg.Error("docstore setup failed", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	state, err := statestore.New(cfg.CacheURL)
	if err != nil {
		lg.Error("statestore setup failed", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	ts := timeseries.New(cfg, lg)
	ll := leadlag.New(docs, state, ts)
	stats := obsmetrics.New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := workerpool.New(ctx, cfg, docs, ts, state, ll, lg)
	pool.SetMetrics(stats)
	defer pool.Close()

	tracker := uicommand.NewJobTracker()
	worker := uicommand.NewWorker(cfg, ts, state, tracker, lg)
	worker.SetMetrics(stats)
	worker.Run(ctx)

	orch := orchestrator.New(docs, ts, ll, pool, pool, orchestrator.NewLocks(), orchestrator.DefaultConfig(), lg)
	go runTickLoop(ctx, cfg.TickInterval, orch, stats, lg)

	api := httpapi.New(cfg, worker, tracker, state, docs, state)
	router := httpapi.NewRouter(api)
	logged := handlers.LoggingHandler(os.Stdout, router)

	srv := &http.Server{Addr: cfg.HTTPBind, Handler: logged}
	go func() {
		lg.Info("http server listening", "addr", cfg.HTTPBind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	lg.Info("shutdown signal received", "signal", s.String())

	cancel()
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		lg.Error("http server graceful shutdown failed", "error", err)
	}
	lg.Info("equipment control orchestrator exited cleanly")
}

// runTickLoop drives the orchestrator on cfg's tick interval until ctx
// is cancelled, recording each tick's shape to Prometheus.
func runTickLoop(ctx context.Context, interval time.Duration, orch *orchestrator.Orchestrator, stats *obsmetrics.Metrics, lg *slog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			summary, err := orch.Tick(ctx)
			if err != nil {
				lg.Error("tick_failed", "error", err)
				continue
			}
			stats.ObserveTick(summary.Elapsed, summary.TotalWorkingSet, summary.Dispatched, summary.Enqueued)
		}
	}
}
