package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docchatlabs/docchat/internal/bootstrap"
	"github.com/docchatlabs/docchat/internal/config"
	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		os.Stderr.WriteString("bootstrap: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsHandler(workerMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("metrics_server_failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("worker_started", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)

	err = app.Queue.Subscribe(ctx, func(msgCtx context.Context, req domain.IngestionRequest) error {
		workerMetrics.StartIngestion()
		start := time.Now()

		status := app.Pipeline.Process(msgCtx, req)

		workerMetrics.FinishIngestion("worker", string(status.State), time.Since(start))
		if status.State == domain.IngestionCompleted {
			workerMetrics.ObservePages("worker", status.TotalPages)
		}
		return nil
	})
	if err != nil {
		app.Logger.Error("subscription_failed", "error", err)
		os.Exit(1)
	}
	app.Logger.Info("worker_stopped")
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
