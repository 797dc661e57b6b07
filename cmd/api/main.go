package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/docchatlabs/docchat/internal/adapters/http"
	"github.com/docchatlabs/docchat/internal/bootstrap"
	"github.com/docchatlabs/docchat/internal/config"
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

	app, err := bootstrap.New(ctx, cfg, "api")
	if err != nil {
		os.Stderr.WriteString("bootstrap: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.Intake,
		app.Agent,
		app.Streamer,
		app.Storage,
		metrics.NewHTTPServerMetrics("api"),
		httpadapter.RouterConfig{
			Service:      "api",
			RateLimitRPS: cfg.RateLimitRPS,
			RateBurst:    cfg.RateLimitBurst,
		},
		app.Logger,
	)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("server_shutdown_failed", "error", err)
		}
	}()

	app.Logger.Info("api_listening", "port", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.Logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
	app.Logger.Info("api_stopped")
}
