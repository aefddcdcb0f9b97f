package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
	"github.com/zeusync/replica/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	app, err := injector.InitializeServer(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building server:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Server.ListenAndServe(ctx, http.NewServeMux())
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(ctx, app)
		})
	}

	if err := g.Wait(); err != nil {
		app.Logger.Error("Server stopped with error", log.Error(err))
		os.Exit(1)
	}
	app.Logger.Info("Server stopped")
}

func serveMetrics(ctx context.Context, app *injector.ServerApp) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.Gatherer))
	srv := &http.Server{Addr: app.Config.Metrics.ListenAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("Metrics listening", log.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
