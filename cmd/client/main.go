package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/game"
	"github.com/zeusync/replica/internal/injector"
	"github.com/zeusync/replica/internal/transport/websocket"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	url := flag.String("url", "", "server websocket url, overrides client.server_url")
	strafe := flag.Bool("strafe", false, "keep moving right so the prediction path is exercised")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.Client.ServerURL = *url
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	app, err := injector.InitializeClient(dialCtx, cfg)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error connecting:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Logger.Sync() }()

	if *strafe {
		app.Client.SetInput(game.Input{MoveX: 1})
	}

	err = app.Client.Run(ctx)
	switch {
	case errors.Is(err, websocket.ErrClientClosed):
		app.Logger.Info("Server closed the connection")
	case err != nil:
		app.Logger.Error("Client stopped with error", log.Error(err))
		os.Exit(1)
	default:
		app.Logger.Info("Client stopped",
			log.Int32("player", int32(app.Client.Player())),
			log.Uint32("last_tick", uint32(app.Client.LatestTick())))
	}
}
