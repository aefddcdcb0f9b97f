package injector

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/observability/metrics"
)

func TestInitializeServer(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"

	app, err := InitializeServer(cfg)
	require.NoError(t, err)
	require.NotNil(t, app.Server)
	require.NotNil(t, app.Logger)
	require.Equal(t, 0, app.Server.Sessions())
}

func TestProvideMetrics(t *testing.T) {
	cfg := config.Default()
	reg := ProvidePrometheusRegistry()

	m, err := ProvideMetrics(cfg, reg)
	require.NoError(t, err)
	require.IsType(t, metrics.Nop{}, m)

	cfg.Metrics.Enabled = true
	m, err = ProvideMetrics(cfg, reg)
	require.NoError(t, err)
	require.IsType(t, &metrics.Prometheus{}, m)

	// same registry twice collides
	_, err = ProvideMetrics(cfg, reg)
	require.Error(t, err)
}

func TestInitializeClient(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"

	srv, err := InitializeServer(cfg)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Server.Handler())
	defer hs.Close()

	cfg.Client.ServerURL = "ws" + strings.TrimPrefix(hs.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	app, err := InitializeClient(ctx, cfg)
	require.NoError(t, err)
	defer app.Client.Close()
	require.Equal(t, cfg.Client.ServerURL, app.Config.Client.ServerURL)
}

func TestInitializeClient_DialError(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Client.ServerURL = "ws://127.0.0.1:1/ws"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := InitializeClient(ctx, cfg)
	require.Error(t, err)
}
