package injector

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/replica/internal/config"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
	"github.com/zeusync/replica/internal/core/prefab"
	"github.com/zeusync/replica/internal/core/replication"
	"github.com/zeusync/replica/internal/game"
	"github.com/zeusync/replica/internal/transport/websocket"
)

// ServerApp is everything cmd/server needs.
type ServerApp struct {
	Config   config.Config
	Logger   *log.Logger
	Server   *websocket.Server
	Gatherer prometheus.Gatherer
}

// ClientApp is everything cmd/client needs.
type ClientApp struct {
	Config config.Config
	Logger *log.Logger
	Client *websocket.Client
}

var CoreSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideRegistry,
	ProvidePrefabs,
	ProvidePrometheusRegistry,
	ProvideMetrics,
)

var ServerSet = wire.NewSet(
	CoreSet,
	ProvideServerConfig,
	websocket.NewServer,
	wire.Bind(new(prometheus.Gatherer), new(*prometheus.Registry)),
	wire.Struct(new(ServerApp), "*"),
)

var ClientSet = wire.NewSet(
	CoreSet,
	ProvideClientConfig,
	websocket.Dial,
	wire.Struct(new(ClientApp), "*"),
)

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.New(cfg.LogLevel())
}

// ProvideRegistry builds the static replication table.
func ProvideRegistry(logger log.Log) (*replication.Registry, error) {
	reg := replication.NewRegistry(logger)
	if err := game.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func ProvidePrefabs() (*prefab.Registry, error) {
	p := prefab.NewRegistry()
	if err := game.RegisterPrefabs(p); err != nil {
		return nil, err
	}
	return p, nil
}

func ProvidePrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics returns a Prometheus recorder when metrics are enabled.
func ProvideMetrics(cfg config.Config, reg *prometheus.Registry) (metrics.Recorder, error) {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}, nil
	}
	p, err := metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func ProvideServerConfig(cfg config.Config) websocket.ServerConfig {
	return websocket.ServerConfig{
		ListenAddr: cfg.Server.ListenAddr,
		TickRate:   cfg.Server.TickRate,
		MaxClients: cfg.Server.MaxClients,
		NPCs:       cfg.Server.NPCs,
	}
}

func ProvideClientConfig(cfg config.Config) websocket.ClientConfig {
	return websocket.ClientConfig{
		URL:                 cfg.Client.ServerURL,
		TickRate:            cfg.Server.TickRate,
		InterpolationDelay:  cfg.Client.InterpolationDelayTicks,
		JitterBuffer:        cfg.Client.JitterBuffer,
		InterpolationBuffer: cfg.Replication.InterpolationBuffer,
		VerifyPredictions:   cfg.Replication.VerifyPredictions,
		VerificationHistory: cfg.Replication.VerificationHistory,
	}
}
