// Package config loads the YAML configuration shared by the server and
// client binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/replica/internal/core/history"
	"github.com/zeusync/replica/internal/core/observability/log"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration document.
type Config struct {
	Log         LogConfig         `json:"log" yaml:"log"`
	Replication ReplicationConfig `json:"replication" yaml:"replication"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Client      ClientConfig      `json:"client" yaml:"client"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

type ReplicationConfig struct {
	VerificationHistory int  `json:"verification_history" yaml:"verification_history"`
	InterpolationBuffer int  `json:"interpolation_buffer" yaml:"interpolation_buffer"`
	VerifyPredictions   bool `json:"verify_predictions" yaml:"verify_predictions"`
}

type ServerConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	TickRate   int    `json:"tick_rate" yaml:"tick_rate"`
	MaxClients int    `json:"max_clients" yaml:"max_clients"`
	NPCs       int    `json:"npcs" yaml:"npcs"`
}

type ClientConfig struct {
	ServerURL               string `json:"server_url" yaml:"server_url"`
	InterpolationDelayTicks int    `json:"interpolation_delay_ticks" yaml:"interpolation_delay_ticks"`
	JitterBuffer            int    `json:"jitter_buffer" yaml:"jitter_buffer"`
}

type MetricsConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	Namespace  string `json:"namespace" yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Replication: ReplicationConfig{
			VerificationHistory: history.DefaultVerificationCapacity,
			InterpolationBuffer: history.DefaultInterpolationCapacity,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			TickRate:   30,
			MaxClients: 64,
			NPCs:       4,
		},
		Client: ClientConfig{
			ServerURL:               "ws://localhost:8080/ws",
			InterpolationDelayTicks: 2,
			JitterBuffer:            256,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":2112",
			Namespace:  "replica",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// LoadYAML decodes r over the defaults and validates the result.
func LoadYAML(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Replication.VerificationHistory <= 0 {
		errs = append(errs, fmt.Errorf("replication.verification_history must be positive, got %d", c.Replication.VerificationHistory))
	}
	if c.Replication.InterpolationBuffer < 2 {
		errs = append(errs, fmt.Errorf("replication.interpolation_buffer must be at least 2, got %d", c.Replication.InterpolationBuffer))
	}
	if c.Server.TickRate <= 0 || c.Server.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("server.tick_rate must be in (0, 1000], got %d", c.Server.TickRate))
	}
	if c.Server.MaxClients <= 0 {
		errs = append(errs, fmt.Errorf("server.max_clients must be positive, got %d", c.Server.MaxClients))
	}
	if c.Server.NPCs < 0 {
		errs = append(errs, fmt.Errorf("server.npcs must not be negative, got %d", c.Server.NPCs))
	}
	if c.Client.InterpolationDelayTicks < 0 {
		errs = append(errs, fmt.Errorf("client.interpolation_delay_ticks must not be negative, got %d", c.Client.InterpolationDelayTicks))
	}
	if c.Client.JitterBuffer <= 0 {
		errs = append(errs, fmt.Errorf("client.jitter_buffer must be positive, got %d", c.Client.JitterBuffer))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addr is required when metrics are enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// TickInterval is the wall-clock duration of one server tick.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Server.TickRate)
}

// LogLevel returns the parsed log level, falling back to info.
func (c Config) LogLevel() log.Level {
	l, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.LevelInfo
	}
	return l
}
