package replication

import (
	"github.com/zeusync/replica/internal/core/history"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
)

// Option configures a Collection.
type Option func(*CollectionConfig)

// CollectionConfig holds the tunables of a Collection.
type CollectionConfig struct {
	Logger                log.Log          // Logger, defaults to log.Provide()
	Metrics               metrics.Recorder // Event sink, defaults to metrics.Nop
	Instrumentation       Instrumentation  // Prediction tracking, disabled when nil
	InterpolationCapacity int              // Ring size per interpolated adapter
}

func defaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		Metrics:               metrics.Nop{},
		InterpolationCapacity: history.DefaultInterpolationCapacity,
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Log) Option {
	return func(c *CollectionConfig) { c.Logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *CollectionConfig) { c.Metrics = m }
}

// WithInstrumentation enables prediction tracking.
func WithInstrumentation(i Instrumentation) Option {
	return func(c *CollectionConfig) { c.Instrumentation = i }
}

// WithInterpolationCapacity sets the interpolation ring size.
func WithInterpolationCapacity(n int) Option {
	return func(c *CollectionConfig) {
		if n > 0 {
			c.InterpolationCapacity = n
		}
	}
}
