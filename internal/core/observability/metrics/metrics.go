// Package metrics exposes replication counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives replication events. Implementations must be cheap;
// they are called from the tick loop.
type Recorder interface {
	SnapshotGenerated(bytes int)
	UpdateApplied()
	UpdateFailed()
	RolledBack(adapters int)
	Interpolated(adapters int)
	PredictionVerified(match bool)
	FactoryMissing()
	Registered(records int)
	ClientsConnected(n int)
}

// Nop discards every event.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) SnapshotGenerated(int)   {}
func (Nop) UpdateApplied()          {}
func (Nop) UpdateFailed()           {}
func (Nop) RolledBack(int)          {}
func (Nop) Interpolated(int)        {}
func (Nop) PredictionVerified(bool) {}
func (Nop) FactoryMissing()         {}
func (Nop) Registered(int)          {}
func (Nop) ClientsConnected(int)    {}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	snapshots     prometheus.Counter
	snapshotBytes prometheus.Counter
	updates       *prometheus.CounterVec
	rollbacks     prometheus.Counter
	interpolated  prometheus.Counter
	predictions   *prometheus.CounterVec
	factoryMisses prometheus.Counter
	records       prometheus.Gauge
	clients       prometheus.Gauge
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors under namespace and registers them
// on reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	p := &Prometheus{
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_generated_total",
			Help:      "Entity snapshots written.",
		}),
		snapshotBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes_total",
			Help:      "Bytes of entity snapshot payload written.",
		}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_applied_total",
			Help:      "Entity updates applied, by result.",
		}, []string{"result"}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_adapters_total",
			Help:      "Predicted components restored to server state.",
		}),
		interpolated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interpolated_adapters_total",
			Help:      "Interpolated components written.",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_checks_total",
			Help:      "Prediction verifications, by outcome.",
		}, []string{"outcome"}),
		factoryMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "factory_missing_total",
			Help:      "Replicated components skipped for lack of an adapter factory.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_entities",
			Help:      "Entities currently registered for replication.",
		}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Clients currently connected to the relay.",
		}),
	}

	for _, c := range []prometheus.Collector{
		p.snapshots, p.snapshotBytes, p.updates, p.rollbacks, p.interpolated,
		p.predictions, p.factoryMisses, p.records, p.clients,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) SnapshotGenerated(bytes int) {
	p.snapshots.Inc()
	p.snapshotBytes.Add(float64(bytes))
}

func (p *Prometheus) UpdateApplied() { p.updates.WithLabelValues("ok").Inc() }

func (p *Prometheus) UpdateFailed() { p.updates.WithLabelValues("error").Inc() }

func (p *Prometheus) RolledBack(adapters int) { p.rollbacks.Add(float64(adapters)) }

func (p *Prometheus) Interpolated(adapters int) { p.interpolated.Add(float64(adapters)) }

func (p *Prometheus) PredictionVerified(match bool) {
	if match {
		p.predictions.WithLabelValues("match").Inc()
		return
	}
	p.predictions.WithLabelValues("mismatch").Inc()
}

func (p *Prometheus) FactoryMissing() { p.factoryMisses.Inc() }

func (p *Prometheus) Registered(records int) { p.records.Set(float64(records)) }

func (p *Prometheus) ClientsConnected(n int) { p.clients.Set(float64(n)) }

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
