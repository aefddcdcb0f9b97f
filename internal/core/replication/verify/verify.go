// Package verify records server and predicted samples per tick so a client
// can check its predictions once the authoritative state arrives.
package verify

import (
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/history"
	"github.com/zeusync/replica/internal/core/replication"
)

// Instrumentation hands out trackers backed by sparse tick indexes.
type Instrumentation struct {
	capacity int
}

var _ replication.Instrumentation = (*Instrumentation)(nil)

// New returns instrumentation keeping capacity ticks per component. A
// non-positive capacity uses history.DefaultVerificationCapacity.
func New(capacity int) *Instrumentation {
	if capacity <= 0 {
		capacity = history.DefaultVerificationCapacity
	}
	return &Instrumentation{capacity: capacity}
}

func (i *Instrumentation) TrackPrediction(ct entity.ComponentType, h entity.Handle, equal func(server, predicted any) bool) replication.PredictionTracker {
	return &Tracker{
		componentType: ct,
		entity:        h,
		equal:         equal,
		server:        history.NewSamples[any](i.capacity),
		predicted:     history.NewSamples[any](i.capacity),
	}
}

// Tracker holds the samples of one predicted component.
type Tracker struct {
	componentType entity.ComponentType
	entity        entity.Handle
	equal         func(server, predicted any) bool

	server    *history.Samples[any]
	predicted *history.Samples[any]
}

var _ replication.PredictionTracker = (*Tracker)(nil)

func (t *Tracker) RecordServer(tick replication.Tick, v any) { t.server.Put(tick, v) }

func (t *Tracker) RecordPredicted(tick replication.Tick, v any) { t.predicted.Put(tick, v) }

func (t *Tracker) ServerSample(tick replication.Tick) (any, bool) { return t.server.Get(tick) }

func (t *Tracker) PredictedSample(tick replication.Tick) (any, bool) { return t.predicted.Get(tick) }

func (t *Tracker) ServerIndex(tick replication.Tick) int { return t.server.Index().GetIndex(tick) }

// Verify compares the server sample stored in slot sampleIndex against the
// prediction recorded for tick.
func (t *Tracker) Verify(sampleIndex int, tick replication.Tick) (bool, error) {
	server, ok := t.server.At(sampleIndex)
	if !ok {
		return false, replication.ErrNoSample
	}
	predicted, ok := t.predicted.Get(tick)
	if !ok {
		return false, replication.ErrNoSample
	}
	return t.equal(server, predicted), nil
}

func (t *Tracker) ComponentType() entity.ComponentType { return t.componentType }

func (t *Tracker) Entity() entity.Handle { return t.entity }
