package replication

import (
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
)

type predictedAdapter[T Predictable[T]] struct {
	key    entity.Key[T]
	entity entity.Handle

	server     T
	serverTick Tick
	hasServer  bool

	pending     T
	pendingTick Tick
	hasPending  bool

	tracker PredictionTracker
}

// NewPredictedAdapter binds a predicted component to an entity. A tracker is
// created when opts carries Instrumentation.
func NewPredictedAdapter[T Predictable[T]](key entity.Key[T], h entity.Handle, opts AdapterOptions) PredictedAdapter {
	a := &predictedAdapter[T]{key: key, entity: h}
	if opts.Instrumentation != nil {
		a.tracker = opts.Instrumentation.TrackPrediction(key.Type, h, verifyAny[T])
	}
	return a
}

func verifyAny[T Predictable[T]](server, predicted any) bool {
	s, ok := server.(T)
	if !ok {
		return false
	}
	p, ok := predicted.(T)
	if !ok {
		return false
	}
	return s.Verify(p)
}

func (a *predictedAdapter[T]) ComponentType() entity.ComponentType { return a.key.Type }

func (a *predictedAdapter[T]) Capability() Capability { return Predicted }

func (a *predictedAdapter[T]) Entity() entity.Handle { return a.entity }

func (a *predictedAdapter[T]) Serialize(w codec.Writer, ctx SerializeContext) {
	v, _ := entity.Get(ctx.Store, a.entity, a.key)
	v.Encode(w, ctx)
}

func (a *predictedAdapter[T]) Deserialize(r codec.Reader, ctx SerializeContext) {
	var zero T
	v := zero.Decode(r, ctx)
	if r.Err() != nil {
		return
	}
	a.pending, a.pendingTick, a.hasPending = v, ctx.Tick, true
}

// Commit stores the pending value as the authoritative server state
// without touching the live component.
func (a *predictedAdapter[T]) Commit(SerializeContext) {
	if !a.hasPending {
		return
	}
	a.server, a.serverTick, a.hasServer = a.pending, a.pendingTick, true
	if a.tracker != nil {
		a.tracker.RecordServer(a.pendingTick, a.pending)
	}
	a.Discard()
}

func (a *predictedAdapter[T]) Discard() {
	var zero T
	a.pending, a.pendingTick, a.hasPending = zero, 0, false
}

func (a *predictedAdapter[T]) Rollback(ctx SerializeContext) {
	if !a.hasServer {
		return
	}
	entity.Set(ctx.Store, a.entity, a.key, a.server)
}

func (a *predictedAdapter[T]) LastServerTick() (Tick, bool) {
	return a.serverTick, a.hasServer
}

func (a *predictedAdapter[T]) StorePrediction(ctx SerializeContext) {
	if a.tracker == nil {
		return
	}
	v, ok := entity.Get(ctx.Store, a.entity, a.key)
	if !ok {
		return
	}
	a.tracker.RecordPredicted(ctx.Tick, v)
}

func (a *predictedAdapter[T]) VerifyPrediction(sampleIndex int, tick Tick) (bool, error) {
	if a.tracker == nil {
		return false, ErrNoInstrumentation
	}
	return a.tracker.Verify(sampleIndex, tick)
}

func (a *predictedAdapter[T]) Tracker() PredictionTracker { return a.tracker }
