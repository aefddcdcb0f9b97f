package replication

import (
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/history"
)

type interpolatedAdapter[T Interpolatable[T]] struct {
	key     entity.Key[T]
	entity  entity.Handle
	samples *history.Ring[T]

	pending     T
	pendingTick Tick
	hasPending  bool
}

// NewInterpolatedAdapter binds an interpolated component to an entity with a
// ring of opts.InterpolationCapacity samples.
func NewInterpolatedAdapter[T Interpolatable[T]](key entity.Key[T], h entity.Handle, opts AdapterOptions) InterpolatedAdapter {
	return &interpolatedAdapter[T]{
		key:     key,
		entity:  h,
		samples: history.NewRing[T](opts.InterpolationCapacity),
	}
}

func (a *interpolatedAdapter[T]) ComponentType() entity.ComponentType { return a.key.Type }

func (a *interpolatedAdapter[T]) Capability() Capability { return Interpolated }

func (a *interpolatedAdapter[T]) Entity() entity.Handle { return a.entity }

func (a *interpolatedAdapter[T]) Serialize(w codec.Writer, ctx SerializeContext) {
	v, _ := entity.Get(ctx.Store, a.entity, a.key)
	v.Encode(w, ctx)
}

func (a *interpolatedAdapter[T]) Deserialize(r codec.Reader, ctx SerializeContext) {
	var zero T
	v := zero.Decode(r, ctx)
	if r.Err() != nil {
		return
	}
	a.pending, a.pendingTick, a.hasPending = v, ctx.Tick, true
}

// Commit pushes the pending sample into the ring; the store is only written
// by Interpolate.
func (a *interpolatedAdapter[T]) Commit(SerializeContext) {
	if !a.hasPending {
		return
	}
	a.samples.Add(a.pendingTick, a.pending)
	a.Discard()
}

func (a *interpolatedAdapter[T]) Discard() {
	var zero T
	a.pending, a.pendingTick, a.hasPending = zero, 0, false
}

// Interpolate writes the value at the given render time. Outside the
// buffered range the nearest sample is used; an empty buffer writes the
// zero value.
func (a *interpolatedAdapter[T]) Interpolate(ctx SerializeContext, at RenderTime) {
	entity.Set(ctx.Store, a.entity, a.key, a.valueAt(at))
}

func (a *interpolatedAdapter[T]) valueAt(at RenderTime) T {
	oldest, ok := a.samples.Oldest()
	if !ok {
		var zero T
		return zero
	}
	if low, high, factor, ok := a.samples.GetStates(at.Tick, at.Fraction); ok {
		return a.samples.At(low).Value.Interpolate(a.samples.At(high).Value, factor)
	}
	if at.Float() <= float64(oldest.Tick) {
		return oldest.Value
	}
	newest, _ := a.samples.Newest()
	return newest.Value
}

func (a *interpolatedAdapter[T]) Buffered() int { return a.samples.Len() }
