package replication

import (
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
)

type replicatedAdapter[T Payload[T]] struct {
	key    entity.Key[T]
	entity entity.Handle

	pending    T
	hasPending bool
}

// NewReplicatedAdapter binds a replicated component to an entity.
func NewReplicatedAdapter[T Payload[T]](key entity.Key[T], h entity.Handle) ReplicatedAdapter {
	return &replicatedAdapter[T]{key: key, entity: h}
}

func (a *replicatedAdapter[T]) ComponentType() entity.ComponentType { return a.key.Type }

func (a *replicatedAdapter[T]) Capability() Capability { return Replicated }

func (a *replicatedAdapter[T]) Entity() entity.Handle { return a.entity }

func (a *replicatedAdapter[T]) Serialize(w codec.Writer, ctx SerializeContext) {
	v, _ := entity.Get(ctx.Store, a.entity, a.key)
	v.Encode(w, ctx)
}

func (a *replicatedAdapter[T]) Deserialize(r codec.Reader, ctx SerializeContext) {
	var zero T
	v := zero.Decode(r, ctx)
	if r.Err() != nil {
		return
	}
	a.pending, a.hasPending = v, true
}

// Commit writes the pending value straight into the store.
func (a *replicatedAdapter[T]) Commit(ctx SerializeContext) {
	if !a.hasPending {
		return
	}
	entity.Set(ctx.Store, a.entity, a.key, a.pending)
	a.Discard()
}

func (a *replicatedAdapter[T]) Discard() {
	var zero T
	a.pending, a.hasPending = zero, false
}

// staged returns the value decoded but not yet committed.
func (a *replicatedAdapter[T]) staged() (T, bool) { return a.pending, a.hasPending }
