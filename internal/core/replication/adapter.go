package replication

import (
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
)

// Payload is implemented by component value types. Decode is called on the
// zero value and returns the decoded component.
type Payload[T any] interface {
	Encode(w codec.Writer, ctx SerializeContext)
	Decode(r codec.Reader, ctx SerializeContext) T
}

// Predictable payloads can compare a local prediction with an authoritative
// sample using their own tolerance.
type Predictable[T any] interface {
	Payload[T]
	Verify(predicted T) bool
}

// Interpolatable payloads can blend towards another sample. t is in [0, 1].
type Interpolatable[T any] interface {
	Payload[T]
	Interpolate(to T, t float32) T
}

// Adapter is the type-erased view of one replicated component on one entity.
type Adapter interface {
	ComponentType() entity.ComponentType
	Capability() Capability
	// Entity is the handle the adapter reads and writes, which may be a
	// child of the registered entity.
	Entity() entity.Handle

	Serialize(w codec.Writer, ctx SerializeContext)
	// Deserialize decodes one sample into a pending slot; ctx.Tick is the
	// server tick. Nothing is applied before Commit.
	Deserialize(r codec.Reader, ctx SerializeContext)
	// Commit applies the pending sample. It is a no-op when none is pending.
	Commit(ctx SerializeContext)
	// Discard drops the pending sample.
	Discard()
}

// ReplicatedAdapter applies received state immediately.
type ReplicatedAdapter interface {
	Adapter
}

// PredictedAdapter holds the last server state until Rollback.
type PredictedAdapter interface {
	Adapter

	// Rollback overwrites the live component with the last server state.
	Rollback(ctx SerializeContext)
	// LastServerTick is the tick of the held server state, ok is false
	// until one has been received.
	LastServerTick() (Tick, bool)

	// StorePrediction records the live value as the prediction for ctx.Tick.
	StorePrediction(ctx SerializeContext)
	// VerifyPrediction compares the server sample in sampleIndex with the
	// prediction stored for tick.
	VerifyPrediction(sampleIndex int, tick Tick) (bool, error)
	// Tracker exposes recorded history, nil without instrumentation.
	Tracker() PredictionTracker
}

// InterpolatedAdapter buffers samples and writes blended values.
type InterpolatedAdapter interface {
	Adapter

	Interpolate(ctx SerializeContext, at RenderTime)
	// Buffered returns the number of samples currently held.
	Buffered() int
}

// AdapterOptions are handed to every factory call.
type AdapterOptions struct {
	InterpolationCapacity int
	Instrumentation       Instrumentation
}

// Factory constructs an adapter bound to an entity.
type Factory func(h entity.Handle, opts AdapterOptions) Adapter
