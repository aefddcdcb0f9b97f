// Package replication serializes per-tick entity state to and from the wire.
//
// Every replicated component declares one Capability. Replicated components
// are written straight into the store on receipt. Predicted components are
// held aside until Rollback copies the authoritative value over the local
// simulation. Interpolated components are buffered and blended at render time.
// A Collection owns one Record per NetworkID and drives all three each tick.
package replication

import (
	"fmt"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/history"
)

// Tick is the simulation step index used throughout replication.
type Tick = history.Tick

// NetworkID identifies a replicated entity across the wire. IDs are assigned
// by the server and reused after despawn.
type NetworkID int32

// InvalidNetworkID is written in place of a missing entity reference.
const InvalidNetworkID NetworkID = -1

func (id NetworkID) Valid() bool { return id >= 0 }

// PlayerID identifies a connected player. Predicting ownership is decided by
// comparing it against the local player.
type PlayerID int32

// NoPlayer is the owner of entities no client controls.
const NoPlayer PlayerID = -1

// Capability is the fixed replication strategy of a component type.
type Capability uint8

const (
	// Replicated components are visible to everyone and applied on receipt.
	Replicated Capability = iota + 1
	// Predicted components are visible only to the predicting client and
	// restored through Rollback.
	Predicted
	// Interpolated components are visible only to observers and blended
	// between buffered samples.
	Interpolated
)

func (c Capability) String() string {
	switch c {
	case Replicated:
		return "replicated"
	case Predicted:
		return "predicted"
	case Interpolated:
		return "interpolated"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Visibility is the wire section a capability's fields travel in.
func (c Capability) Visibility() codec.Visibility {
	switch c {
	case Predicted:
		return codec.OnlyPredicting
	case Interpolated:
		return codec.OnlyNonPredicting
	default:
		return codec.Always
	}
}

// RenderTime is a point between simulation ticks.
type RenderTime struct {
	Tick     Tick
	Fraction float32
}

// RenderTimeAt splits a fractional tick count into a RenderTime.
func RenderTimeAt(t float64) RenderTime {
	if t < 0 {
		return RenderTime{}
	}
	whole := Tick(t)
	return RenderTime{Tick: whole, Fraction: float32(t - float64(whole))}
}

func (rt RenderTime) Float() float64 {
	return float64(rt.Tick) + float64(rt.Fraction)
}

// ReferenceResolver converts entity handles to network ids at the wire boundary.
type ReferenceResolver interface {
	SerializeReference(w codec.Writer, field string, h entity.Handle)
	DeserializeReference(r codec.Reader, field string) entity.Handle
}

// SerializeContext carries routing information into every adapter call.
type SerializeContext struct {
	Store    entity.Store
	Entity   entity.Handle
	Resolver ReferenceResolver
	Tick     Tick
}
