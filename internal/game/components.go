// Package game holds the demo components replicated by the server and client
// binaries and the static table that registers them.
package game

import (
	"math"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/replication"
)

var (
	HealthKey    = entity.NewKey[Health]("game.health")
	AmmoKey      = entity.NewKey[Ammo]("game.ammo")
	MovementKey  = entity.NewKey[Movement]("game.movement")
	TransformKey = entity.NewKey[Transform]("game.transform")
	TargetKey    = entity.NewKey[Target]("game.target")
	NameKey      = entity.NewKey[Name]("game.name")
)

// Health is predicted by the owning client.
type Health struct {
	Current int32
	Max     int32
}

func (h Health) Encode(w codec.Writer, _ replication.SerializeContext) {
	w.WriteInt32("current", h.Current)
	w.WriteInt32("max", h.Max)
}

func (Health) Decode(r codec.Reader, _ replication.SerializeContext) Health {
	return Health{Current: r.ReadInt32("current"), Max: r.ReadInt32("max")}
}

func (h Health) Verify(predicted Health) bool { return h == predicted }

// Damage returns h reduced by n, floored at zero.
func (h Health) Damage(n int32) Health {
	h.Current -= n
	if h.Current < 0 {
		h.Current = 0
	}
	return h
}

func (h Health) Alive() bool { return h.Current > 0 }

// Ammo lives on the weapon sub-entity and is predicted with it.
type Ammo struct {
	Rounds uint16
}

func (a Ammo) Encode(w codec.Writer, _ replication.SerializeContext) {
	w.WriteUint16("rounds", a.Rounds)
}

func (Ammo) Decode(r codec.Reader, _ replication.SerializeContext) Ammo {
	return Ammo{Rounds: r.ReadUint16("rounds")}
}

func (a Ammo) Verify(predicted Ammo) bool { return a == predicted }

// movementTolerance absorbs float drift between server and client
// integration of the same inputs.
const movementTolerance = 1e-3

// Movement is the locomotion state the owning client predicts and rolls
// back. Apply integrates it and derives Transform from it.
type Movement struct {
	X, Y    float32
	Heading float32 // radians
}

func (m Movement) Encode(w codec.Writer, _ replication.SerializeContext) {
	w.WriteFloat32("x", m.X)
	w.WriteFloat32("y", m.Y)
	w.WriteFloat32("heading", m.Heading)
}

func (Movement) Decode(r codec.Reader, _ replication.SerializeContext) Movement {
	return Movement{
		X:       r.ReadFloat32("x"),
		Y:       r.ReadFloat32("y"),
		Heading: r.ReadFloat32("heading"),
	}
}

func (m Movement) Verify(predicted Movement) bool {
	return near(m.X, predicted.X) && near(m.Y, predicted.Y) && near(m.Heading, predicted.Heading)
}

// Transform is the render pose observers interpolate towards.
func (m Movement) Transform() Transform {
	return Transform{X: m.X, Y: m.Y, Rotation: m.Heading}
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) <= movementTolerance
}

// Transform is interpolated on observers. The owner derives it from
// Movement instead.
type Transform struct {
	X, Y     float32
	Rotation float32 // radians
}

func (t Transform) Encode(w codec.Writer, _ replication.SerializeContext) {
	w.WriteFloat32("x", t.X)
	w.WriteFloat32("y", t.Y)
	w.WriteFloat32("rotation", t.Rotation)
}

func (Transform) Decode(r codec.Reader, _ replication.SerializeContext) Transform {
	return Transform{
		X:        r.ReadFloat32("x"),
		Y:        r.ReadFloat32("y"),
		Rotation: r.ReadFloat32("rotation"),
	}
}

// Interpolate lerps position and turns rotation along the shorter arc.
func (t Transform) Interpolate(to Transform, f float32) Transform {
	delta := math.Remainder(float64(to.Rotation-t.Rotation), 2*math.Pi)
	return Transform{
		X:        t.X + (to.X-t.X)*f,
		Y:        t.Y + (to.Y-t.Y)*f,
		Rotation: t.Rotation + float32(delta)*f,
	}
}

// Target references another replicated entity.
type Target struct {
	Entity entity.Handle
}

func (t Target) Encode(w codec.Writer, ctx replication.SerializeContext) {
	ctx.Resolver.SerializeReference(w, "entity", t.Entity)
}

func (Target) Decode(r codec.Reader, ctx replication.SerializeContext) Target {
	return Target{Entity: ctx.Resolver.DeserializeReference(r, "entity")}
}

// Name is a display label.
type Name struct {
	Value string
}

func (n Name) Encode(w codec.Writer, _ replication.SerializeContext) {
	w.WriteString("value", n.Value)
}

func (Name) Decode(r codec.Reader, _ replication.SerializeContext) Name {
	return Name{Value: r.ReadString("value")}
}
