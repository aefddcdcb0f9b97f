package game

import (
	"math"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/replication"
)

const (
	MoveSpeed    = 4.0 // units per second
	ShotDamage   = 10
	WanderRadius = 8.0
)

// Input is one tick of player intent.
type Input struct {
	MoveX, MoveY float32
	Fire         bool
}

func (in Input) Encode(w codec.Writer) {
	w.WriteFloat32("move_x", in.MoveX)
	w.WriteFloat32("move_y", in.MoveY)
	w.WriteBool("fire", in.Fire)
}

func DecodeInput(r codec.Reader) Input {
	return Input{
		MoveX: r.ReadFloat32("move_x"),
		MoveY: r.ReadFloat32("move_y"),
		Fire:  r.ReadBool("fire"),
	}
}

// Apply advances a player by one tick of input. The same function runs on
// the server and, for prediction, on the owning client. Transform always
// ends up matching Movement, so a rolled back Movement is rendered again.
func Apply(s entity.Store, h entity.Handle, in Input, dt float32) {
	if hp, ok := entity.Get(s, h, HealthKey); ok && !hp.Alive() {
		SyncTransform(s, h)
		return
	}

	if mv, ok := entity.Get(s, h, MovementKey); ok && (in.MoveX != 0 || in.MoveY != 0) {
		mv.X += in.MoveX * MoveSpeed * dt
		mv.Y += in.MoveY * MoveSpeed * dt
		mv.Heading = float32(math.Atan2(float64(in.MoveY), float64(in.MoveX)))
		entity.Set(s, h, MovementKey, mv)
	}
	SyncTransform(s, h)

	if in.Fire {
		fire(s, h)
	}
}

// SyncTransform copies Movement onto Transform. Entities without Movement
// are left alone.
func SyncTransform(s entity.Store, h entity.Handle) {
	if mv, ok := entity.Get(s, h, MovementKey); ok {
		entity.Set(s, h, TransformKey, mv.Transform())
	}
}

func fire(s entity.Store, h entity.Handle) {
	weapon, ok := Weapon(s, h)
	if !ok {
		return
	}
	ammo, _ := entity.Get(s, weapon, AmmoKey)
	if ammo.Rounds == 0 {
		return
	}
	ammo.Rounds--
	entity.Set(s, weapon, AmmoKey, ammo)

	target, ok := entity.Get(s, h, TargetKey)
	if !ok || target.Entity.IsNil() || !s.Exists(target.Entity) {
		return
	}
	if hp, ok := entity.Get(s, target.Entity, HealthKey); ok {
		entity.Set(s, target.Entity, HealthKey, hp.Damage(ShotDamage))
	}
}

// Weapon returns the first sub-entity of h carrying ammo.
func Weapon(s entity.Store, h entity.Handle) (entity.Handle, bool) {
	for _, child := range s.Children(h) {
		if entity.Has(s, child, AmmoKey) {
			return child, true
		}
	}
	return entity.Nil, false
}

// Wander moves an NPC along a circle around the origin.
func Wander(s entity.Store, h entity.Handle, tick replication.Tick) {
	tr, ok := entity.Get(s, h, TransformKey)
	if !ok {
		return
	}
	angle := float64(tick)*0.05 + float64(h)
	tr.X = float32(WanderRadius * math.Cos(angle))
	tr.Y = float32(WanderRadius * math.Sin(angle))
	tr.Rotation = float32(angle + math.Pi/2)
	entity.Set(s, h, TransformKey, tr)
}
