package game

import (
	"errors"

	"github.com/zeusync/replica/internal/core/prefab"
	"github.com/zeusync/replica/internal/core/replication"
)

const (
	PlayerPrefab prefab.TypeID = iota + 1
	NPCPrefab
)

const (
	PlayerMaxHealth = 100
	NPCMaxHealth    = 60
	WeaponRounds    = 30
)

// Register installs adapter factories for every replicated game component.
func Register(reg *replication.Registry) error {
	return errors.Join(
		replication.RegisterBuiltins(reg),
		replication.RegisterPredicted(reg, HealthKey),
		replication.RegisterPredicted(reg, AmmoKey),
		replication.RegisterPredicted(reg, MovementKey),
		replication.RegisterInterpolated(reg, TransformKey),
		replication.RegisterReplicated(reg, TargetKey),
		replication.RegisterReplicated(reg, NameKey),
	)
}

// RegisterPrefabs installs the player and npc templates. Players carry
// predicted Movement next to the interpolated Transform, and a weapon
// sub-entity whose ammo is predicted along with its parent.
func RegisterPrefabs(p *prefab.Registry) error {
	return errors.Join(
		p.Register(PlayerPrefab, prefab.Template{
			Name: "player",
			Components: []prefab.Component{
				prefab.With(replication.OwnerKey, replication.Owner{Player: replication.NoPlayer}),
				prefab.With(NameKey, Name{Value: "player"}),
				prefab.With(HealthKey, Health{Current: PlayerMaxHealth, Max: PlayerMaxHealth}),
				prefab.With(MovementKey, Movement{}),
				prefab.With(TransformKey, Transform{}),
				prefab.With(TargetKey, Target{}),
			},
			Children: []prefab.Template{{
				Name: "weapon",
				Components: []prefab.Component{
					prefab.With(NameKey, Name{Value: "rifle"}),
					prefab.With(AmmoKey, Ammo{Rounds: WeaponRounds}),
				},
			}},
		}),
		p.Register(NPCPrefab, prefab.Template{
			Name: "npc",
			Components: []prefab.Component{
				prefab.With(replication.OwnerKey, replication.Owner{Player: replication.NoPlayer}),
				prefab.With(NameKey, Name{Value: "npc"}),
				prefab.With(HealthKey, Health{Current: NPCMaxHealth, Max: NPCMaxHealth}),
				prefab.With(TransformKey, Transform{}),
			},
		}),
	)
}
