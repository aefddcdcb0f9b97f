package replication

import (
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

// Owner names the player that controls an entity. It replicates to every
// observer so each client can decide whether it predicts the entity.
type Owner struct {
	Player PlayerID
}

var (
	// OwnerKey is the component key of Owner.
	OwnerKey = entity.NewKey[Owner]("replication.owner")
	// PredictedFlagKey marks entities and sub-entities simulated locally.
	PredictedFlagKey = entity.NewKey[bool]("replication.predicted")
)

func (o Owner) Encode(w codec.Writer, _ SerializeContext) {
	w.WriteInt32("player", int32(o.Player))
}

func (Owner) Decode(r codec.Reader, _ SerializeContext) Owner {
	return Owner{Player: PlayerID(r.ReadInt32("player"))}
}

// RegisterBuiltins registers the components the collection itself relies on.
func RegisterBuiltins(r *Registry) error {
	return RegisterReplicated(r, OwnerKey)
}

// SetLocalPlayer selects the player whose entities this process predicts.
func (c *Collection) SetLocalPlayer(p PlayerID) {
	if c.hasLocal && c.localPlayer == p {
		return
	}
	c.localPlayer = p
	c.hasLocal = true
	c.ownershipDirty = true
	c.logger.Info("Local player set", log.Int32("player", int32(p)))
}

// ClearLocalPlayer makes every entity non-predicted.
func (c *Collection) ClearLocalPlayer() {
	if !c.hasLocal {
		return
	}
	c.hasLocal = false
	c.ownershipDirty = true
}

// LocalPlayer returns the current local player, if any.
func (c *Collection) LocalPlayer() (PlayerID, bool) {
	return c.localPlayer, c.hasLocal
}

// PropagateOwnership recomputes the predicted flag of every record and
// writes it onto each entity and its sub-entities.
func (c *Collection) PropagateOwnership() {
	for _, rec := range c.records {
		if rec != nil {
			c.propagate(rec)
		}
	}
	c.ownershipDirty = false
}

// IsPredicted reports whether the record for id is simulated locally.
func (c *Collection) IsPredicted(id NetworkID) bool {
	c.settleOwnership()
	rec := c.record(id)
	return rec != nil && rec.local
}

func (c *Collection) settleOwnership() {
	if c.ownershipDirty {
		c.PropagateOwnership()
	}
}

func (c *Collection) propagate(rec *Record) {
	owner, ok := entity.Get(c.store, rec.Entity, OwnerKey)
	local := c.isLocal(owner, ok)
	if local != rec.local {
		c.logger.Debug("Ownership changed",
			log.Int32("network_id", int32(rec.ID)),
			log.Bool("predicted", local),
		)
	}
	rec.local = local
	c.flag(rec.Entity, local)
}

// ownsUpdate decides the audience of an update being decoded. A staged
// owner from the replicated section wins over the one in the store.
func (c *Collection) ownsUpdate(rec *Record) bool {
	for _, a := range rec.Replicated {
		if a.Entity() != rec.Entity || a.ComponentType() != OwnerKey.Type {
			continue
		}
		if staged, ok := a.(*replicatedAdapter[Owner]); ok {
			if owner, ok := staged.staged(); ok {
				return c.isLocal(owner, true)
			}
		}
	}
	owner, ok := entity.Get(c.store, rec.Entity, OwnerKey)
	return c.isLocal(owner, ok)
}

func (c *Collection) isLocal(owner Owner, ok bool) bool {
	return c.hasLocal && ok && owner.Player == c.localPlayer
}

func (c *Collection) flag(h entity.Handle, predicted bool) {
	if !c.store.Exists(h) {
		return
	}
	entity.Set(c.store, h, PredictedFlagKey, predicted)
	for _, child := range c.store.Children(h) {
		c.flag(child, predicted)
	}
}
