package replication

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

type health struct{ HP int32 }

func (h health) Encode(w codec.Writer, _ SerializeContext) { w.WriteInt32("hp", h.HP) }

func (health) Decode(r codec.Reader, _ SerializeContext) health {
	return health{HP: r.ReadInt32("hp")}
}

func (h health) Verify(predicted health) bool { return h.HP == predicted.HP }

type position struct{ X, Y float32 }

func (p position) Encode(w codec.Writer, _ SerializeContext) {
	w.WriteFloat32("x", p.X)
	w.WriteFloat32("y", p.Y)
}

func (position) Decode(r codec.Reader, _ SerializeContext) position {
	return position{X: r.ReadFloat32("x"), Y: r.ReadFloat32("y")}
}

func (p position) Interpolate(to position, t float32) position {
	return position{X: p.X + (to.X-p.X)*t, Y: p.Y + (to.Y-p.Y)*t}
}

type label struct{ Text string }

func (l label) Encode(w codec.Writer, _ SerializeContext) { w.WriteString("text", l.Text) }

func (label) Decode(r codec.Reader, _ SerializeContext) label {
	return label{Text: r.ReadString("text")}
}

type target struct{ Ref entity.Handle }

func (t target) Encode(w codec.Writer, ctx SerializeContext) {
	ctx.Resolver.SerializeReference(w, "ref", t.Ref)
}

func (target) Decode(r codec.Reader, ctx SerializeContext) target {
	return target{Ref: ctx.Resolver.DeserializeReference(r, "ref")}
}

var (
	healthKey   = entity.NewKey[health]("test.health")
	positionKey = entity.NewKey[position]("test.position")
	labelKey    = entity.NewKey[label]("test.label")
	targetKey   = entity.NewKey[target]("test.target")
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry(log.NewNop())
	require.NoError(t, RegisterBuiltins(reg))
	require.NoError(t, RegisterReplicated(reg, labelKey))
	require.NoError(t, RegisterReplicated(reg, targetKey))
	require.NoError(t, RegisterPredicted(reg, healthKey))
	require.NoError(t, RegisterInterpolated(reg, positionKey))
	return reg
}

type side struct {
	store *entity.MemoryStore
	coll  *Collection
}

func newSide(t *testing.T, reg *Registry, opts ...Option) *side {
	t.Helper()
	store := entity.NewMemoryStore()
	opts = append([]Option{WithLogger(log.NewNop())}, opts...)
	return &side{store: store, coll: NewCollection(store, reg, opts...)}
}

// spawn creates an entity carrying every test component in a fixed order
// and registers it under id.
func (s *side) spawn(t *testing.T, id NetworkID, owner PlayerID, hp int32, pos position) entity.Handle {
	t.Helper()
	h := s.store.Create()
	entity.Set(s.store, h, OwnerKey, Owner{Player: owner})
	entity.Set(s.store, h, labelKey, label{})
	entity.Set(s.store, h, healthKey, health{HP: hp})
	entity.Set(s.store, h, positionKey, pos)
	require.NoError(t, s.coll.Register(h, id))
	return h
}

// send generates a snapshot of id on from for the given audience and
// applies it on to at tick. The whole stream must be consumed.
func send(t *testing.T, from, to *side, id NetworkID, tick Tick, predicting bool) {
	t.Helper()
	w := codec.NewWriter(codec.Audience{Predicting: predicting})
	require.NoError(t, from.coll.GenerateSnapshot(id, w))

	r := codec.NewReader(w.Bytes(), codec.Audience{})
	require.NoError(t, to.coll.ApplyUpdate(tick, id, r))
	require.Zero(t, r.Remaining())
}

func get[T any](t *testing.T, s *side, h entity.Handle, key entity.Key[T]) T {
	t.Helper()
	v, ok := entity.Get(s.store, h, key)
	require.True(t, ok, "component %s missing on %s", key.Name, h)
	return v
}
