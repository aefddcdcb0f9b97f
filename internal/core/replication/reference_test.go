package replication

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
)

// spawnTargeting creates an entity with Owner and target components.
func spawnTargeting(t *testing.T, s *side, ref entity.Handle) entity.Handle {
	t.Helper()
	h := s.store.Create()
	entity.Set(s.store, h, OwnerKey, Owner{Player: NoPlayer})
	entity.Set(s.store, h, targetKey, target{Ref: ref})
	return h
}

func TestReferences_DeferredResolution(t *testing.T) {
	reg := newTestRegistry(t)

	server := newSide(t, reg)
	sb := spawnTargeting(t, server, entity.Nil)
	sa := spawnTargeting(t, server, sb)
	require.NoError(t, server.coll.Register(sa, 0))
	require.NoError(t, server.coll.Register(sb, 1))

	t.Run("referrer first", func(t *testing.T) {
		client := newSide(t, reg)
		ca := spawnTargeting(t, client, entity.Nil)
		require.NoError(t, client.coll.Register(ca, 0))

		send(t, server, client, 0, 1, false)
		require.True(t, get(t, client, ca, targetKey).Ref.IsNil())

		client.store.Create()
		cb := spawnTargeting(t, client, entity.Nil)
		require.NoError(t, client.coll.Register(cb, 1))

		send(t, server, client, 0, 2, false)
		require.Equal(t, cb, get(t, client, ca, targetKey).Ref)
	})

	t.Run("referent first", func(t *testing.T) {
		client := newSide(t, reg)
		cb := spawnTargeting(t, client, entity.Nil)
		require.NoError(t, client.coll.Register(cb, 1))
		ca := spawnTargeting(t, client, entity.Nil)
		require.NoError(t, client.coll.Register(ca, 0))

		send(t, server, client, 0, 1, false)
		require.Equal(t, cb, get(t, client, ca, targetKey).Ref)
	})
}

func TestReferences_Serialize(t *testing.T) {
	reg := newTestRegistry(t)
	s := newSide(t, reg)
	registered := s.store.Create()
	require.NoError(t, s.coll.Register(registered, 3))
	data := s.store.Create()
	require.NoError(t, s.coll.RegisterDataOnly(data, 4))
	unknown := s.store.Create()

	refs := s.coll.References()
	w := codec.NewWriter(codec.Audience{})
	refs.SerializeReference(w, "a", registered)
	refs.SerializeReference(w, "b", data)
	refs.SerializeReference(w, "c", unknown)
	refs.SerializeReference(w, "d", entity.Nil)
	refs.SerializeReference(w, "e", entity.Handle(999))
	require.NoError(t, w.Err())

	r := codec.NewReader(w.Bytes(), codec.Audience{})
	require.Equal(t, int32(3), r.ReadInt32("a"))
	require.Equal(t, int32(4), r.ReadInt32("b"))
	for _, field := range []string{"c", "d", "e"} {
		require.Equal(t, int32(InvalidNetworkID), r.ReadInt32(field), field)
	}

	r = codec.NewReader(w.Bytes(), codec.Audience{})
	require.Equal(t, registered, refs.DeserializeReference(r, "a"))
	require.Equal(t, data, refs.DeserializeReference(r, "b"))
	require.True(t, refs.DeserializeReference(r, "c").IsNil())
}

func TestReferences_DataOnlyRegistration(t *testing.T) {
	reg := newTestRegistry(t)
	s := newSide(t, reg)
	h := s.store.Create()

	require.NoError(t, s.coll.RegisterDataOnly(h, 2))
	require.ErrorIs(t, s.coll.RegisterDataOnly(h, 2), ErrAlreadyRegistered)
	require.ErrorIs(t, s.coll.RegisterDataOnly(h, -3), ErrInvalidNetworkID)
	require.Zero(t, s.coll.Len())

	id, ok := s.coll.NetworkIDOf(h)
	require.True(t, ok)
	require.Equal(t, NetworkID(2), id)

	got, err := s.coll.UnregisterDataOnly(2)
	require.NoError(t, err)
	require.Equal(t, h, got)
	_, ok = s.coll.EntityOf(2)
	require.False(t, ok)

	_, err = s.coll.UnregisterDataOnly(2)
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestReferences_NetworkIDsAreExclusive(t *testing.T) {
	reg := newTestRegistry(t)
	s := newSide(t, reg)
	data := s.store.Create()
	full := s.spawn(t, 1, NoPlayer, 1, position{})

	require.NoError(t, s.coll.RegisterDataOnly(data, 0))

	// a full registration cannot take an id or an entity held data-only
	other := s.store.Create()
	entity.Set(s.store, other, labelKey, label{})
	require.ErrorIs(t, s.coll.Register(other, 0), ErrAlreadyRegistered)
	require.ErrorIs(t, s.coll.Register(data, 5), ErrAlreadyRegistered)
	require.Nil(t, s.coll.Record(0))

	// and a fully registered entity cannot be registered data-only again
	require.ErrorIs(t, s.coll.RegisterDataOnly(full, 3), ErrAlreadyRegistered)

	id, ok := s.coll.NetworkIDOf(other)
	require.False(t, ok, "got id %d", id)
	h, ok := s.coll.EntityOf(0)
	require.True(t, ok)
	require.Equal(t, data, h)

	_, err := s.coll.UnregisterDataOnly(0)
	require.NoError(t, err)
	require.NoError(t, s.coll.Register(other, 0))
}
