package replication

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
)

func TestCollection_ObserverRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	server, client := newSide(t, reg), newSide(t, reg)
	client.coll.SetLocalPlayer(2)

	sh := server.spawn(t, 0, 1, 80, position{X: 10})
	entity.Set(server.store, sh, labelKey, label{Text: "orc"})

	// offset handles so both sides disagree on raw values
	client.store.Create()
	ch := client.spawn(t, 0, NoPlayer, 100, position{})
	require.NotEqual(t, sh, ch)

	send(t, server, client, 0, 100, false)

	require.Equal(t, "orc", get(t, client, ch, labelKey).Text)
	require.Equal(t, Owner{Player: 1}, get(t, client, ch, OwnerKey))
	require.False(t, client.coll.IsPredicted(0))

	// predicted state never reaches an observer
	require.Equal(t, int32(100), get(t, client, ch, healthKey).HP)
	_, ok := client.coll.Record(0).Predicted[0].LastServerTick()
	require.False(t, ok)

	require.Equal(t, 1, client.coll.Record(0).Interpolated[0].Buffered())
	client.coll.Interpolate(RenderTime{Tick: 100})
	require.Equal(t, position{X: 10}, get(t, client, ch, positionKey))

	last, ok := client.coll.LastAppliedTick(0)
	require.True(t, ok)
	require.Equal(t, Tick(100), last)
}

func TestCollection_PredictingRoundTripAndRollback(t *testing.T) {
	reg := newTestRegistry(t)
	server, client := newSide(t, reg), newSide(t, reg)
	client.coll.SetLocalPlayer(1)

	server.spawn(t, 0, 1, 80, position{X: 10})
	ch := client.spawn(t, 0, NoPlayer, 100, position{X: 1, Y: 1})

	send(t, server, client, 0, 100, true)
	require.True(t, client.coll.IsPredicted(0))

	// receipt does not touch the live simulation
	require.Equal(t, int32(100), get(t, client, ch, healthKey).HP)

	entity.Set(client.store, ch, healthKey, health{HP: 65})
	require.Equal(t, int32(65), get(t, client, ch, healthKey).HP)

	client.coll.Rollback()
	require.Equal(t, int32(80), get(t, client, ch, healthKey).HP)

	tick, ok := client.coll.Record(0).Predicted[0].LastServerTick()
	require.True(t, ok)
	require.Equal(t, Tick(100), tick)

	// interpolated data is absent for the predicting client and its live
	// value is left alone
	require.Zero(t, client.coll.Record(0).Interpolated[0].Buffered())
	client.coll.Interpolate(RenderTime{Tick: 100})
	require.Equal(t, position{X: 1, Y: 1}, get(t, client, ch, positionKey))
}

func TestCollection_RollbackWithoutServerState(t *testing.T) {
	reg := newTestRegistry(t)
	client := newSide(t, reg)
	client.coll.SetLocalPlayer(1)
	h := client.spawn(t, 0, 1, 42, position{})

	client.coll.Rollback()
	require.Equal(t, int32(42), get(t, client, h, healthKey).HP)
}

func TestCollection_TickOrdering(t *testing.T) {
	reg := newTestRegistry(t)
	server, client := newSide(t, reg), newSide(t, reg)
	server.spawn(t, 0, 1, 80, position{})
	client.spawn(t, 0, NoPlayer, 0, position{})

	// the first tick of a record is unconstrained
	send(t, server, client, 0, 5, false)
	send(t, server, client, 0, 6, false)

	apply := func(tick Tick) func() {
		return func() {
			w := codec.NewWriter(codec.Audience{})
			_ = server.coll.GenerateSnapshot(0, w)
			_ = client.coll.ApplyUpdate(tick, 0, codec.NewReader(w.Bytes(), codec.Audience{}))
		}
	}

	dup := &TickOrderError{ID: 0, Tick: 6, LastApplied: 6}
	require.PanicsWithError(t, dup.Error(), apply(6))
	stale := &TickOrderError{ID: 0, Tick: 4, LastApplied: 6}
	require.PanicsWithError(t, stale.Error(), apply(4))
	require.NotPanics(t, apply(7))
}

func TestCollection_ApplyUpdateErrors(t *testing.T) {
	reg := newTestRegistry(t)
	server, client := newSide(t, reg), newSide(t, reg)
	server.spawn(t, 0, 1, 80, position{})
	client.spawn(t, 0, NoPlayer, 0, position{})

	err := client.coll.ApplyUpdate(1, 9, codec.NewReader(nil, codec.Audience{}))
	require.ErrorIs(t, err, ErrNotRegistered)

	w := codec.NewWriter(codec.Audience{})
	require.NoError(t, server.coll.GenerateSnapshot(0, w))
	truncated := w.Bytes()[:w.Len()-1]

	err = client.coll.ApplyUpdate(3, 0, codec.NewReader(truncated, codec.Audience{}))
	require.ErrorIs(t, err, codec.ErrShortBuffer)
	_, applied := client.coll.LastAppliedTick(0)
	require.False(t, applied)

	require.ErrorIs(t, server.coll.GenerateSnapshot(7, codec.NewWriter(codec.Audience{})), ErrNotRegistered)
}

func TestCollection_RejectedUpdateLeavesNoTrace(t *testing.T) {
	reg := newTestRegistry(t)
	server, client := newSide(t, reg), newSide(t, reg)
	client.coll.SetLocalPlayer(2)

	sh := server.spawn(t, 0, 1, 80, position{X: 10})
	ch := client.spawn(t, 0, NoPlayer, 100, position{})
	send(t, server, client, 0, 1, false)

	truncated := func(predicting bool) []byte {
		w := codec.NewWriter(codec.Audience{Predicting: predicting})
		require.NoError(t, server.coll.GenerateSnapshot(0, w))
		return w.Bytes()[:w.Len()-1]
	}

	// observer update cut short inside the interpolated section
	entity.Set(server.store, sh, labelKey, label{Text: "orc"})
	entity.Set(server.store, sh, positionKey, position{X: 20})
	err := client.coll.ApplyUpdate(2, 0, codec.NewReader(truncated(false), codec.Audience{}))
	require.ErrorIs(t, err, codec.ErrShortBuffer)
	require.Empty(t, get(t, client, ch, labelKey).Text)
	require.Equal(t, 1, client.coll.Record(0).Interpolated[0].Buffered())

	// retrying the same tick adds exactly one sample
	send(t, server, client, 0, 2, false)
	require.Equal(t, "orc", get(t, client, ch, labelKey).Text)
	require.Equal(t, 2, client.coll.Record(0).Interpolated[0].Buffered())

	// handover to the local player cut short inside the predicted section
	entity.Set(server.store, sh, OwnerKey, Owner{Player: 2})
	err = client.coll.ApplyUpdate(3, 0, codec.NewReader(truncated(true), codec.Audience{}))
	require.ErrorIs(t, err, codec.ErrShortBuffer)
	require.Equal(t, Owner{Player: 1}, get(t, client, ch, OwnerKey))
	require.False(t, client.coll.IsPredicted(0))
	require.False(t, get(t, client, ch, PredictedFlagKey))
	_, ok := client.coll.Record(0).Predicted[0].LastServerTick()
	require.False(t, ok)
	last, _ := client.coll.LastAppliedTick(0)
	require.Equal(t, Tick(2), last)

	send(t, server, client, 0, 3, true)
	require.True(t, client.coll.IsPredicted(0))
	tick, ok := client.coll.Record(0).Predicted[0].LastServerTick()
	require.True(t, ok)
	require.Equal(t, Tick(3), tick)
}

func TestCollection_RegisterErrors(t *testing.T) {
	reg := newTestRegistry(t)
	s := newSide(t, reg)
	h := s.spawn(t, 0, 1, 1, position{})

	other := s.store.Create()
	require.ErrorIs(t, s.coll.Register(other, InvalidNetworkID), ErrInvalidNetworkID)
	require.ErrorIs(t, s.coll.Register(other, 0), ErrAlreadyRegistered)
	require.ErrorIs(t, s.coll.Register(h, 1), ErrAlreadyRegistered)
	require.ErrorIs(t, s.coll.Register(entity.Handle(999), 2), ErrEntityNotFound)

	got, err := s.coll.Unregister(0)
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.Zero(t, s.coll.Len())

	_, err = s.coll.Unregister(0)
	require.ErrorIs(t, err, ErrNotRegistered)

	// ids are reusable after release
	require.NoError(t, s.coll.Register(other, 0))
}

func TestCollection_SparseIDs(t *testing.T) {
	reg := newTestRegistry(t)
	s := newSide(t, reg)
	s.spawn(t, 5, 1, 1, position{})
	s.spawn(t, 2, 1, 1, position{})

	records := s.coll.Records()
	require.Len(t, records, 2)
	require.Equal(t, NetworkID(2), records[0].ID)
	require.Equal(t, NetworkID(5), records[1].ID)
	require.Nil(t, s.coll.Record(3))
	require.Nil(t, s.coll.Record(-1))
}

func TestCollection_Discovery(t *testing.T) {
	reg := newTestRegistry(t)
	unbuilt := entity.NewKey[health]("test.unbuilt")
	require.NoError(t, reg.Declare(unbuilt.Type, unbuilt.Name, Replicated))
	local := entity.NewKey[int]("test.local-only")

	s := newSide(t, reg)
	h := s.store.Create()
	entity.Set(s.store, h, OwnerKey, Owner{Player: 1})
	entity.Set(s.store, h, local, 3)
	entity.Set(s.store, h, unbuilt, health{})
	entity.Set(s.store, h, healthKey, health{})

	child, err := s.store.CreateChild(h)
	require.NoError(t, err)
	entity.Set(s.store, child, labelKey, label{Text: "sword"})
	entity.Set(s.store, child, positionKey, position{})

	require.NoError(t, s.coll.Register(h, 0))
	rec := s.coll.Record(0)

	require.Len(t, rec.Replicated, 2)
	require.Equal(t, OwnerKey.Type, rec.Replicated[0].ComponentType())
	require.Equal(t, h, rec.Replicated[0].Entity())
	require.Equal(t, labelKey.Type, rec.Replicated[1].ComponentType())
	require.Equal(t, child, rec.Replicated[1].Entity())

	require.Len(t, rec.Predicted, 1)
	require.Len(t, rec.Interpolated, 1)
	require.Equal(t, child, rec.Interpolated[0].Entity())
	require.Equal(t, 4, rec.Adapters())
}

func TestCollection_ChildComponentsReplicate(t *testing.T) {
	reg := newTestRegistry(t)
	build := func(s *side, text string) (entity.Handle, entity.Handle) {
		h := s.store.Create()
		entity.Set(s.store, h, OwnerKey, Owner{Player: 1})
		child, err := s.store.CreateChild(h)
		require.NoError(t, err)
		entity.Set(s.store, child, labelKey, label{Text: text})
		require.NoError(t, s.coll.Register(h, 0))
		return h, child
	}

	server, client := newSide(t, reg), newSide(t, reg)
	build(server, "sword")
	_, clientChild := build(client, "")

	send(t, server, client, 0, 1, false)
	require.Equal(t, "sword", get(t, client, clientChild, labelKey).Text)
}

func TestCollection_InterpolationBracketing(t *testing.T) {
	reg := newTestRegistry(t)
	server, client := newSide(t, reg), newSide(t, reg)
	sh := server.spawn(t, 0, 1, 0, position{})
	ch := client.spawn(t, 0, NoPlayer, 0, position{})

	send(t, server, client, 0, 10, false)
	entity.Set(server.store, sh, positionKey, position{X: 10, Y: -4})
	send(t, server, client, 0, 12, false)

	cases := []struct {
		name string
		at   RenderTime
		want position
	}{
		{"midpoint", RenderTime{Tick: 11}, position{X: 5, Y: -2}},
		{"fraction", RenderTime{Tick: 11, Fraction: 0.5}, position{X: 7.5, Y: -3}},
		{"before oldest", RenderTime{Tick: 9}, position{}},
		{"after newest", RenderTime{Tick: 20}, position{X: 10, Y: -4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client.coll.Interpolate(tc.at)
			got := get(t, client, ch, positionKey)
			require.InDelta(t, tc.want.X, got.X, 1e-5)
			require.InDelta(t, tc.want.Y, got.Y, 1e-5)
		})
	}
}

func TestCollection_InterpolateEmptyBufferWritesZero(t *testing.T) {
	reg := newTestRegistry(t)
	client := newSide(t, reg)
	h := client.spawn(t, 0, NoPlayer, 0, position{X: 5, Y: 5})

	client.coll.Interpolate(RenderTime{Tick: 3})
	require.Equal(t, position{}, get(t, client, h, positionKey))
}

func TestCollection_InterpolationCapacity(t *testing.T) {
	reg := newTestRegistry(t)
	server := newSide(t, reg)
	client := newSide(t, reg, WithInterpolationCapacity(2))
	server.spawn(t, 0, 1, 0, position{})
	client.spawn(t, 0, NoPlayer, 0, position{})

	for tick := Tick(1); tick <= 4; tick++ {
		send(t, server, client, 0, tick, false)
	}
	require.Equal(t, 2, client.coll.Record(0).Interpolated[0].Buffered())
}

func TestCollection_PresentationAndTick(t *testing.T) {
	reg := newTestRegistry(t)
	s := newSide(t, reg)
	s.spawn(t, 0, 1, 0, position{})
	p := s.store.Create()

	require.NoError(t, s.coll.SetPresentation(0, p))
	require.Equal(t, p, s.coll.Record(0).Presentation)
	require.ErrorIs(t, s.coll.SetPresentation(1, p), ErrNotRegistered)

	s.coll.SetTick(12)
	require.Equal(t, Tick(12), s.coll.Tick())
}

func TestCollection_VerifyWithoutInstrumentation(t *testing.T) {
	reg := newTestRegistry(t)
	s := newSide(t, reg)
	s.coll.SetLocalPlayer(1)
	s.spawn(t, 0, 1, 0, position{})

	s.coll.StorePredictions(1)
	_, err := s.coll.VerifyPrediction(0, 1)
	require.ErrorIs(t, err, ErrNoInstrumentation)

	samples := s.coll.PredictionSamples(0, 1)
	require.Len(t, samples, 1)
	require.False(t, samples[0].HasServer)
}

func TestRenderTimeAt(t *testing.T) {
	rt := RenderTimeAt(11.25)
	require.Equal(t, Tick(11), rt.Tick)
	require.InDelta(t, 0.25, rt.Fraction, 1e-6)
	require.InDelta(t, 11.25, rt.Float(), 1e-6)
	require.Equal(t, RenderTime{}, RenderTimeAt(-1))
}
