package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinary_Primitives(t *testing.T) {
	w := NewWriter(Audience{})
	w.WriteBool("alive", true)
	w.WriteInt32("hp", -12)
	w.WriteInt64("big", -1<<40)
	w.WriteUint16("type", 513)
	w.WriteUint32("tick", 4_000_000_000)
	w.WriteFloat32("x", 1.25)
	w.WriteFloat64("y", -3.5)
	w.WriteString("name", "grunt")
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes(), Audience{})
	require.True(t, r.ReadBool("alive"))
	require.Equal(t, int32(-12), r.ReadInt32("hp"))
	require.Equal(t, int64(-1<<40), r.ReadInt64("big"))
	require.Equal(t, uint16(513), r.ReadUint16("type"))
	require.Equal(t, uint32(4_000_000_000), r.ReadUint32("tick"))
	require.Equal(t, float32(1.25), r.ReadFloat32("x"))
	require.Equal(t, -3.5, r.ReadFloat64("y"))
	require.Equal(t, "grunt", r.ReadString("name"))
	require.NoError(t, r.Err())
	require.Zero(t, r.Remaining())
}

func TestBinary_SectionsFollowAudience(t *testing.T) {
	encode := func(a Audience) []byte {
		w := NewWriter(a)
		w.WriteInt32("always", 1)
		w.BeginSection(OnlyPredicting)
		w.WriteInt32("predicted", 2)
		w.EndSection()
		w.BeginSection(OnlyNonPredicting)
		w.WriteInt32("interpolated", 3)
		w.EndSection()
		require.NoError(t, w.Err())
		return w.Bytes()
	}

	t.Run("predicting", func(t *testing.T) {
		data := encode(Audience{Predicting: true})
		require.Len(t, data, 8)

		r := NewReader(data, Audience{Predicting: true})
		require.Equal(t, int32(1), r.ReadInt32("always"))
		require.True(t, r.BeginSection(OnlyPredicting))
		require.Equal(t, int32(2), r.ReadInt32("predicted"))
		r.EndSection()
		require.False(t, r.BeginSection(OnlyNonPredicting))
		require.Zero(t, r.ReadInt32("interpolated"))
		r.EndSection()
		require.NoError(t, r.Err())
		require.Zero(t, r.Remaining())
	})

	t.Run("observer", func(t *testing.T) {
		data := encode(Audience{})
		require.Len(t, data, 8)

		r := NewReader(data, Audience{})
		require.Equal(t, int32(1), r.ReadInt32("always"))
		r.BeginSection(OnlyPredicting)
		require.Zero(t, r.ReadInt32("predicted"))
		r.EndSection()
		r.BeginSection(OnlyNonPredicting)
		require.Equal(t, int32(3), r.ReadInt32("interpolated"))
		r.EndSection()
		require.Zero(t, r.Remaining())
	})
}

func TestBinary_NestedHiddenSectionStaysMuted(t *testing.T) {
	w := NewWriter(Audience{Predicting: false})
	w.BeginSection(OnlyPredicting)
	require.False(t, w.BeginSection(Always))
	w.WriteInt32("inner", 9)
	w.EndSection()
	w.EndSection()
	require.Zero(t, w.Len())
}

func TestBinary_ShortBufferIsSticky(t *testing.T) {
	r := NewReader([]byte{1, 2}, Audience{})
	require.Zero(t, r.ReadInt32("hp"))
	require.ErrorIs(t, r.Err(), ErrShortBuffer)
	require.Zero(t, r.ReadUint16("next"))
	require.ErrorIs(t, r.Err(), ErrShortBuffer)
}

func TestBinary_UnbalancedEndSection(t *testing.T) {
	w := NewWriter(Audience{})
	w.EndSection()
	require.ErrorIs(t, w.Err(), ErrUnbalancedScope)
}

func TestBinary_ResetKeepsCapacity(t *testing.T) {
	w := NewWriter(Audience{})
	w.WriteString("s", "hello")
	w.Reset(Audience{Predicting: true})
	require.Zero(t, w.Len())
	require.True(t, w.Audience().Predicting)
}
