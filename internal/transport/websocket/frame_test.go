package websocket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/replica/internal/core/replication"
)

func TestFrame_RoundTrip(t *testing.T) {
	in := Frame{Kind: KindUpdate, Tick: 4096, ID: 7, TypeID: 2, Payload: []byte{1, 2, 3}}
	b, err := in.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, HeaderSize+3)

	out, err := ParseFrame(b)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestFrame_NegativeID(t *testing.T) {
	b, _ := Frame{Kind: KindDespawn, ID: replication.InvalidNetworkID}.MarshalBinary()
	out, err := ParseFrame(b)
	require.NoError(t, err)
	require.Equal(t, replication.InvalidNetworkID, out.ID)
	require.Empty(t, out.Payload)
}

func TestParseFrame_Errors(t *testing.T) {
	_, err := ParseFrame([]byte{1, 2})
	require.ErrorIs(t, err, ErrShortFrame)

	b, _ := Frame{Kind: KindInput}.MarshalBinary()
	b[0] = 42
	_, err = ParseFrame(b)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "spawn", KindSpawn.String())
	require.Equal(t, "kind(9)", Kind(9).String())
}

func TestIDAllocator(t *testing.T) {
	a := newIDAllocator()
	require.Equal(t, replication.NetworkID(0), a.allocate())
	require.Equal(t, replication.NetworkID(1), a.allocate())
	require.Equal(t, replication.NetworkID(2), a.allocate())

	a.release(2)
	a.release(1)
	require.Equal(t, replication.NetworkID(1), a.allocate())
	require.Equal(t, uint32(2), a.generation(1))
	require.Equal(t, replication.NetworkID(2), a.allocate())
	require.Equal(t, replication.NetworkID(3), a.allocate())
	require.Equal(t, uint32(1), a.generation(3))
}
