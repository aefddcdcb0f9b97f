// Package websocket relays replication frames between a server and its
// clients over gorilla/websocket. Each websocket binary message carries one
// frame; the replication core never sees the connection.
package websocket

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeusync/replica/internal/core/prefab"
	"github.com/zeusync/replica/internal/core/replication"
)

var (
	ErrShortFrame  = errors.New("frame shorter than header")
	ErrUnknownKind = errors.New("unknown frame kind")
)

// Kind tells the receiver how to treat a frame.
type Kind uint8

const (
	// KindWelcome carries the player id in ID and the session id as payload.
	KindWelcome Kind = iota + 1
	// KindSpawn asks the client to instantiate TypeID under ID.
	KindSpawn
	// KindDespawn releases ID.
	KindDespawn
	// KindUpdate carries a snapshot of ID for Tick.
	KindUpdate
	// KindInput carries one tick of player input, client to server.
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindWelcome:
		return "welcome"
	case KindSpawn:
		return "spawn"
	case KindDespawn:
		return "despawn"
	case KindUpdate:
		return "update"
	case KindInput:
		return "input"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// HeaderSize is kind u8 | tick u32 | id i32 | typeID u16.
const HeaderSize = 1 + 4 + 4 + 2

type Frame struct {
	Kind    Kind
	Tick    replication.Tick
	ID      replication.NetworkID
	TypeID  prefab.TypeID
	Payload []byte
}

// AppendBinary appends the encoded frame to b.
func (f Frame) AppendBinary(b []byte) []byte {
	b = append(b, byte(f.Kind))
	b = binary.LittleEndian.AppendUint32(b, uint32(f.Tick))
	b = binary.LittleEndian.AppendUint32(b, uint32(f.ID))
	b = binary.LittleEndian.AppendUint16(b, uint16(f.TypeID))
	return append(b, f.Payload...)
}

func (f Frame) MarshalBinary() ([]byte, error) {
	return f.AppendBinary(make([]byte, 0, HeaderSize+len(f.Payload))), nil
}

// ParseFrame decodes b. The payload aliases b.
func ParseFrame(b []byte) (Frame, error) {
	if len(b) < HeaderSize {
		return Frame{}, fmt.Errorf("parse frame of %d bytes: %w", len(b), ErrShortFrame)
	}
	f := Frame{
		Kind:    Kind(b[0]),
		Tick:    replication.Tick(binary.LittleEndian.Uint32(b[1:5])),
		ID:      replication.NetworkID(int32(binary.LittleEndian.Uint32(b[5:9]))),
		TypeID:  prefab.TypeID(binary.LittleEndian.Uint16(b[9:11])),
		Payload: b[HeaderSize:],
	}
	if f.Kind < KindWelcome || f.Kind > KindInput {
		return Frame{}, fmt.Errorf("parse frame: %w: %d", ErrUnknownKind, b[0])
	}
	return f, nil
}
