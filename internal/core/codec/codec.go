// Package codec implements the primitive wire writer and reader used by
// replication adapters. Values are fixed-width little-endian; strings carry a
// uint16 length prefix.
//
// Writers and readers are bound to an Audience. Fields written inside a
// section whose Visibility excludes that audience are dropped by the writer
// and never consumed by the reader, so both ends agree on the byte layout
// without tagging individual fields.
package codec

import "errors"

var (
	ErrShortBuffer     = errors.New("codec: short buffer")
	ErrStringTooLong   = errors.New("codec: string exceeds 65535 bytes")
	ErrUnbalancedScope = errors.New("codec: EndSection without BeginSection")
)

// Visibility partitions fields by who is allowed to see them.
type Visibility uint8

const (
	// Always is visible to every observer.
	Always Visibility = iota
	// OnlyPredicting is visible only to the client predicting the entity.
	OnlyPredicting
	// OnlyNonPredicting is visible only to observers that interpolate the entity.
	OnlyNonPredicting
)

func (v Visibility) String() string {
	switch v {
	case Always:
		return "always"
	case OnlyPredicting:
		return "only-predicting"
	case OnlyNonPredicting:
		return "only-non-predicting"
	default:
		return "unknown"
	}
}

// Audience describes the observer a stream is produced for or consumed by.
type Audience struct {
	Predicting bool
}

// Sees reports whether the audience is allowed to observe v.
func (a Audience) Sees(v Visibility) bool {
	switch v {
	case OnlyPredicting:
		return a.Predicting
	case OnlyNonPredicting:
		return !a.Predicting
	default:
		return true
	}
}

// Writer is the primitive encoder handed to adapters. Field names are
// informational and are not written to the binary stream.
type Writer interface {
	WriteBool(name string, v bool)
	WriteInt32(name string, v int32)
	WriteInt64(name string, v int64)
	WriteUint16(name string, v uint16)
	WriteUint32(name string, v uint32)
	WriteFloat32(name string, v float32)
	WriteFloat64(name string, v float64)
	WriteString(name string, v string)

	// BeginSection opens a visibility section and reports whether its
	// contents will be emitted for the writer's audience.
	BeginSection(v Visibility) bool
	EndSection()

	Audience() Audience
	Err() error
}

// Reader mirrors Writer. After the first failure every read returns the zero
// value and Err reports the cause.
type Reader interface {
	ReadBool(name string) bool
	ReadInt32(name string) int32
	ReadInt64(name string) int64
	ReadUint16(name string) uint16
	ReadUint32(name string) uint32
	ReadFloat32(name string) float32
	ReadFloat64(name string) float64
	ReadString(name string) string

	BeginSection(v Visibility) bool
	EndSection()

	Audience() Audience
	// SetAudience changes the audience for sections opened afterwards.
	SetAudience(a Audience)
	Err() error
}
