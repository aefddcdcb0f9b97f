package codec

import (
	"encoding/binary"
	"math"
)

var (
	_ Writer = (*BinaryWriter)(nil)
	_ Reader = (*BinaryReader)(nil)
)

// sections tracks nested visibility scopes. A scope is muted when it, or any
// enclosing scope, is hidden from the audience.
type sections struct {
	stack []bool
	muted int
}

func (s *sections) begin(a Audience, v Visibility) bool {
	visible := a.Sees(v)
	s.stack = append(s.stack, visible)
	if !visible {
		s.muted++
	}
	return s.muted == 0
}

func (s *sections) end() error {
	if len(s.stack) == 0 {
		return ErrUnbalancedScope
	}
	last := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if !last {
		s.muted--
	}
	return nil
}

func (s *sections) active() bool { return s.muted == 0 }

func (s *sections) reset() {
	s.stack = s.stack[:0]
	s.muted = 0
}

// BinaryWriter appends fields to an in-memory buffer.
type BinaryWriter struct {
	buf      []byte
	audience Audience
	scopes   sections
	err      error
}

// NewWriter returns a writer producing a stream for the given audience.
func NewWriter(a Audience) *BinaryWriter {
	return &BinaryWriter{
		buf:      make([]byte, 0, 256),
		audience: a,
	}
}

// Reset empties the buffer and rebinds the writer to a new audience,
// keeping the allocated capacity.
func (w *BinaryWriter) Reset(a Audience) {
	w.buf = w.buf[:0]
	w.audience = a
	w.scopes.reset()
	w.err = nil
}

// Bytes returns the encoded stream. The slice aliases the writer's buffer
// until the next Reset.
func (w *BinaryWriter) Bytes() []byte { return w.buf }

func (w *BinaryWriter) Len() int { return len(w.buf) }

func (w *BinaryWriter) Audience() Audience { return w.audience }

func (w *BinaryWriter) Err() error { return w.err }

func (w *BinaryWriter) BeginSection(v Visibility) bool {
	return w.scopes.begin(w.audience, v)
}

func (w *BinaryWriter) EndSection() {
	if err := w.scopes.end(); err != nil && w.err == nil {
		w.err = err
	}
}

func (w *BinaryWriter) WriteBool(_ string, v bool) {
	if !w.scopes.active() {
		return
	}
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *BinaryWriter) WriteInt32(name string, v int32) {
	w.WriteUint32(name, uint32(v))
}

func (w *BinaryWriter) WriteInt64(_ string, v int64) {
	if !w.scopes.active() {
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *BinaryWriter) WriteUint16(_ string, v uint16) {
	if !w.scopes.active() {
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *BinaryWriter) WriteUint32(_ string, v uint32) {
	if !w.scopes.active() {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *BinaryWriter) WriteFloat32(name string, v float32) {
	w.WriteUint32(name, math.Float32bits(v))
}

func (w *BinaryWriter) WriteFloat64(name string, v float64) {
	w.WriteInt64(name, int64(math.Float64bits(v)))
}

func (w *BinaryWriter) WriteString(name string, v string) {
	if !w.scopes.active() {
		return
	}
	if len(v) > math.MaxUint16 {
		if w.err == nil {
			w.err = ErrStringTooLong
		}
		return
	}
	w.WriteUint16(name, uint16(len(v)))
	w.buf = append(w.buf, v...)
}

// BinaryReader consumes a stream produced by BinaryWriter.
type BinaryReader struct {
	buf      []byte
	off      int
	audience Audience
	scopes   sections
	err      error
}

// NewReader returns a reader over data for the given audience.
func NewReader(data []byte, a Audience) *BinaryReader {
	return &BinaryReader{buf: data, audience: a}
}

func (r *BinaryReader) Audience() Audience { return r.audience }

func (r *BinaryReader) SetAudience(a Audience) { r.audience = a }

func (r *BinaryReader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *BinaryReader) Remaining() int { return len(r.buf) - r.off }

func (r *BinaryReader) BeginSection(v Visibility) bool {
	return r.scopes.begin(r.audience, v)
}

func (r *BinaryReader) EndSection() {
	if err := r.scopes.end(); err != nil && r.err == nil {
		r.err = err
	}
}

func (r *BinaryReader) take(n int) []byte {
	if r.err != nil || !r.scopes.active() {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *BinaryReader) ReadBool(_ string) bool {
	b := r.take(1)
	return b != nil && b[0] != 0
}

func (r *BinaryReader) ReadInt32(name string) int32 {
	return int32(r.ReadUint32(name))
}

func (r *BinaryReader) ReadInt64(_ string) int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *BinaryReader) ReadUint16(_ string) uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *BinaryReader) ReadUint32(_ string) uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *BinaryReader) ReadFloat32(name string) float32 {
	return math.Float32frombits(r.ReadUint32(name))
}

func (r *BinaryReader) ReadFloat64(name string) float64 {
	return math.Float64frombits(uint64(r.ReadInt64(name)))
}

func (r *BinaryReader) ReadString(name string) string {
	n := r.ReadUint16(name)
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}
