// Package history holds the fixed-capacity, tick-indexed buffers used for
// prediction verification and interpolation. They are plain value
// containers: no entity state and no I/O.
package history

// Tick is a discrete simulation step index.
type Tick uint32

const (
	// DefaultVerificationCapacity is the sparse index size for verification samples.
	DefaultVerificationCapacity = 128
	// DefaultInterpolationCapacity is the dense ring size for interpolation.
	DefaultInterpolationCapacity = 32
)

// SparseIndex maps ticks to slots of a fixed-size backing array. Once every
// slot is used, registering a new tick evicts the oldest one.
type SparseIndex struct {
	ticks []Tick
	used  []bool
	index map[Tick]int
	next  int
}

func NewSparseIndex(capacity int) *SparseIndex {
	if capacity <= 0 {
		capacity = DefaultVerificationCapacity
	}
	return &SparseIndex{
		ticks: make([]Tick, capacity),
		used:  make([]bool, capacity),
		index: make(map[Tick]int, capacity),
	}
}

// Register assigns a slot to tick and returns it. Registering a tick that is
// still present returns its existing slot.
func (s *SparseIndex) Register(tick Tick) int {
	if slot, ok := s.index[tick]; ok {
		return slot
	}
	slot := s.next
	if s.used[slot] {
		delete(s.index, s.ticks[slot])
	}
	s.ticks[slot] = tick
	s.used[slot] = true
	s.index[tick] = slot
	s.next = (s.next + 1) % len(s.ticks)
	return slot
}

// GetIndex returns the slot holding tick, or -1 if the tick was never
// registered or has been evicted.
func (s *SparseIndex) GetIndex(tick Tick) int {
	if slot, ok := s.index[tick]; ok {
		return slot
	}
	return -1
}

// TickAt returns the tick stored in slot.
func (s *SparseIndex) TickAt(slot int) (Tick, bool) {
	if slot < 0 || slot >= len(s.ticks) || !s.used[slot] {
		return 0, false
	}
	return s.ticks[slot], true
}

func (s *SparseIndex) Len() int { return len(s.index) }

func (s *SparseIndex) Capacity() int { return len(s.ticks) }

func (s *SparseIndex) Reset() {
	for i := range s.used {
		s.used[i] = false
	}
	clear(s.index)
	s.next = 0
}

// Samples pairs a SparseIndex with a value per slot.
type Samples[T any] struct {
	index  *SparseIndex
	values []T
}

func NewSamples[T any](capacity int) *Samples[T] {
	idx := NewSparseIndex(capacity)
	return &Samples[T]{
		index:  idx,
		values: make([]T, idx.Capacity()),
	}
}

// Put stores value for tick and returns its slot.
func (s *Samples[T]) Put(tick Tick, value T) int {
	slot := s.index.Register(tick)
	s.values[slot] = value
	return slot
}

// Get returns the value recorded for tick.
func (s *Samples[T]) Get(tick Tick) (T, bool) {
	return s.At(s.index.GetIndex(tick))
}

// At returns the value stored in slot.
func (s *Samples[T]) At(slot int) (T, bool) {
	if _, ok := s.index.TickAt(slot); !ok {
		var zero T
		return zero, false
	}
	return s.values[slot], true
}

// Index exposes the slot lookup.
func (s *Samples[T]) Index() *SparseIndex { return s.index }

func (s *Samples[T]) Len() int { return s.index.Len() }

func (s *Samples[T]) Reset() {
	s.index.Reset()
	clear(s.values)
}
