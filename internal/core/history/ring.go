package history

// Sample is a value observed at a tick.
type Sample[T any] struct {
	Tick  Tick
	Value T
}

// Ring keeps samples in arrival order and drops the oldest on overflow.
// Index 0 is always the oldest retained sample.
type Ring[T any] struct {
	items []Sample[T]
	head  int
	count int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultInterpolationCapacity
	}
	return &Ring[T]{items: make([]Sample[T], capacity)}
}

// Add appends a sample, evicting the oldest when the ring is full.
func (r *Ring[T]) Add(tick Tick, value T) {
	pos := (r.head + r.count) % len(r.items)
	r.items[pos] = Sample[T]{Tick: tick, Value: value}
	if r.count < len(r.items) {
		r.count++
		return
	}
	r.head = (r.head + 1) % len(r.items)
}

// At returns the i-th retained sample, oldest first.
func (r *Ring[T]) At(i int) Sample[T] {
	return r.items[(r.head+i)%len(r.items)]
}

func (r *Ring[T]) Len() int { return r.count }

func (r *Ring[T]) Capacity() int { return len(r.items) }

func (r *Ring[T]) Oldest() (Sample[T], bool) {
	if r.count == 0 {
		return Sample[T]{}, false
	}
	return r.At(0), true
}

func (r *Ring[T]) Newest() (Sample[T], bool) {
	if r.count == 0 {
		return Sample[T]{}, false
	}
	return r.At(r.count - 1), true
}

func (r *Ring[T]) Clear() {
	clear(r.items)
	r.head = 0
	r.count = 0
}

// GetStates finds the adjacent samples whose ticks bracket
// targetTick+fraction. factor is the normalized position of the target
// between them. ok is false with fewer than two samples or when the target
// lies outside the buffered range; callers then fall back to the nearest
// single sample.
func (r *Ring[T]) GetStates(targetTick Tick, fraction float32) (low, high int, factor float32, ok bool) {
	if r.count < 2 {
		return -1, -1, 0, false
	}
	target := float64(targetTick) + float64(fraction)
	if target < float64(r.At(0).Tick) || target > float64(r.At(r.count-1).Tick) {
		return -1, -1, 0, false
	}
	for i := 0; i < r.count-1; i++ {
		a, b := float64(r.At(i).Tick), float64(r.At(i+1).Tick)
		if target < a || target > b {
			continue
		}
		if b == a {
			return i, i + 1, 0, true
		}
		return i, i + 1, float32((target - a) / (b - a)), true
	}
	return -1, -1, 0, false
}
