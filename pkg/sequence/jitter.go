package sequence

// JitterBuffer reorders tick-stamped items that arrive out of order. Items
// with the same tick keep their arrival order. When full, the newest push is
// rejected so buffered ticks are never skipped.
type JitterBuffer[T any] struct {
	queue    *TickQueue[T]
	capacity int
}

func NewJitterBuffer[T any](capacity int) *JitterBuffer[T] {
	if capacity <= 0 {
		capacity = 256
	}
	return &JitterBuffer[T]{queue: NewTickQueue[T](), capacity: capacity}
}

// Push buffers v for tick and reports whether it was accepted.
func (b *JitterBuffer[T]) Push(tick uint32, v T) bool {
	if b.queue.Len() >= b.capacity {
		return false
	}
	b.queue.Push(tick, v)
	return true
}

// Drain pops every item with tick <= upTo in tick order.
func (b *JitterBuffer[T]) Drain(upTo uint32, fn func(tick uint32, v T)) int {
	n := 0
	for {
		tick, _, ok := b.queue.Peek()
		if !ok || tick > upTo {
			return n
		}
		_, v, _ := b.queue.Pop()
		fn(tick, v)
		n++
	}
}

// Oldest returns the lowest buffered tick.
func (b *JitterBuffer[T]) Oldest() (uint32, bool) {
	tick, _, ok := b.queue.Peek()
	return tick, ok
}

func (b *JitterBuffer[T]) Len() int { return b.queue.Len() }
