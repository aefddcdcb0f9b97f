package sequence

// stamped is one queued item. seq breaks ties between equal ticks so items
// of one tick leave in arrival order.
type stamped[T any] struct {
	tick  uint32
	seq   uint64
	value T
}

func (a stamped[T]) before(b stamped[T]) bool {
	if a.tick != b.tick {
		return a.tick < b.tick
	}
	return a.seq < b.seq
}

// TickQueue is a min-heap keyed by tick, FIFO within a tick.
type TickQueue[T any] struct {
	items []stamped[T]
	seq   uint64
}

func NewTickQueue[T any]() *TickQueue[T] {
	return &TickQueue[T]{}
}

func (q *TickQueue[T]) Push(tick uint32, v T) {
	q.seq++
	q.items = append(q.items, stamped[T]{tick: tick, seq: q.seq, value: v})
	q.up(len(q.items) - 1)
}

// Pop removes the item with the lowest tick.
func (q *TickQueue[T]) Pop() (uint32, T, bool) {
	if len(q.items) == 0 {
		var zero T
		return 0, zero, false
	}
	top := q.items[0]
	last := len(q.items) - 1
	q.items[0] = q.items[last]
	q.items[last] = stamped[T]{}
	q.items = q.items[:last]
	if last > 0 {
		q.down(0)
	} else {
		q.seq = 0
	}
	return top.tick, top.value, true
}

func (q *TickQueue[T]) Peek() (uint32, T, bool) {
	if len(q.items) == 0 {
		var zero T
		return 0, zero, false
	}
	return q.items[0].tick, q.items[0].value, true
}

func (q *TickQueue[T]) Len() int { return len(q.items) }

func (q *TickQueue[T]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.items[i].before(q.items[parent]) {
			return
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *TickQueue[T]) down(i int) {
	n := len(q.items)
	for {
		least := i
		if l := 2*i + 1; l < n && q.items[l].before(q.items[least]) {
			least = l
		}
		if r := 2*i + 2; r < n && q.items[r].before(q.items[least]) {
			least = r
		}
		if least == i {
			return
		}
		q.items[i], q.items[least] = q.items[least], q.items[i]
		i = least
	}
}
