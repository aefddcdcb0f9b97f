package websocket

import "github.com/zeusync/replica/internal/core/replication"

// idAllocator hands out network ids, reusing released ones lowest first. The
// generation of an id changes on every allocation so observers can tell a
// reused id from the entity they already know.
type idAllocator struct {
	next        replication.NetworkID
	free        []replication.NetworkID
	generations map[replication.NetworkID]uint32
}

func newIDAllocator() idAllocator {
	return idAllocator{generations: make(map[replication.NetworkID]uint32)}
}

func (a *idAllocator) allocate() replication.NetworkID {
	var id replication.NetworkID
	if n := len(a.free); n > 0 {
		lowest := 0
		for i, f := range a.free {
			if f < a.free[lowest] {
				lowest = i
			}
		}
		id = a.free[lowest]
		a.free[lowest] = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		id = a.next
		a.next++
	}
	a.generations[id]++
	return id
}

func (a *idAllocator) release(id replication.NetworkID) {
	a.free = append(a.free, id)
}

func (a *idAllocator) generation(id replication.NetworkID) uint32 {
	return a.generations[id]
}
