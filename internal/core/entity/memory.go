package entity

import "errors"

var ErrEntityNotFound = errors.New("entity not found")

var _ Store = (*MemoryStore)(nil)

type memoryEntity struct {
	parent     Handle
	order      []ComponentType
	components map[ComponentType]any
	children   []Handle
}

// MemoryStore is a map-backed Store. It is not safe for concurrent use,
// matching the single-threaded tick model of the replication core.
type MemoryStore struct {
	entities map[Handle]*memoryEntity
	next     Handle
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[Handle]*memoryEntity),
	}
}

// Create allocates a root entity.
func (s *MemoryStore) Create() Handle {
	s.next++
	s.entities[s.next] = &memoryEntity{components: make(map[ComponentType]any)}
	return s.next
}

// CreateChild allocates an entity declared as a sub-entity of parent.
func (s *MemoryStore) CreateChild(parent Handle) (Handle, error) {
	p, ok := s.entities[parent]
	if !ok {
		return Nil, ErrEntityNotFound
	}
	h := s.Create()
	s.entities[h].parent = parent
	p.children = append(p.children, h)
	return h, nil
}

// Destroy removes an entity and all of its children.
func (s *MemoryStore) Destroy(h Handle) {
	e, ok := s.entities[h]
	if !ok {
		return
	}
	children := make([]Handle, len(e.children))
	copy(children, e.children)
	for _, child := range children {
		s.Destroy(child)
	}
	if p, ok := s.entities[e.parent]; ok {
		for i, c := range p.children {
			if c == h {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	delete(s.entities, h)
}

// Parent returns the declaring entity of a child, or Nil for roots.
func (s *MemoryStore) Parent(h Handle) Handle {
	if e, ok := s.entities[h]; ok {
		return e.parent
	}
	return Nil
}

func (s *MemoryStore) Len() int { return len(s.entities) }

func (s *MemoryStore) Exists(h Handle) bool {
	_, ok := s.entities[h]
	return ok
}

func (s *MemoryStore) Get(h Handle, t ComponentType) (any, bool) {
	e, ok := s.entities[h]
	if !ok {
		return nil, false
	}
	v, ok := e.components[t]
	return v, ok
}

func (s *MemoryStore) Set(h Handle, t ComponentType, value any) {
	e, ok := s.entities[h]
	if !ok {
		return
	}
	if _, exists := e.components[t]; !exists {
		e.order = append(e.order, t)
	}
	e.components[t] = value
}

func (s *MemoryStore) Remove(h Handle, t ComponentType) {
	e, ok := s.entities[h]
	if !ok {
		return
	}
	if _, exists := e.components[t]; !exists {
		return
	}
	delete(e.components, t)
	for i, ct := range e.order {
		if ct == t {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (s *MemoryStore) Components(h Handle) []ComponentType {
	e, ok := s.entities[h]
	if !ok {
		return nil
	}
	out := make([]ComponentType, len(e.order))
	copy(out, e.order)
	return out
}

func (s *MemoryStore) Children(h Handle) []Handle {
	e, ok := s.entities[h]
	if !ok {
		return nil
	}
	out := make([]Handle, len(e.children))
	copy(out, e.children)
	return out
}
