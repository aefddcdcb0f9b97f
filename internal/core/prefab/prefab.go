// Package prefab maps wire type ids to entity templates. Both ends spawn a
// replicated entity from the same template, so components are attached in
// the same order and adapters line up on the wire.
package prefab

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zeusync/replica/internal/core/entity"
)

var (
	ErrUnknownPrefab   = errors.New("unknown prefab type id")
	ErrDuplicatePrefab = errors.New("prefab type id already registered")
)

// TypeID is the wire identifier of a template.
type TypeID uint16

// TypeKey is attached to every spawned root so the server can announce it.
var TypeKey = entity.NewKey[TypeID]("prefab.type")

// World is a store that can allocate entities.
type World interface {
	entity.Store
	Create() entity.Handle
	CreateChild(parent entity.Handle) (entity.Handle, error)
	Destroy(h entity.Handle)
}

// Component is one initial component value of a template.
type Component struct {
	Type  entity.ComponentType
	Value any
}

// With builds a typed template component.
func With[T any](key entity.Key[T], value T) Component {
	return Component{Type: key.Type, Value: value}
}

// Template describes an entity and its sub-entities.
type Template struct {
	Name       string
	Components []Component
	Children   []Template
}

// Registry holds the templates by type id.
type Registry struct {
	mu        sync.RWMutex
	templates map[TypeID]Template
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[TypeID]Template)}
}

func (r *Registry) Register(id TypeID, t Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.templates[id]; ok {
		return fmt.Errorf("register %q as %d, taken by %q: %w", t.Name, id, existing.Name, ErrDuplicatePrefab)
	}
	r.templates[id] = t
	return nil
}

func (r *Registry) Lookup(id TypeID) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	return t, ok
}

// Spawn instantiates template id in w and returns the root handle.
func (r *Registry) Spawn(w World, id TypeID) (entity.Handle, error) {
	t, ok := r.Lookup(id)
	if !ok {
		return entity.Nil, fmt.Errorf("spawn %d: %w", id, ErrUnknownPrefab)
	}
	h := w.Create()
	entity.Set(w, h, TypeKey, id)
	if err := build(w, h, t); err != nil {
		w.Destroy(h)
		return entity.Nil, fmt.Errorf("spawn %q: %w", t.Name, err)
	}
	return h, nil
}

func build(w World, h entity.Handle, t Template) error {
	for _, c := range t.Components {
		w.Set(h, c.Type, c.Value)
	}
	for _, ct := range t.Children {
		child, err := w.CreateChild(h)
		if err != nil {
			return err
		}
		if err := build(w, child, ct); err != nil {
			return err
		}
	}
	return nil
}

// TypeOf returns the template id a root entity was spawned from.
func TypeOf(s entity.Store, h entity.Handle) (TypeID, bool) {
	return entity.Get(s, h, TypeKey)
}
