// Package entity defines the component store the replication core reads and
// writes through. The core never depends on a particular ECS: anything that
// can answer typed get/set by entity handle satisfies Store.
package entity

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Handle identifies a live entity inside one process. Handles are
// meaningless across the network.
type Handle uint32

// Nil is the null entity handle.
const Nil Handle = 0

func (h Handle) IsNil() bool { return h == Nil }

func (h Handle) String() string {
	if h == Nil {
		return "entity(nil)"
	}
	return fmt.Sprintf("entity(%d)", uint32(h))
}

// ComponentType is a stable identifier derived from a component's name.
type ComponentType uint64

// TypeOf hashes a component name into its ComponentType.
func TypeOf(name string) ComponentType {
	return ComponentType(xxhash.Sum64String(name))
}

// Key binds a ComponentType to its Go payload type.
type Key[T any] struct {
	Name string
	Type ComponentType
}

// NewKey declares a typed component key.
func NewKey[T any](name string) Key[T] {
	return Key[T]{Name: name, Type: TypeOf(name)}
}

// Store is the minimal component storage contract.
type Store interface {
	Exists(h Handle) bool
	Get(h Handle, t ComponentType) (any, bool)
	Set(h Handle, t ComponentType, value any)
	Remove(h Handle, t ComponentType)
	// Components lists attached component types in attach order.
	Components(h Handle) []ComponentType
	// Children lists declared sub-entities of a composite entity.
	Children(h Handle) []Handle
}

// Get reads a typed component. ok is false when the entity or component is
// missing or holds a value of another type.
func Get[T any](s Store, h Handle, key Key[T]) (T, bool) {
	v, ok := s.Get(h, key.Type)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Set writes a typed component.
func Set[T any](s Store, h Handle, key Key[T], value T) {
	s.Set(h, key.Type, value)
}

// Has reports whether the entity carries the component.
func Has[T any](s Store, h Handle, key Key[T]) bool {
	_, ok := s.Get(h, key.Type)
	return ok
}
