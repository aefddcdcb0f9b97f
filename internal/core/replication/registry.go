package replication

import (
	"fmt"
	"sync"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

type registration struct {
	name       string
	capability Capability
	factory    Factory
}

// Registry maps component types to their declared capability and adapter
// factory. It is populated once at startup and read from every collection.
type Registry struct {
	mu      sync.RWMutex
	entries map[entity.ComponentType]*registration
	logger  log.Log
}

// NewRegistry returns an empty registry. A nil logger falls back to the
// process logger.
func NewRegistry(logger log.Log) *Registry {
	if logger == nil {
		logger = log.Provide()
	}
	return &Registry{
		entries: make(map[entity.ComponentType]*registration),
		logger:  logger.With(log.String("component", "replication.registry")),
	}
}

// Declare marks a component type as replicated with the given capability
// before its factory is known. Discovery picks up declared components and
// skips them with an error log until a factory is registered.
func (r *Registry) Declare(ct entity.ComponentType, name string, capability Capability) error {
	if capability < Replicated || capability > Interpolated {
		return fmt.Errorf("declare %s: %w", name, ErrInvalidCapability)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[ct]; ok {
		if e.capability != capability {
			return fmt.Errorf("declare %s as %s, already %s: %w", name, capability, e.capability, ErrCapabilityMismatch)
		}
		return nil
	}
	r.entries[ct] = &registration{name: name, capability: capability}
	return nil
}

// Register installs the factory for a component type. Registering a second
// factory for the same type fails with ErrDuplicateFactory.
func (r *Registry) Register(ct entity.ComponentType, capability Capability, factory Factory) error {
	return r.register(ct, "", capability, factory)
}

func (r *Registry) register(ct entity.ComponentType, name string, capability Capability, factory Factory) error {
	if capability < Replicated || capability > Interpolated {
		return fmt.Errorf("register component %d: %w", ct, ErrInvalidCapability)
	}
	if factory == nil {
		return fmt.Errorf("register component %d: nil factory", ct)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ct]
	switch {
	case !ok:
		e = &registration{name: name, capability: capability}
		r.entries[ct] = e
	case e.factory != nil:
		return fmt.Errorf("register %s: %w", e.label(ct), ErrDuplicateFactory)
	case e.capability != capability:
		return fmt.Errorf("register %s as %s, declared %s: %w", e.label(ct), capability, e.capability, ErrCapabilityMismatch)
	}
	if name != "" {
		e.name = name
	}
	e.factory = factory

	r.logger.Debug("Factory registered",
		log.String("name", e.label(ct)),
		log.String("capability", capability.String()),
	)
	return nil
}

// MustRegister is Register that panics on error, for static setup code.
func (r *Registry) MustRegister(ct entity.ComponentType, capability Capability, factory Factory) {
	if err := r.Register(ct, capability, factory); err != nil {
		panic(err)
	}
}

// Capability returns the declared capability of a component type.
func (r *Registry) Capability(ct entity.ComponentType) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ct]
	if !ok {
		return 0, false
	}
	return e.capability, true
}

// Name returns the registered name of a component type, if any.
func (r *Registry) Name(ct entity.ComponentType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[ct]; ok {
		return e.label(ct)
	}
	return fmt.Sprintf("component(%d)", uint64(ct))
}

// Create builds an adapter for the component on h. A missing factory is
// logged and reported through ok=false.
func (r *Registry) Create(ct entity.ComponentType, h entity.Handle, opts AdapterOptions) (Adapter, bool) {
	r.mu.RLock()
	e, ok := r.entries[ct]
	var factory Factory
	if ok {
		factory = e.factory
	}
	r.mu.RUnlock()

	if factory == nil {
		r.logger.Error("No adapter factory for replicated component",
			log.Uint64("component_type", uint64(ct)),
			log.Uint32("entity", uint32(h)),
		)
		return nil, false
	}

	a := factory(h, opts)
	if a == nil || a.Capability() != e.capability {
		r.logger.Error("Adapter factory returned wrong capability",
			log.String("name", e.label(ct)),
			log.String("declared", e.capability.String()),
		)
		return nil, false
	}
	return a, true
}

// Len returns the number of declared component types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *registration) label(ct entity.ComponentType) string {
	if e.name != "" {
		return e.name
	}
	return fmt.Sprintf("component(%d)", uint64(ct))
}

// RegisterReplicated registers a replicated component type.
func RegisterReplicated[T Payload[T]](r *Registry, key entity.Key[T]) error {
	return r.register(key.Type, key.Name, Replicated, func(h entity.Handle, _ AdapterOptions) Adapter {
		return NewReplicatedAdapter(key, h)
	})
}

// RegisterPredicted registers a predicted component type.
func RegisterPredicted[T Predictable[T]](r *Registry, key entity.Key[T]) error {
	return r.register(key.Type, key.Name, Predicted, func(h entity.Handle, opts AdapterOptions) Adapter {
		return NewPredictedAdapter(key, h, opts)
	})
}

// RegisterInterpolated registers an interpolated component type.
func RegisterInterpolated[T Interpolatable[T]](r *Registry, key entity.Key[T]) error {
	return r.register(key.Type, key.Name, Interpolated, func(h entity.Handle, opts AdapterOptions) Adapter {
		return NewInterpolatedAdapter(key, h, opts)
	})
}
