package replication

import (
	"fmt"

	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
	"github.com/zeusync/replica/internal/core/observability/metrics"
)

// Record is the per-entity replication bundle.
type Record struct {
	ID           NetworkID
	Entity       entity.Handle
	Presentation entity.Handle

	Replicated   []ReplicatedAdapter
	Predicted    []PredictedAdapter
	Interpolated []InterpolatedAdapter

	lastApplied Tick
	applied     bool
	local       bool
}

// LastAppliedTick returns the tick of the newest update applied.
func (r *Record) LastAppliedTick() (Tick, bool) { return r.lastApplied, r.applied }

// Local reports whether the entity is predicted by this process.
func (r *Record) Local() bool { return r.local }

// Adapters returns the number of adapters of every kind.
func (r *Record) Adapters() int {
	return len(r.Replicated) + len(r.Predicted) + len(r.Interpolated)
}

func (r *Record) each(fn func(Adapter)) {
	for _, a := range r.Replicated {
		fn(a)
	}
	for _, a := range r.Predicted {
		fn(a)
	}
	for _, a := range r.Interpolated {
		fn(a)
	}
}

// Collection owns the records of one process and drives snapshot
// generation, update application, rollback and interpolation. It is not safe
// for concurrent use; all calls belong to the tick loop.
type Collection struct {
	store    entity.Store
	registry *Registry
	refs     *ReferenceSerializer

	records  []*Record
	count    int
	byEntity map[entity.Handle]NetworkID

	dataOnly         map[NetworkID]entity.Handle
	dataOnlyByEntity map[entity.Handle]NetworkID

	localPlayer    PlayerID
	hasLocal       bool
	ownershipDirty bool

	tick    Tick
	cfg     CollectionConfig
	logger  log.Log
	metrics metrics.Recorder
}

var _ IdentityLookup = (*Collection)(nil)

// NewCollection creates an empty collection over store.
func NewCollection(store entity.Store, registry *Registry, opts ...Option) *Collection {
	cfg := defaultCollectionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Provide()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	c := &Collection{
		store:            store,
		registry:         registry,
		byEntity:         make(map[entity.Handle]NetworkID),
		dataOnly:         make(map[NetworkID]entity.Handle),
		dataOnlyByEntity: make(map[entity.Handle]NetworkID),
		cfg:              cfg,
		logger:           cfg.Logger.With(log.String("component", "replication")),
		metrics:          cfg.Metrics,
	}
	c.refs = NewReferenceSerializer(store, c, c.logger)
	return c
}

// Register binds id to h and builds adapters for every declared component
// on h and its sub-entities.
func (c *Collection) Register(h entity.Handle, id NetworkID) error {
	if !id.Valid() {
		return fmt.Errorf("register %s: %w", h, ErrInvalidNetworkID)
	}
	if !c.store.Exists(h) {
		return fmt.Errorf("register network id %d: %w", id, ErrEntityNotFound)
	}
	if c.record(id) != nil {
		return fmt.Errorf("register network id %d: %w", id, ErrAlreadyRegistered)
	}
	if other, ok := c.byEntity[h]; ok {
		return fmt.Errorf("register %s as %d, already %d: %w", h, id, other, ErrAlreadyRegistered)
	}
	if _, ok := c.dataOnly[id]; ok {
		return fmt.Errorf("register network id %d, held by data-only entity: %w", id, ErrAlreadyRegistered)
	}
	if other, ok := c.dataOnlyByEntity[h]; ok {
		return fmt.Errorf("register %s as %d, already data-only %d: %w", h, id, other, ErrAlreadyRegistered)
	}

	rec := &Record{ID: id, Entity: h}
	c.discover(rec, h)

	for int(id) >= len(c.records) {
		c.records = append(c.records, nil)
	}
	c.records[id] = rec
	c.byEntity[h] = id
	c.count++
	c.ownershipDirty = true
	c.metrics.Registered(c.count)

	c.logger.Debug("Entity registered",
		log.Int32("network_id", int32(id)),
		log.Uint32("entity", uint32(h)),
		log.Int("replicated", len(rec.Replicated)),
		log.Int("predicted", len(rec.Predicted)),
		log.Int("interpolated", len(rec.Interpolated)),
	)
	return nil
}

func (c *Collection) discover(rec *Record, h entity.Handle) {
	opts := AdapterOptions{
		InterpolationCapacity: c.cfg.InterpolationCapacity,
		Instrumentation:       c.cfg.Instrumentation,
	}
	for _, ct := range c.store.Components(h) {
		if _, declared := c.registry.Capability(ct); !declared {
			continue
		}
		a, ok := c.registry.Create(ct, h, opts)
		if !ok {
			c.metrics.FactoryMissing()
			continue
		}
		switch typed := a.(type) {
		case PredictedAdapter:
			rec.Predicted = append(rec.Predicted, typed)
		case InterpolatedAdapter:
			rec.Interpolated = append(rec.Interpolated, typed)
		default:
			rec.Replicated = append(rec.Replicated, a)
		}
	}
	for _, child := range c.store.Children(h) {
		c.discover(rec, child)
	}
}

// Unregister releases id and returns the entity it was bound to.
func (c *Collection) Unregister(id NetworkID) (entity.Handle, error) {
	rec := c.record(id)
	if rec == nil {
		return entity.Nil, fmt.Errorf("unregister network id %d: %w", id, ErrNotRegistered)
	}
	c.records[id] = nil
	delete(c.byEntity, rec.Entity)
	c.count--
	c.ownershipDirty = true
	c.metrics.Registered(c.count)

	c.logger.Debug("Entity unregistered", log.Int32("network_id", int32(id)))
	return rec.Entity, nil
}

// RegisterDataOnly binds id to h for reference resolution only. No adapters
// are created and the entity never takes part in snapshots.
func (c *Collection) RegisterDataOnly(h entity.Handle, id NetworkID) error {
	if !id.Valid() {
		return fmt.Errorf("register data %s: %w", h, ErrInvalidNetworkID)
	}
	if _, ok := c.dataOnly[id]; ok || c.record(id) != nil {
		return fmt.Errorf("register data network id %d: %w", id, ErrAlreadyRegistered)
	}
	if other, ok := c.NetworkIDOf(h); ok {
		return fmt.Errorf("register data %s as %d, already %d: %w", h, id, other, ErrAlreadyRegistered)
	}
	c.dataOnly[id] = h
	c.dataOnlyByEntity[h] = id
	return nil
}

// UnregisterDataOnly releases a data-only id and returns its entity.
func (c *Collection) UnregisterDataOnly(id NetworkID) (entity.Handle, error) {
	h, ok := c.dataOnly[id]
	if !ok {
		return entity.Nil, fmt.Errorf("unregister data network id %d: %w", id, ErrNotRegistered)
	}
	delete(c.dataOnly, id)
	delete(c.dataOnlyByEntity, h)
	return h, nil
}

// NetworkIDOf implements IdentityLookup over full and data-only registrations.
func (c *Collection) NetworkIDOf(h entity.Handle) (NetworkID, bool) {
	if id, ok := c.byEntity[h]; ok {
		return id, true
	}
	id, ok := c.dataOnlyByEntity[h]
	return id, ok
}

// EntityOf implements IdentityLookup over full and data-only registrations.
func (c *Collection) EntityOf(id NetworkID) (entity.Handle, bool) {
	if rec := c.record(id); rec != nil {
		return rec.Entity, true
	}
	h, ok := c.dataOnly[id]
	return h, ok
}

// Record returns the record for id, or nil.
func (c *Collection) Record(id NetworkID) *Record { return c.record(id) }

// Records returns the live records in NetworkID order.
func (c *Collection) Records() []*Record {
	out := make([]*Record, 0, c.count)
	for _, rec := range c.records {
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of full registrations.
func (c *Collection) Len() int { return c.count }

// SetPresentation attaches an optional presentation handle to a record.
func (c *Collection) SetPresentation(id NetworkID, h entity.Handle) error {
	rec := c.record(id)
	if rec == nil {
		return fmt.Errorf("set presentation for network id %d: %w", id, ErrNotRegistered)
	}
	rec.Presentation = h
	return nil
}

// SetTick sets the tick reported to adapters while generating snapshots.
func (c *Collection) SetTick(t Tick) { c.tick = t }

// Tick returns the tick set by SetTick.
func (c *Collection) Tick() Tick { return c.tick }

// References exposes the reference serializer used by adapters.
func (c *Collection) References() *ReferenceSerializer { return c.refs }

// GenerateSnapshot writes the state of id. Predicted components travel in a
// predicting-only section and interpolated components in a
// non-predicting-only section; the writer's audience decides which is kept.
func (c *Collection) GenerateSnapshot(id NetworkID, w codec.Writer) error {
	rec := c.record(id)
	if rec == nil {
		return fmt.Errorf("snapshot network id %d: %w", id, ErrNotRegistered)
	}
	start := byteLen(w)

	for _, a := range rec.Replicated {
		a.Serialize(w, c.context(a.Entity(), c.tick))
	}
	if w.BeginSection(codec.OnlyPredicting) {
		for _, a := range rec.Predicted {
			a.Serialize(w, c.context(a.Entity(), c.tick))
		}
	}
	w.EndSection()
	if w.BeginSection(codec.OnlyNonPredicting) {
		for _, a := range rec.Interpolated {
			a.Serialize(w, c.context(a.Entity(), c.tick))
		}
	}
	w.EndSection()

	if err := w.Err(); err != nil {
		return fmt.Errorf("snapshot network id %d: %w", id, err)
	}
	c.metrics.SnapshotGenerated(byteLen(w) - start)
	return nil
}

// ApplyUpdate decodes one snapshot of id received for tick. Ticks must
// strictly increase per record; a stale or duplicate tick panics with a
// *TickOrderError.
func (c *Collection) ApplyUpdate(tick Tick, id NetworkID, r codec.Reader) error {
	rec := c.record(id)
	if rec == nil {
		c.metrics.UpdateFailed()
		return fmt.Errorf("apply update for network id %d: %w", id, ErrNotRegistered)
	}
	if rec.applied && tick <= rec.lastApplied {
		err := &TickOrderError{ID: id, Tick: tick, LastApplied: rec.lastApplied}
		c.logger.Error("Out of order update", log.Error(err))
		panic(err)
	}

	for _, a := range rec.Replicated {
		a.Deserialize(r, c.context(a.Entity(), tick))
	}

	// Ownership travels in the replicated section and decides which of the
	// gated sections below is present.
	r.SetAudience(codec.Audience{Predicting: c.ownsUpdate(rec)})

	if r.BeginSection(codec.OnlyPredicting) {
		for _, a := range rec.Predicted {
			a.Deserialize(r, c.context(a.Entity(), tick))
		}
	}
	r.EndSection()
	if r.BeginSection(codec.OnlyNonPredicting) {
		for _, a := range rec.Interpolated {
			a.Deserialize(r, c.context(a.Entity(), tick))
		}
	}
	r.EndSection()

	// nothing from a rejected update reaches the store or the buffers
	if err := r.Err(); err != nil {
		rec.each(func(a Adapter) { a.Discard() })
		c.metrics.UpdateFailed()
		return fmt.Errorf("apply update for network id %d at tick %d: %w", id, tick, err)
	}
	rec.each(func(a Adapter) { a.Commit(c.context(a.Entity(), tick)) })
	c.propagate(rec)

	rec.lastApplied = tick
	rec.applied = true
	c.metrics.UpdateApplied()
	return nil
}

// LastAppliedTick returns the newest tick applied to id.
func (c *Collection) LastAppliedTick(id NetworkID) (Tick, bool) {
	rec := c.record(id)
	if rec == nil {
		return 0, false
	}
	return rec.LastAppliedTick()
}

// Rollback restores every predicted component of locally predicted records
// to its last server state.
func (c *Collection) Rollback() {
	c.settleOwnership()
	n := 0
	for _, rec := range c.records {
		if rec == nil || !rec.local {
			continue
		}
		for _, a := range rec.Predicted {
			a.Rollback(c.context(a.Entity(), c.tick))
			n++
		}
	}
	c.metrics.RolledBack(n)
}

// Interpolate writes blended values for every interpolated component of
// records that are not predicted locally.
func (c *Collection) Interpolate(at RenderTime) {
	c.settleOwnership()
	n := 0
	for _, rec := range c.records {
		if rec == nil || rec.local {
			continue
		}
		for _, a := range rec.Interpolated {
			if a.Buffered() == 0 {
				c.logger.Debug("Interpolating without samples",
					log.Int32("network_id", int32(rec.ID)),
					log.String("name", c.registry.Name(a.ComponentType())),
				)
			}
			a.Interpolate(c.context(a.Entity(), at.Tick), at)
			n++
		}
	}
	c.metrics.Interpolated(n)
}

func (c *Collection) context(h entity.Handle, tick Tick) SerializeContext {
	return SerializeContext{
		Store:    c.store,
		Entity:   h,
		Resolver: c.refs,
		Tick:     tick,
	}
}

func (c *Collection) record(id NetworkID) *Record {
	if id < 0 || int(id) >= len(c.records) {
		return nil
	}
	return c.records[id]
}

type lengther interface{ Len() int }

func byteLen(w codec.Writer) int {
	if l, ok := w.(lengther); ok {
		return l.Len()
	}
	return 0
}
