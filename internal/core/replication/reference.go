package replication

import (
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

// IdentityLookup maps between local handles and network ids.
type IdentityLookup interface {
	NetworkIDOf(h entity.Handle) (NetworkID, bool)
	EntityOf(id NetworkID) (entity.Handle, bool)
}

// ReferenceSerializer writes entity references as network ids and resolves
// them back on read. Unresolvable references decode to entity.Nil; they are
// retried naturally when the next update re-reads the field.
type ReferenceSerializer struct {
	store  entity.Store
	lookup IdentityLookup
	logger log.Log
}

var _ ReferenceResolver = (*ReferenceSerializer)(nil)

func NewReferenceSerializer(store entity.Store, lookup IdentityLookup, logger log.Log) *ReferenceSerializer {
	if logger == nil {
		logger = log.Provide()
	}
	return &ReferenceSerializer{store: store, lookup: lookup, logger: logger}
}

func (s *ReferenceSerializer) SerializeReference(w codec.Writer, field string, h entity.Handle) {
	if h.IsNil() || !s.store.Exists(h) {
		w.WriteInt32(field, int32(InvalidNetworkID))
		return
	}
	id, ok := s.lookup.NetworkIDOf(h)
	if !ok {
		s.logger.Error("Entity reference has no network id",
			log.String("field", field),
			log.Uint32("entity", uint32(h)),
		)
		w.WriteInt32(field, int32(InvalidNetworkID))
		return
	}
	w.WriteInt32(field, int32(id))
}

func (s *ReferenceSerializer) DeserializeReference(r codec.Reader, field string) entity.Handle {
	id := NetworkID(r.ReadInt32(field))
	if !id.Valid() {
		return entity.Nil
	}
	h, ok := s.lookup.EntityOf(id)
	if !ok {
		s.logger.Debug("Entity reference not yet resolvable",
			log.String("field", field),
			log.Int32("network_id", int32(id)),
		)
		return entity.Nil
	}
	return h
}
