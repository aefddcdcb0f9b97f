package replication

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidNetworkID   = errors.New("invalid network id")
	ErrAlreadyRegistered  = errors.New("network id already registered")
	ErrNotRegistered      = errors.New("network id not registered")
	ErrEntityNotFound     = errors.New("entity not found in store")
	ErrDuplicateFactory   = errors.New("factory already registered for component type")
	ErrInvalidCapability  = errors.New("invalid replication capability")
	ErrCapabilityMismatch = errors.New("adapter does not implement declared capability")
	ErrNoInstrumentation  = errors.New("prediction instrumentation not enabled")
	ErrNoSample           = errors.New("no sample recorded for tick")
)

// TickOrderError reports an update that is not newer than the last one
// applied to a record. It indicates a protocol bug upstream and is raised as
// a panic by Collection.ApplyUpdate.
type TickOrderError struct {
	ID          NetworkID
	Tick        Tick
	LastApplied Tick
}

func (e *TickOrderError) Error() string {
	return fmt.Sprintf("replication: update for network id %d at tick %d is not after last applied tick %d",
		e.ID, e.Tick, e.LastApplied)
}
