package replication

import "github.com/zeusync/replica/internal/core/entity"

// Instrumentation creates prediction trackers for predicted adapters. It is
// optional; without it predicted adapters keep only the latest server state.
type Instrumentation interface {
	TrackPrediction(ct entity.ComponentType, h entity.Handle, equal func(server, predicted any) bool) PredictionTracker
}

// PredictionTracker keeps tick-indexed server and predicted samples of one
// component so predictions can be checked after the fact.
type PredictionTracker interface {
	RecordServer(tick Tick, v any)
	RecordPredicted(tick Tick, v any)

	ServerSample(tick Tick) (any, bool)
	PredictedSample(tick Tick) (any, bool)
	// ServerIndex is the slot of the server sample for tick, -1 if absent.
	ServerIndex(tick Tick) int

	// Verify compares the server sample in slot sampleIndex with the
	// predicted sample at tick.
	Verify(sampleIndex int, tick Tick) (bool, error)
}
