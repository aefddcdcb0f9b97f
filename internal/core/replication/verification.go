package replication

import (
	"fmt"

	"github.com/zeusync/replica/internal/core/entity"
	"github.com/zeusync/replica/internal/core/observability/log"
)

// PredictionSample pairs the server and predicted values of one component
// at one tick.
type PredictionSample struct {
	ComponentType entity.ComponentType
	Server        any
	HasServer     bool
	Predicted     any
	HasPredicted  bool
}

// StorePredictions records the live value of every locally predicted
// component as the prediction for tick. It is a no-op without
// instrumentation.
func (c *Collection) StorePredictions(tick Tick) {
	if c.cfg.Instrumentation == nil {
		return
	}
	c.settleOwnership()
	for _, rec := range c.records {
		if rec == nil || !rec.local {
			continue
		}
		for _, a := range rec.Predicted {
			a.StorePrediction(c.context(a.Entity(), tick))
		}
	}
}

// VerifyPrediction checks every predicted component of id: the server
// sample received for tick against the prediction stored for tick. It
// returns true only when all components match.
func (c *Collection) VerifyPrediction(id NetworkID, tick Tick) (bool, error) {
	rec := c.record(id)
	if rec == nil {
		return false, fmt.Errorf("verify network id %d: %w", id, ErrNotRegistered)
	}
	if c.cfg.Instrumentation == nil {
		return false, ErrNoInstrumentation
	}

	match := true
	for _, a := range rec.Predicted {
		tracker := a.Tracker()
		if tracker == nil {
			return false, ErrNoInstrumentation
		}
		ok, err := a.VerifyPrediction(tracker.ServerIndex(tick), tick)
		if err != nil {
			return false, fmt.Errorf("verify %s at tick %d: %w", c.registry.Name(a.ComponentType()), tick, err)
		}
		if !ok {
			c.logger.Debug("Prediction mismatch",
				log.Int32("network_id", int32(id)),
				log.String("name", c.registry.Name(a.ComponentType())),
				log.Uint32("tick", uint32(tick)),
			)
			match = false
		}
	}
	c.metrics.PredictionVerified(match)
	return match, nil
}

// PredictionSamples returns the recorded samples of every predicted
// component of id at tick.
func (c *Collection) PredictionSamples(id NetworkID, tick Tick) []PredictionSample {
	rec := c.record(id)
	if rec == nil {
		return nil
	}
	out := make([]PredictionSample, 0, len(rec.Predicted))
	for _, a := range rec.Predicted {
		s := PredictionSample{ComponentType: a.ComponentType()}
		if tracker := a.Tracker(); tracker != nil {
			s.Server, s.HasServer = tracker.ServerSample(tick)
			s.Predicted, s.HasPredicted = tracker.PredictedSample(tick)
		}
		out = append(out, s)
	}
	return out
}
