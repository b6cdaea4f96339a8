// Package timing derives fire times and duration envelopes for placed
// effects. Every function here is pure.
package timing

import (
	"errors"
	"fmt"

	"github.com/schollz/pyroshow/internal/types"
)

// ErrUnresolved is returned when an instance references a definition that
// cannot be found. Callers skip the instance instead of inventing defaults.
var ErrUnresolved = errors.New("effect definition not found")

// Offsets is the derived envelope of a definition, in milliseconds.
type Offsets struct {
	PreFiringOffset int64
	TotalDuration   int64
}

// DeriveOffsets computes the pre-firing offset and total duration of def.
func DeriveOffsets(def types.EffectDefinition) Offsets {
	return Offsets{
		PreFiringOffset: def.PreFiringOffset(),
		TotalDuration:   def.TotalDuration(),
	}
}

// FireTimeFor returns when the ignition signal must be sent so the effect
// bursts at visualTime. The result may be negative.
func FireTimeFor(visualTime int64, def types.EffectDefinition) int64 {
	return visualTime - def.PreFiringOffset()
}

// Lookup resolves a definition by id.
type Lookup func(id string) (types.EffectDefinition, bool)

// Envelope is the resolved timing of one placed effect.
type Envelope struct {
	FireTime   int64
	LaunchTime int64
	VisualTime int64
	EndTime    int64
}

// PreShow reports whether the fire signal falls before show start.
func (e Envelope) PreShow() bool {
	return e.FireTime < 0
}

// Resolve computes the envelope of an instance. An unknown definition yields
// an error wrapping ErrUnresolved.
func Resolve(fx types.TimelineEffect, lookup Lookup) (Envelope, error) {
	def, ok := lookup(fx.DefinitionID)
	if !ok {
		return Envelope{}, fmt.Errorf("effect %s references %q: %w", fx.ID, fx.DefinitionID, ErrUnresolved)
	}
	fire := FireTimeFor(fx.VisualTime, def)
	return Envelope{
		FireTime:   fire,
		LaunchTime: fire + def.FuseTime,
		VisualTime: fx.VisualTime,
		EndTime:    fx.VisualTime + def.EffectDuration,
	}, nil
}
