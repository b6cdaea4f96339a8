package model

import (
	"fmt"

	"github.com/schollz/pyroshow/internal/timing"
	"github.com/schollz/pyroshow/internal/types"
)

// AddEffectInstance places a definition on an effect track so that it
// bursts at visualTime. Nothing is inserted if the definition does not
// resolve.
func (s *Store) AddEffectInstance(definitionID, trackID string, visualTime int64) (types.TimelineEffect, error) {
	var fx types.TimelineEffect
	err := s.mutate(func(show *types.Show) error {
		def, ok := s.lookup(show)(definitionID)
		if !ok {
			return fmt.Errorf("definition %q: %w", definitionID, ErrUnknownDefinition)
		}
		if err := requireTrack(show, trackID, types.EffectTrack); err != nil {
			return err
		}
		fx = types.TimelineEffect{
			ID:           newID(),
			DefinitionID: definitionID,
			VisualTime:   visualTime,
			FireTime:     timing.FireTimeFor(visualTime, def),
			Placement:    types.DefaultPlacement,
			TrackID:      trackID,
		}
		show.Effects = append(show.Effects, fx)
		return nil
	})
	return fx, err
}

// EffectPatch lists the instance fields to change; nil fields are left
// alone. FireTime is not patchable.
type EffectPatch struct {
	DefinitionID *string
	VisualTime   *int64
	Placement    *types.Placement
	TrackID      *string
	CueLabel     *string
	Notes        *string
}

// UpdateEffectInstance applies p. When the visual time or the definition
// changes, the fire time is recomputed from the instance's definition.
func (s *Store) UpdateEffectInstance(id string, p EffectPatch) (types.TimelineEffect, error) {
	var fx types.TimelineEffect
	err := s.mutate(func(show *types.Show) error {
		i := indexOfEffect(show, id)
		if i < 0 {
			return fmt.Errorf("effect %s: %w", id, ErrNotFound)
		}
		e := show.Effects[i]
		if p.DefinitionID != nil {
			e.DefinitionID = *p.DefinitionID
		}
		if p.VisualTime != nil {
			e.VisualTime = *p.VisualTime
		}
		if p.DefinitionID != nil || p.VisualTime != nil {
			def, ok := s.lookup(show)(e.DefinitionID)
			if !ok {
				return fmt.Errorf("definition %q: %w", e.DefinitionID, ErrUnknownDefinition)
			}
			e.FireTime = timing.FireTimeFor(e.VisualTime, def)
		}
		if p.Placement != nil {
			if !p.Placement.Valid() {
				return fmt.Errorf("placement x=%g angle=%g: %w", p.Placement.X, p.Placement.Angle, ErrOutOfRange)
			}
			e.Placement = *p.Placement
		}
		if p.TrackID != nil {
			if err := requireTrack(show, *p.TrackID, types.EffectTrack); err != nil {
				return err
			}
			e.TrackID = *p.TrackID
		}
		if p.CueLabel != nil {
			e.CueLabel = *p.CueLabel
		}
		if p.Notes != nil {
			e.Notes = *p.Notes
		}
		show.Effects[i] = e
		fx = e
		return nil
	})
	return fx, err
}

func (s *Store) RemoveEffectInstance(id string) error {
	return s.mutate(func(show *types.Show) error {
		i := indexOfEffect(show, id)
		if i < 0 {
			return fmt.Errorf("effect %s: %w", id, ErrNotFound)
		}
		show.Effects = append(show.Effects[:i:i], show.Effects[i+1:]...)
		return nil
	})
}

// DuplicateEffectInstance copies an instance under a new id with both
// visual and fire time shifted by offset ms.
func (s *Store) DuplicateEffectInstance(id string, offset int64) (types.TimelineEffect, error) {
	var dup types.TimelineEffect
	err := s.mutate(func(show *types.Show) error {
		src, ok := show.Effect(id)
		if !ok {
			return fmt.Errorf("effect %s: %w", id, ErrNotFound)
		}
		dup = src
		dup.ID = newID()
		dup.VisualTime += offset
		dup.FireTime += offset
		show.Effects = append(show.Effects, dup)
		return nil
	})
	return dup, err
}

// AddCustomDefinition adds a show-scoped definition. An empty id is
// assigned; ids already used by the show or the catalog are rejected.
// Stored definitions are never modified afterwards.
func (s *Store) AddCustomDefinition(def types.EffectDefinition) (types.EffectDefinition, error) {
	if def.FuseTime < 0 || def.LiftTime < 0 || def.EffectDuration < 0 {
		return types.EffectDefinition{}, fmt.Errorf("definition %q has negative timing: %w", def.Name, ErrOutOfRange)
	}
	if def.ID == "" {
		def.ID = "custom-" + newID()
	}
	def.Colors = append([]string(nil), def.Colors...)
	err := s.mutate(func(show *types.Show) error {
		if _, ok := s.lookup(show)(def.ID); ok {
			return fmt.Errorf("definition %q: %w", def.ID, ErrConflict)
		}
		show.CustomDefinitions = append(show.CustomDefinitions, def)
		return nil
	})
	if err != nil {
		return types.EffectDefinition{}, err
	}
	def.Colors = append([]string(nil), def.Colors...)
	return def, nil
}
