package model

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/types"
)

// AddTrack appends a track of the given kind with a palette colour.
func (s *Store) AddTrack(kind types.TrackKind, name string) (types.Track, error) {
	if !kind.Valid() {
		return types.Track{}, fmt.Errorf("track kind %q: %w", kind, ErrTrackKind)
	}
	var track types.Track
	err := s.mutate(func(show *types.Show) error {
		if name == "" {
			name = fmt.Sprintf("%s %d", kind, len(show.Tracks)+1)
		}
		track = types.Track{
			ID:     newID(),
			Name:   name,
			Kind:   kind,
			Color:  trackColor(len(show.Tracks)),
			Height: types.DefaultTrackHeight,
		}
		show.Tracks = append(show.Tracks, track)
		return nil
	})
	if err == nil {
		s.logger.Debug("track added", zap.String("id", track.ID), zap.String("kind", string(kind)))
	}
	return track, err
}

// RemoveTrack deletes a track together with every clip and effect on it.
func (s *Store) RemoveTrack(id string) error {
	var released []types.AudioClip
	err := s.mutate(func(show *types.Show) error {
		i := indexOfTrack(show, id)
		if i < 0 {
			return fmt.Errorf("track %s: %w", id, ErrNotFound)
		}
		show.Tracks = append(show.Tracks[:i:i], show.Tracks[i+1:]...)

		clips := show.Clips[:0:0]
		for _, c := range show.Clips {
			if c.TrackID == id {
				released = append(released, c)
				continue
			}
			clips = append(clips, c)
		}
		show.Clips = clips

		effects := show.Effects[:0:0]
		for _, e := range show.Effects {
			if e.TrackID != id {
				effects = append(effects, e)
			}
		}
		show.Effects = effects
		return nil
	})
	if err != nil {
		return err
	}
	for _, c := range released {
		c.Buffer.Release()
	}
	s.logger.Debug("track removed", zap.String("id", id), zap.Int("clips", len(released)))
	return nil
}

// TrackPatch lists the track fields to change; nil fields are left alone.
type TrackPatch struct {
	Name   *string
	Color  *string
	Muted  *bool
	Solo   *bool
	Height *int
}

func (s *Store) UpdateTrack(id string, p TrackPatch) (types.Track, error) {
	if p.Color != nil {
		if _, err := colorful.Hex(*p.Color); err != nil {
			return types.Track{}, fmt.Errorf("color %q: %w", *p.Color, ErrOutOfRange)
		}
	}
	if p.Height != nil && *p.Height <= 0 {
		return types.Track{}, fmt.Errorf("height %d: %w", *p.Height, ErrOutOfRange)
	}
	var track types.Track
	err := s.mutate(func(show *types.Show) error {
		i := indexOfTrack(show, id)
		if i < 0 {
			return fmt.Errorf("track %s: %w", id, ErrNotFound)
		}
		t := show.Tracks[i]
		if p.Name != nil {
			t.Name = *p.Name
		}
		if p.Color != nil {
			t.Color = *p.Color
		}
		if p.Muted != nil {
			t.Muted = *p.Muted
		}
		if p.Solo != nil {
			t.Solo = *p.Solo
		}
		if p.Height != nil {
			t.Height = *p.Height
		}
		show.Tracks[i] = t
		track = t
		return nil
	})
	return track, err
}
