package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/audio"
	"github.com/schollz/pyroshow/internal/types"
)

// AddAudioClip decodes data and places it on an audio track at startTime.
// Decoding happens outside the store lock; other operations proceed while it
// runs. A decode failure is returned as an error wrapping audio.ErrDecode
// and nothing is inserted.
func (s *Store) AddAudioClip(ctx context.Context, data []byte, name, trackID string, startTime int64) (types.AudioClip, error) {
	if startTime < 0 {
		return types.AudioClip{}, fmt.Errorf("start time %d: %w", startTime, ErrOutOfRange)
	}
	s.mu.RLock()
	err := requireTrack(s.show, trackID, types.AudioTrack)
	s.mu.RUnlock()
	if err != nil {
		return types.AudioClip{}, err
	}

	buf, waveform, err := s.decode(ctx, data, name)
	if err != nil {
		return types.AudioClip{}, err
	}

	clip := types.AudioClip{
		ID:         newID(),
		Name:       name,
		SourceName: name,
		StartTime:  startTime,
		Duration:   buf.Duration().Milliseconds(),
		Volume:     1,
		TrackID:    trackID,
		Buffer:     buf,
		Waveform:   waveform,
	}
	err = s.mutate(func(show *types.Show) error {
		// the track may have gone away while decoding
		if err := requireTrack(show, trackID, types.AudioTrack); err != nil {
			return err
		}
		show.Clips = append(show.Clips, clip)
		return nil
	})
	if err != nil {
		buf.Release()
		return types.AudioClip{}, err
	}
	s.logger.Info("audio clip added",
		zap.String("id", clip.ID),
		zap.String("name", name),
		zap.Int64("durationMs", clip.Duration),
	)
	return clip, nil
}

func (s *Store) decode(ctx context.Context, data []byte, name string) (*audio.Buffer, []float64, error) {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	buf, err := s.decoder(ctx, data)
	if err != nil {
		s.logger.Warn("audio decode failed", zap.String("name", name), zap.Error(err))
		return nil, nil, err
	}
	waveform, err := audio.Summarize(data, buf.Duration(), audio.WaveformPoints)
	if err != nil {
		s.logger.Debug("waveform summary fell back to decoded samples", zap.String("name", name), zap.Error(err))
		waveform = audio.PeaksFromBuffer(buf, audio.WaveformPoints)
	}
	return buf, waveform, nil
}

// RelinkAudio attaches decoded samples to a clip loaded from a document.
// Timeline fields are not changed, and neither the update time nor the change
// hook fires: the saved document is the same before and after.
func (s *Store) RelinkAudio(ctx context.Context, id string, data []byte) error {
	s.mu.RLock()
	clip, ok := s.show.Clip(id)
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("clip %s: %w", id, ErrNotFound)
	}

	buf, waveform, err := s.decode(ctx, data, clip.SourceName)
	if err != nil {
		return err
	}
	if got := buf.Duration().Milliseconds(); got != clip.Duration {
		s.logger.Warn("relinked audio length differs",
			zap.String("id", id),
			zap.Int64("storedMs", clip.Duration),
			zap.Int64("decodedMs", got),
		)
	}

	var old *audio.Buffer
	err = s.attach(func(show *types.Show) error {
		i := indexOfClip(show, id)
		if i < 0 {
			return fmt.Errorf("clip %s: %w", id, ErrNotFound)
		}
		old = show.Clips[i].Buffer
		show.Clips[i].Buffer = buf
		if len(show.Clips[i].Waveform) == 0 {
			show.Clips[i].Waveform = waveform
		}
		return nil
	})
	if err != nil {
		buf.Release()
		return err
	}
	if old != nil && old != buf {
		old.Release()
	}
	return nil
}

// ClipPatch lists the clip fields to change; nil fields are left alone.
type ClipPatch struct {
	Name      *string
	StartTime *int64
	TrimStart *int64
	TrimEnd   *int64
	Volume    *float64
	TrackID   *string
}

// UpdateAudioClip applies p. Trims must stay within the clip duration and
// volume within [0,1].
func (s *Store) UpdateAudioClip(id string, p ClipPatch) (types.AudioClip, error) {
	var clip types.AudioClip
	err := s.mutate(func(show *types.Show) error {
		i := indexOfClip(show, id)
		if i < 0 {
			return fmt.Errorf("clip %s: %w", id, ErrNotFound)
		}
		c := show.Clips[i]
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.StartTime != nil {
			if *p.StartTime < 0 {
				return fmt.Errorf("start time %d: %w", *p.StartTime, ErrOutOfRange)
			}
			c.StartTime = *p.StartTime
		}
		if p.TrimStart != nil {
			c.TrimStart = *p.TrimStart
		}
		if p.TrimEnd != nil {
			c.TrimEnd = *p.TrimEnd
		}
		if !c.TrimValid() {
			return fmt.Errorf("trim %d+%d of %d: %w", c.TrimStart, c.TrimEnd, c.Duration, ErrInvalidTrim)
		}
		if p.Volume != nil {
			if *p.Volume < 0 || *p.Volume > 1 {
				return fmt.Errorf("volume %g: %w", *p.Volume, ErrOutOfRange)
			}
			c.Volume = *p.Volume
		}
		if p.TrackID != nil {
			if err := requireTrack(show, *p.TrackID, types.AudioTrack); err != nil {
				return err
			}
			c.TrackID = *p.TrackID
		}
		show.Clips[i] = c
		clip = c
		return nil
	})
	return clip, err
}

// RemoveAudioClip deletes a clip and releases its samples.
func (s *Store) RemoveAudioClip(id string) error {
	var removed types.AudioClip
	err := s.mutate(func(show *types.Show) error {
		i := indexOfClip(show, id)
		if i < 0 {
			return fmt.Errorf("clip %s: %w", id, ErrNotFound)
		}
		removed = show.Clips[i]
		show.Clips = append(show.Clips[:i:i], show.Clips[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	removed.Buffer.Release()
	return nil
}
