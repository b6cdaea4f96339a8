package model

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/storage"
	"github.com/schollz/pyroshow/internal/timing"
	"github.com/schollz/pyroshow/internal/types"
)

func (s *Store) SetName(name string) error {
	return s.mutate(func(show *types.Show) error {
		show.Name = name
		return nil
	})
}

// SetDuration changes the show length. It must be positive.
func (s *Store) SetDuration(ms int64) error {
	if ms <= 0 {
		return fmt.Errorf("duration %d: %w", ms, ErrOutOfRange)
	}
	return s.mutate(func(show *types.Show) error {
		show.Duration = ms
		return nil
	})
}

// SetBPM sets the tempo, or clears it when bpm is nil.
func (s *Store) SetBPM(bpm *float64) error {
	if bpm != nil && *bpm <= 0 {
		return fmt.Errorf("bpm %g: %w", *bpm, ErrOutOfRange)
	}
	return s.mutate(func(show *types.Show) error {
		if bpm == nil {
			show.BPM = nil
			return nil
		}
		v := *bpm
		show.BPM = &v
		return nil
	})
}

// Serialize encodes the current show. Decoded samples are not included.
func (s *Store) Serialize() ([]byte, error) {
	return storage.Encode(s.Snapshot())
}

// Deserialize replaces the show with the decoded document. updatedAt is
// reset to now and createdAt is kept from the document. Fire times are
// recomputed for every resolvable effect.
//
// On a parse failure, or a structural error in strict mode, the current
// show is left unchanged. The validation report is returned either way.
func (s *Store) Deserialize(data []byte) (storage.Report, error) {
	show, err := storage.Decode(data)
	if err != nil {
		s.logger.Error("show import failed", zap.Error(err))
		return nil, err
	}

	report := storage.Validate(show, s.builtin)
	for _, issue := range report {
		if issue.Severity == storage.Error {
			s.logger.Warn("show import error", zap.Stringer("issue", issue))
		} else {
			s.logger.Info("show import warning", zap.Stringer("issue", issue))
		}
	}
	if s.strict {
		if err := report.Err(); err != nil {
			s.logger.Error("show import rejected", zap.Error(err))
			return report, err
		}
	}

	if show.Duration <= 0 {
		show.Duration = types.DefaultShowDuration
	}
	lookup := s.lookup(show)
	for i, fx := range show.Effects {
		if def, ok := lookup(fx.DefinitionID); ok {
			show.Effects[i].FireTime = timing.FireTimeFor(fx.VisualTime, def)
		}
	}
	show.UpdatedAt = s.now()

	s.mu.Lock()
	old := s.show
	s.show = show
	s.mu.Unlock()

	for _, c := range old.Clips {
		c.Buffer.Release()
	}
	s.logger.Info("show imported",
		zap.String("name", show.Name),
		zap.Int("tracks", len(show.Tracks)),
		zap.Int("clips", len(show.Clips)),
		zap.Int("effects", len(show.Effects)),
	)
	return report, nil
}

// Placed is an effect with its resolved definition and timing.
type Placed struct {
	Effect     types.TimelineEffect
	Definition types.EffectDefinition
	Envelope   timing.Envelope
}

// Resolve returns the renderable effects of show sorted by fire time.
// Effects whose definition cannot be found are skipped; see Diagnostics.
func (s *Store) Resolve(show *types.Show) []Placed {
	lookup := s.lookup(show)
	out := make([]Placed, 0, len(show.Effects))
	for _, fx := range show.Effects {
		env, err := timing.Resolve(fx, lookup)
		if err != nil {
			continue
		}
		def, _ := lookup(fx.DefinitionID)
		out = append(out, Placed{Effect: fx, Definition: def, Envelope: env})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Envelope.FireTime < out[j].Envelope.FireTime
	})
	return out
}

type DiagnosticKind string

const (
	NegativeFireTime     DiagnosticKind = "negative-fire-time"
	UnresolvedDefinition DiagnosticKind = "unresolved-definition"
	MissingAudio         DiagnosticKind = "missing-audio"
)

type Diagnostic struct {
	Kind     DiagnosticKind
	EntityID string
	Message  string
}

// Diagnostics lists conditions the user should see: effects that must fire
// before the show starts, effects whose definition is gone, and clips with
// no decoded audio.
func (s *Store) Diagnostics() []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Diagnostic
	lookup := s.lookup(s.show)
	for _, fx := range s.show.Effects {
		env, err := timing.Resolve(fx, lookup)
		if err != nil {
			out = append(out, Diagnostic{Kind: UnresolvedDefinition, EntityID: fx.ID, Message: err.Error()})
			continue
		}
		if env.PreShow() {
			out = append(out, Diagnostic{
				Kind:     NegativeFireTime,
				EntityID: fx.ID,
				Message:  fmt.Sprintf("fire signal needed %dms before show start", -env.FireTime),
			})
		}
	}
	for _, c := range s.show.Clips {
		if c.Buffer.Released() {
			out = append(out, Diagnostic{Kind: MissingAudio, EntityID: c.ID, Message: fmt.Sprintf("%s has no decoded audio", c.SourceName)})
		}
	}
	return out
}
