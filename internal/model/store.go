// Package model holds the ShowStore: the single owner of the show aggregate.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/audio"
	"github.com/schollz/pyroshow/internal/catalog"
	"github.com/schollz/pyroshow/internal/timing"
	"github.com/schollz/pyroshow/internal/types"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownDefinition = errors.New("unknown effect definition")
	ErrTrackKind         = errors.New("wrong track kind")
	ErrInvalidTrim       = errors.New("invalid trim")
	ErrOutOfRange        = errors.New("value out of range")
	ErrConflict          = errors.New("id already in use")
)

// DefaultDuplicateOffset is how far a duplicated effect is shifted, in ms.
const DefaultDuplicateOffset = 1000

// Store is the canonical show aggregate. Each mutation is validated in full
// before anything is applied, so a rejected edit leaves the show untouched.
// Audio decoding runs without holding the lock.
type Store struct {
	mu       sync.RWMutex
	show     *types.Show
	builtin  timing.Lookup
	strict   bool
	logger   *zap.Logger
	now      func() time.Time
	onChange func(*types.Show)
	pending  atomic.Int32
	decoder  func(context.Context, []byte) (*audio.Buffer, error)
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCatalog replaces the built-in definition lookup.
func WithCatalog(lookup timing.Lookup) Option {
	return func(s *Store) { s.builtin = lookup }
}

// WithStrictImport makes Deserialize reject shows with structural errors.
func WithStrictImport(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithOnChange registers a hook that receives a snapshot after every
// successful mutation. It runs outside the store lock.
func WithOnChange(fn func(*types.Show)) Option {
	return func(s *Store) { s.onChange = fn }
}

func NewStore(name string, opts ...Option) *Store {
	s := &Store{
		builtin: catalog.Lookup,
		logger:  zap.NewNop(),
		now:     time.Now,
		decoder: audio.Decode,
	}
	for _, o := range opts {
		o(s)
	}
	now := s.now()
	s.show = &types.Show{
		Name:              name,
		CreatedAt:         now,
		UpdatedAt:         now,
		Duration:          types.DefaultShowDuration,
		Tracks:            []types.Track{},
		Clips:             []types.AudioClip{},
		Effects:           []types.TimelineEffect{},
		CustomDefinitions: []types.EffectDefinition{},
	}
	return s
}

// Snapshot returns an independent copy of the current show.
func (s *Store) Snapshot() *types.Show {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.show.Clone()
}

// Duration is the show length in ms.
func (s *Store) Duration() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.show.Duration
}

// PendingDecodes is the number of audio imports still decoding.
func (s *Store) PendingDecodes() int {
	return int(s.pending.Load())
}

// mutate runs fn under the write lock. If fn succeeds the update time is
// refreshed and the change hook is notified.
func (s *Store) mutate(fn func(show *types.Show) error) error {
	return s.apply(fn, true)
}

// attach runs fn under the write lock without touching the update time or
// the change hook. It is for runtime state such as decoded buffers that is
// not part of the saved document.
func (s *Store) attach(fn func(show *types.Show) error) error {
	return s.apply(fn, false)
}

func (s *Store) apply(fn func(show *types.Show) error, notify bool) error {
	s.mu.Lock()
	if err := fn(s.show); err != nil {
		s.mu.Unlock()
		return err
	}
	var snap *types.Show
	if notify {
		s.show.UpdatedAt = s.now()
		if s.onChange != nil {
			snap = s.show.Clone()
		}
	}
	s.mu.Unlock()

	if snap != nil {
		s.onChange(snap)
	}
	return nil
}

// Definition resolves a definition id: show-scoped definitions first, then
// the built-in catalog.
func (s *Store) Definition(id string) (types.EffectDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.show)(id)
}

func (s *Store) lookup(show *types.Show) timing.Lookup {
	return func(id string) (types.EffectDefinition, bool) {
		for _, d := range show.CustomDefinitions {
			if d.ID == id {
				return d, true
			}
		}
		return s.builtin(id)
	}
}

func newID() string {
	return uuid.NewString()
}

// trackColor spreads hues by the golden angle so neighbouring tracks differ.
func trackColor(index int) string {
	hue := math.Mod(float64(index)*137.508, 360)
	return colorful.Hsv(hue, 0.65, 0.9).Hex()
}

func requireTrack(show *types.Show, id string, kind types.TrackKind) error {
	t, ok := show.Track(id)
	if !ok {
		return fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	if t.Kind != kind {
		return fmt.Errorf("track %s is %s, need %s: %w", id, t.Kind, kind, ErrTrackKind)
	}
	return nil
}

func indexOfTrack(show *types.Show, id string) int {
	for i, t := range show.Tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func indexOfClip(show *types.Show, id string) int {
	for i, c := range show.Clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func indexOfEffect(show *types.Show, id string) int {
	for i, e := range show.Effects {
		if e.ID == id {
			return i
		}
	}
	return -1
}
