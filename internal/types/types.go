package types

import (
	"time"

	"github.com/schollz/pyroshow/internal/audio"
)

// TrackKind constrains which entities a track may hold.
type TrackKind string

const (
	AudioTrack  TrackKind = "audio"
	EffectTrack TrackKind = "effect"
)

// Valid reports whether k is a known track kind.
func (k TrackKind) Valid() bool {
	return k == AudioTrack || k == EffectTrack
}

const DefaultTrackHeight = 60

type Track struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Kind   TrackKind `json:"type"`
	Color  string    `json:"color"`
	Muted  bool      `json:"muted"`
	Solo   bool      `json:"solo"`
	Height int       `json:"height"`
}

// EffectDefinition describes a pyrotechnic product. Times are milliseconds.
// Definitions are never edited in place once referenced; an edit produces a
// new definition with a new ID.
type EffectDefinition struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	FuseTime       int64    `json:"fuseTime"`
	LiftTime       int64    `json:"liftTime"`
	EffectDuration int64    `json:"effectDuration"`
	Colors         []string `json:"colors"`
	BurstDiameter  float64  `json:"burstDiameter"`
	MaxHeight      float64  `json:"maxHeight"`
	Description    string   `json:"description,omitempty"`
}

// PreFiringOffset is the time between the fire signal and the visible burst.
func (d EffectDefinition) PreFiringOffset() int64 {
	return d.FuseTime + d.LiftTime
}

// TotalDuration spans from the fire signal to the end of the visual effect.
func (d EffectDefinition) TotalDuration() int64 {
	return d.PreFiringOffset() + d.EffectDuration
}

// Placement bounds
const (
	MinPlacementX     = -100.0
	MaxPlacementX     = 100.0
	MinPlacementAngle = 45.0
	MaxPlacementAngle = 135.0
)

// Placement is the 2D launch position: X across the site, Angle in degrees
// from horizontal (90 is vertical).
type Placement struct {
	X     float64 `json:"x"`
	Angle float64 `json:"angle"`
}

var DefaultPlacement = Placement{X: 0, Angle: 90}

func (p Placement) Valid() bool {
	return p.X >= MinPlacementX && p.X <= MaxPlacementX &&
		p.Angle >= MinPlacementAngle && p.Angle <= MaxPlacementAngle
}

// TimelineEffect is a placed instance of a definition. FireTime is derived
// from VisualTime and the definition's pre-firing offset and may be negative.
type TimelineEffect struct {
	ID           string    `json:"id"`
	DefinitionID string    `json:"effectId"`
	VisualTime   int64     `json:"visualTime"`
	FireTime     int64     `json:"fireTime"`
	Placement    Placement `json:"position"`
	TrackID      string    `json:"trackId"`
	CueLabel     string    `json:"cueLabel,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

// AudioClip is a placed audio file. Duration is the full decoded length;
// the playable span excludes TrimStart and TrimEnd.
type AudioClip struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	SourceName string        `json:"fileName"`
	StartTime  int64         `json:"startTime"`
	Duration   int64         `json:"duration"`
	TrimStart  int64         `json:"trimStart"`
	TrimEnd    int64         `json:"trimEnd"`
	Volume     float64       `json:"volume"`
	TrackID    string        `json:"trackId"`
	Buffer     *audio.Buffer `json:"-"`
	Waveform   []float64     `json:"waveformData,omitempty"`
}

func (c AudioClip) PlayableDuration() int64 {
	return c.Duration - c.TrimStart - c.TrimEnd
}

// EndTime is the timeline position where playback of the clip ends.
func (c AudioClip) EndTime() int64 {
	return c.StartTime + c.PlayableDuration()
}

func (c AudioClip) TrimValid() bool {
	return c.TrimStart >= 0 && c.TrimEnd >= 0 && c.TrimStart+c.TrimEnd <= c.Duration
}

const DefaultShowDuration = 5 * 60 * 1000

// Show is the root aggregate.
type Show struct {
	Name              string             `json:"name"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	Duration          int64              `json:"duration"`
	BPM               *float64           `json:"bpm,omitempty"`
	Tracks            []Track            `json:"tracks"`
	Clips             []AudioClip        `json:"audioClips"`
	Effects           []TimelineEffect   `json:"effects"`
	CustomDefinitions []EffectDefinition `json:"customEffects"`
}

func (s *Show) Track(id string) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

func (s *Show) Clip(id string) (AudioClip, bool) {
	for _, c := range s.Clips {
		if c.ID == id {
			return c, true
		}
	}
	return AudioClip{}, false
}

func (s *Show) Effect(id string) (TimelineEffect, bool) {
	for _, e := range s.Effects {
		if e.ID == id {
			return e, true
		}
	}
	return TimelineEffect{}, false
}

// AnySolo reports whether at least one track is soloed.
func (s *Show) AnySolo() bool {
	for _, t := range s.Tracks {
		if t.Solo {
			return true
		}
	}
	return false
}

// Audible applies the mute/solo policy: muted tracks never play; when any
// track is soloed, every soloed track plays and the rest are silent.
func (s *Show) Audible(t Track) bool {
	if t.Muted {
		return false
	}
	if s.AnySolo() {
		return t.Solo
	}
	return true
}

// Clone returns a copy whose slices can be modified independently. Sample
// buffers and waveform summaries are immutable and shared.
func (s *Show) Clone() *Show {
	c := *s
	if s.BPM != nil {
		bpm := *s.BPM
		c.BPM = &bpm
	}
	c.Tracks = append([]Track(nil), s.Tracks...)
	c.Clips = append([]AudioClip(nil), s.Clips...)
	c.Effects = append([]TimelineEffect(nil), s.Effects...)
	c.CustomDefinitions = make([]EffectDefinition, len(s.CustomDefinitions))
	for i, d := range s.CustomDefinitions {
		d.Colors = append([]string(nil), d.Colors...)
		c.CustomDefinitions[i] = d
	}
	return &c
}

// PlaybackState is the transport's observable state.
type PlaybackState struct {
	IsPlaying   bool   `json:"isPlaying"`
	CurrentTime int64  `json:"currentTime"`
	LoopStart   *int64 `json:"loopStart,omitempty"`
	LoopEnd     *int64 `json:"loopEnd,omitempty"`
	IsLooping   bool   `json:"isLooping"`
}

// ViewportState is the editing viewport. Scroll values are pixels.
type ViewportState struct {
	ScrollX float64 `json:"scrollX"`
	ScrollY float64 `json:"scrollY"`
	Zoom    float64 `json:"zoom"`
}

// PixelsPerSecond is derived from the zoom factor.
func (v ViewportState) PixelsPerSecond() float64 {
	return v.Zoom * 100
}
