// Package storage persists shows as JSON documents and checks them on import.
package storage

import (
	"errors"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/pyroshow/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidShow marks a document that parsed but failed validation.
var ErrInvalidShow = errors.New("invalid show")

// definitionDoc writes the derived offsets next to the base fields so that
// other tools can read them. They are ignored on decode.
type definitionDoc struct {
	types.EffectDefinition
	PreFiringOffset int64 `json:"preFiringOffset"`
	TotalDuration   int64 `json:"totalDuration"`
}

type document struct {
	Name              string                 `json:"name"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	Duration          int64                  `json:"duration"`
	BPM               *float64               `json:"bpm,omitempty"`
	Tracks            []types.Track          `json:"tracks"`
	Clips             []types.AudioClip      `json:"audioClips"`
	Effects           []types.TimelineEffect `json:"effects"`
	CustomDefinitions []definitionDoc        `json:"customEffects"`
}

// Encode serializes the show. Decoded samples are never written.
func Encode(show *types.Show) ([]byte, error) {
	doc := document{
		Name:      show.Name,
		CreatedAt: show.CreatedAt,
		UpdatedAt: show.UpdatedAt,
		Duration:  show.Duration,
		BPM:       show.BPM,
		Tracks:    show.Tracks,
		Clips:     show.Clips,
		Effects:   show.Effects,
	}
	doc.CustomDefinitions = make([]definitionDoc, len(show.CustomDefinitions))
	for i, d := range show.CustomDefinitions {
		doc.CustomDefinitions[i] = definitionDoc{
			EffectDefinition: d,
			PreFiringOffset:  d.PreFiringOffset(),
			TotalDuration:    d.TotalDuration(),
		}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("encode show"))
	}
	return b, nil
}

// Decode parses a document. It performs no validation; see Validate.
func Decode(data []byte) (*types.Show, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fault.Wrap(err, fmsg.With("decode show"))
	}
	show := types.Show{
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Duration:  doc.Duration,
		BPM:       doc.BPM,
		Tracks:    doc.Tracks,
		Clips:     doc.Clips,
		Effects:   doc.Effects,
	}
	show.CustomDefinitions = make([]types.EffectDefinition, len(doc.CustomDefinitions))
	for i, d := range doc.CustomDefinitions {
		show.CustomDefinitions[i] = d.EffectDefinition
	}
	if show.Tracks == nil {
		show.Tracks = []types.Track{}
	}
	if show.Clips == nil {
		show.Clips = []types.AudioClip{}
	}
	if show.Effects == nil {
		show.Effects = []types.TimelineEffect{}
	}
	return &show, nil
}
