package storage

import (
	"fmt"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/schollz/pyroshow/internal/timing"
	"github.com/schollz/pyroshow/internal/types"
)

type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Issue is a single finding about an imported show.
type Issue struct {
	Severity Severity
	Entity   string
	ID       string
	Message  string
}

func (i Issue) String() string {
	if i.ID == "" {
		return fmt.Sprintf("%s: %s: %s", i.Severity, i.Entity, i.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", i.Severity, i.Entity, i.ID, i.Message)
}

type Report []Issue

func (r Report) Errors() []Issue {
	var out []Issue
	for _, i := range r {
		if i.Severity == Error {
			out = append(out, i)
		}
	}
	return out
}

func (r Report) Warnings() []Issue {
	var out []Issue
	for _, i := range r {
		if i.Severity == Warning {
			out = append(out, i)
		}
	}
	return out
}

// Err returns an error wrapping ErrInvalidShow when the report has errors.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.String()
	}
	return fault.Wrap(
		fmt.Errorf("%w: %s", ErrInvalidShow, strings.Join(lines, "; ")),
		fmsg.With(fmt.Sprintf("%d structural errors", len(errs))),
	)
}

type validator struct {
	report Report
}

func (v *validator) add(sev Severity, entity, id, format string, args ...any) {
	v.report = append(v.report, Issue{Severity: sev, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the structure of a decoded show. builtin resolves catalog
// definitions; custom definitions are taken from the show itself.
//
// Structural problems (duplicate ids, orphaned or mismatched track
// references, out of range trims, volumes or placements) are errors.
// Unresolved definitions and negative fire times are warnings.
func Validate(show *types.Show, builtin timing.Lookup) Report {
	v := &validator{}

	if show.Duration <= 0 {
		v.add(Error, "show", "", "duration must be positive, got %d", show.Duration)
	}
	if show.BPM != nil && *show.BPM <= 0 {
		v.add(Error, "show", "", "bpm must be positive, got %g", *show.BPM)
	}

	tracks := map[string]types.TrackKind{}
	for _, t := range show.Tracks {
		switch {
		case t.ID == "":
			v.add(Error, "track", t.Name, "missing id")
			continue
		case tracks[t.ID] != "":
			v.add(Error, "track", t.ID, "duplicate id")
			continue
		}
		if !t.Kind.Valid() {
			v.add(Error, "track", t.ID, "unknown kind %q", t.Kind)
			tracks[t.ID] = "invalid"
			continue
		}
		tracks[t.ID] = t.Kind
		if t.Color != "" {
			if _, err := colorful.Hex(t.Color); err != nil {
				v.add(Warning, "track", t.ID, "color %q is not a hex colour", t.Color)
			}
		}
	}

	custom := map[string]types.EffectDefinition{}
	for _, d := range show.CustomDefinitions {
		switch {
		case d.ID == "":
			v.add(Error, "definition", d.Name, "missing id")
			continue
		case custom[d.ID].ID != "":
			v.add(Error, "definition", d.ID, "duplicate id")
			continue
		}
		if _, ok := builtin(d.ID); ok {
			v.add(Error, "definition", d.ID, "shadows a built-in definition")
		}
		if d.FuseTime < 0 || d.LiftTime < 0 || d.EffectDuration < 0 {
			v.add(Error, "definition", d.ID, "negative timing")
		}
		custom[d.ID] = d
	}
	lookup := func(id string) (types.EffectDefinition, bool) {
		if d, ok := custom[id]; ok {
			return d, true
		}
		return builtin(id)
	}

	seen := map[string]bool{}
	for _, c := range show.Clips {
		if c.ID == "" || seen[c.ID] {
			v.add(Error, "clip", c.ID, "missing or duplicate id")
			continue
		}
		seen[c.ID] = true
		v.trackRef("clip", c.ID, c.TrackID, types.AudioTrack, tracks)
		if c.Duration < 0 {
			v.add(Error, "clip", c.ID, "negative duration")
		}
		if !c.TrimValid() {
			v.add(Error, "clip", c.ID, "trim %d+%d exceeds duration %d", c.TrimStart, c.TrimEnd, c.Duration)
		}
		if c.Volume < 0 || c.Volume > 1 {
			v.add(Error, "clip", c.ID, "volume %g outside [0,1]", c.Volume)
		}
	}

	seen = map[string]bool{}
	for _, fx := range show.Effects {
		if fx.ID == "" || seen[fx.ID] {
			v.add(Error, "effect", fx.ID, "missing or duplicate id")
			continue
		}
		seen[fx.ID] = true
		v.trackRef("effect", fx.ID, fx.TrackID, types.EffectTrack, tracks)
		if !fx.Placement.Valid() {
			v.add(Error, "effect", fx.ID, "placement x=%g angle=%g out of range", fx.Placement.X, fx.Placement.Angle)
		}
		env, err := timing.Resolve(fx, lookup)
		if err != nil {
			v.add(Warning, "effect", fx.ID, "unresolved definition %q", fx.DefinitionID)
			continue
		}
		if env.PreShow() {
			v.add(Warning, "effect", fx.ID, "fire time %d is before show start", env.FireTime)
		}
	}

	return v.report
}

func (v *validator) trackRef(entity, id, trackID string, want types.TrackKind, tracks map[string]types.TrackKind) {
	kind, ok := tracks[trackID]
	switch {
	case !ok:
		v.add(Error, entity, id, "references missing track %q", trackID)
	case kind != want && kind != "invalid":
		v.add(Error, entity, id, "placed on %s track %q", kind, trackID)
	}
}
