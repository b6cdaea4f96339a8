package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/schollz/pyroshow/internal/model"
	"github.com/schollz/pyroshow/internal/types"
	"github.com/schollz/pyroshow/internal/viewport"
)

const labelWidth = 14

var lowerBlocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// levelChar maps a peak in [0,1] to a lower block character.
func levelChar(peak float64) rune {
	if peak <= 0 {
		return lowerBlocks[1]
	}
	idx := int(math.Ceil(peak * float64(len(lowerBlocks)-1)))
	if idx >= len(lowerBlocks) {
		idx = len(lowerBlocks) - 1
	}
	return lowerBlocks[idx]
}

func blankLane(width int) []rune {
	lane := make([]rune, width)
	for i := range lane {
		lane[i] = ' '
	}
	return lane
}

// column converts a time to a lane column; ok is false when it is off screen.
func column(v *viewport.Viewport, ms int64, width int) (int, bool) {
	x := int(math.Floor(v.TimeToScreen(float64(ms))))
	return x, x >= 0 && x < width
}

// ruler renders a tick line and a label line for the visible range.
func ruler(v *viewport.Viewport, width int) (string, string) {
	ticks := blankLane(width)
	labels := blankLane(width)
	nextFree := 0
	for _, t := range v.Ticks() {
		x, ok := column(v, t.Time, width)
		if !ok {
			continue
		}
		if !t.Major {
			if ticks[x] == ' ' {
				ticks[x] = '╷'
			}
			continue
		}
		ticks[x] = '│'
		label := []rune(viewport.Label(t.Time))
		if x < nextFree || x+len(label) > width {
			continue
		}
		copy(labels[x:], label)
		nextFree = x + len(label) + 1
	}
	return string(ticks), string(labels)
}

// clipLane draws the waveform summary of every clip on trackID.
func clipLane(show *types.Show, trackID string, v *viewport.Viewport, width int) []rune {
	lane := blankLane(width)
	for _, c := range show.Clips {
		if c.TrackID != trackID || c.PlayableDuration() <= 0 {
			continue
		}
		start := int(math.Floor(v.TimeToScreen(float64(c.StartTime))))
		end := int(math.Ceil(v.TimeToScreen(float64(c.EndTime()))))
		for x := max(start, 0); x < end && x < width; x++ {
			if len(c.Waveform) == 0 {
				lane[x] = '▒'
				continue
			}
			ms := v.ScreenToTime(float64(x)) - float64(c.StartTime) + float64(c.TrimStart)
			idx := int(ms / float64(c.Duration) * float64(len(c.Waveform)))
			idx = max(0, min(idx, len(c.Waveform)-1))
			lane[x] = levelChar(c.Waveform[idx])
		}
	}
	return lane
}

// effectLane draws each placed effect on trackID: a fire marker, the lift as
// dots, the burst and its duration. Effects that fire before show start get '!'.
func effectLane(placed []model.Placed, trackID string, v *viewport.Viewport, width int) []rune {
	lane := blankLane(width)
	for _, p := range placed {
		if p.Effect.TrackID != trackID {
			continue
		}
		env := p.Envelope
		fire, _ := column(v, env.FireTime, width)
		visual, _ := column(v, env.VisualTime, width)
		end, _ := column(v, env.EndTime, width)
		for x := max(fire+1, 0); x < visual && x < width; x++ {
			lane[x] = '·'
		}
		for x := max(visual+1, 0); x <= end && x < width; x++ {
			lane[x] = '─'
		}
		if x, ok := column(v, env.FireTime, width); ok {
			lane[x] = '^'
		}
		if x, ok := column(v, env.VisualTime, width); ok {
			lane[x] = '*'
			if env.PreShow() {
				lane[x] = '!'
			}
		}
	}
	return lane
}

// trackLabel is the fixed-width left column for a track.
func trackLabel(t types.Track) string {
	flags := " "
	switch {
	case t.Muted:
		flags = "M"
	case t.Solo:
		flags = "S"
	}
	name := []rune(t.Name)
	if len(name) > labelWidth-3 {
		name = name[:labelWidth-3]
	}
	return fmt.Sprintf("%s %-*s ", flags, labelWidth-3, string(name))
}

// splitAt cuts a lane around the playhead column so the caller can style it.
func splitAt(lane []rune, col int) (string, string, string) {
	if col < 0 || col >= len(lane) {
		return string(lane), "", ""
	}
	return string(lane[:col]), string(lane[col]), string(lane[col+1:])
}

func transportSymbol(st types.PlaybackState) string {
	if st.IsPlaying {
		return "▶"
	}
	return "❚❚"
}

func loopSummary(st types.PlaybackState) string {
	if !st.IsLooping {
		return "loop off"
	}
	start, end := "0:00.000", "end"
	if st.LoopStart != nil {
		start = viewport.FormatTime(*st.LoopStart)
	}
	if st.LoopEnd != nil {
		end = viewport.FormatTime(*st.LoopEnd)
	}
	return fmt.Sprintf("loop %s-%s", start, end)
}

func diagnosticSummary(diags []model.Diagnostic) string {
	if len(diags) == 0 {
		return ""
	}
	counts := map[model.DiagnosticKind]int{}
	for _, d := range diags {
		counts[d.Kind]++
	}
	var parts []string
	for _, k := range []model.DiagnosticKind{model.NegativeFireTime, model.UnresolvedDefinition, model.MissingAudio} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	return "⚠ " + strings.Join(parts, ", ") + ": " + diags[0].Message
}
