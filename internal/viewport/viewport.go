// Package viewport maps show time to pixels and back, generates ruler ticks
// and keeps the scroll/zoom state of the editing view.
package viewport

import (
	"fmt"
	"math"

	"github.com/schollz/pyroshow/internal/types"
)

// MsToPixels converts a time in milliseconds to a pixel offset from show start.
func MsToPixels(ms, pixelsPerSecond float64) float64 {
	return ms / 1000 * pixelsPerSecond
}

// PixelsToMs is the inverse of MsToPixels.
func PixelsToMs(px, pixelsPerSecond float64) float64 {
	return px / pixelsPerSecond * 1000
}

// Interval is a ruler spacing pair in milliseconds.
type Interval struct {
	Minor int64
	Major int64
}

// Intervals selects the ruler spacing for a zoom level.
func Intervals(pixelsPerSecond float64) Interval {
	switch {
	case pixelsPerSecond < 20:
		return Interval{Minor: 10000, Major: 60000}
	case pixelsPerSecond < 50:
		return Interval{Minor: 5000, Major: 30000}
	case pixelsPerSecond < 100:
		return Interval{Minor: 1000, Major: 10000}
	case pixelsPerSecond <= 200:
		return Interval{Minor: 1000, Major: 5000}
	default:
		return Interval{Minor: 500, Major: 5000}
	}
}

// Tick is one ruler mark at Time, drawn at pixel X.
type Tick struct {
	Time  int64
	X     float64
	Major bool
}

// Ticks returns ruler ticks from the minor-aligned floor of startMs through
// endMs inclusive. X is measured from show start, not from the scroll origin.
func Ticks(startMs, endMs, pixelsPerSecond float64) []Tick {
	iv := Intervals(pixelsPerSecond)
	first := int64(math.Floor(startMs/float64(iv.Minor))) * iv.Minor

	var ticks []Tick
	for t := first; float64(t) <= endMs; t += iv.Minor {
		ticks = append(ticks, Tick{
			Time:  t,
			X:     MsToPixels(float64(t), pixelsPerSecond),
			Major: t%iv.Major == 0,
		})
	}
	return ticks
}

// Label formats a tick time as m:ss, with tenths when it is not on a whole second.
func Label(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	mins := ms / 60000
	sec := (ms % 60000) / 1000
	if rem := ms % 1000; rem != 0 {
		return fmt.Sprintf("%s%d:%02d.%d", sign, mins, sec, rem/100)
	}
	return fmt.Sprintf("%s%d:%02d", sign, mins, sec)
}

// FormatTime renders a playhead position as m:ss.mmm.
func FormatTime(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	return fmt.Sprintf("%s%d:%02d.%03d", sign, ms/60000, (ms%60000)/1000, ms%1000)
}

const (
	MinZoom     = 0.05
	MaxZoom     = 20.0
	DefaultZoom = 1.0
)

// Viewport is the scroll/zoom state of a timeline view that is Width pixels wide.
type Viewport struct {
	State types.ViewportState
	Width float64
}

// New returns a viewport scrolled to zero with zoom clamped to the allowed range.
func New(zoom, width float64) *Viewport {
	v := &Viewport{Width: width, State: types.ViewportState{Zoom: DefaultZoom}}
	v.SetZoom(zoom, 0)
	return v
}

// PixelsPerSecond is the horizontal scale at the current zoom.
func (v *Viewport) PixelsPerSecond() float64 {
	return v.State.PixelsPerSecond()
}

// VisibleRange returns the time span covered by the view in milliseconds.
func (v *Viewport) VisibleRange() (float64, float64) {
	pps := v.PixelsPerSecond()
	start := PixelsToMs(v.State.ScrollX, pps)
	return start, start + PixelsToMs(v.Width, pps)
}

// TimeToScreen returns the x position of ms relative to the left edge of the view.
func (v *Viewport) TimeToScreen(ms float64) float64 {
	return MsToPixels(ms, v.PixelsPerSecond()) - v.State.ScrollX
}

// ScreenToTime returns the time under screen position x.
func (v *Viewport) ScreenToTime(x float64) float64 {
	return PixelsToMs(x+v.State.ScrollX, v.PixelsPerSecond())
}

// Ticks returns the ruler ticks for the visible range.
func (v *Viewport) Ticks() []Tick {
	start, end := v.VisibleRange()
	return Ticks(start, end, v.PixelsPerSecond())
}

// Jog scrolls horizontally by a fraction of the visible width.
func (v *Viewport) Jog(direction float64, fast bool) {
	stepPercent := 0.1
	if fast {
		stepPercent = 0.5
	}
	v.State.ScrollX += v.Width * stepPercent * direction
	if v.State.ScrollX < 0 {
		v.State.ScrollX = 0
	}
}

// Zoom steps the zoom in or out, keeping anchorMs at the same screen position.
func (v *Viewport) Zoom(zoomIn bool, anchorMs float64) {
	factor := 1.25
	if !zoomIn {
		factor = 0.8
	}
	v.SetZoom(v.State.Zoom*factor, anchorMs)
}

// SetZoom clamps zoom into range and rescrolls so anchorMs does not move on screen.
func (v *Viewport) SetZoom(zoom, anchorMs float64) {
	anchorX := v.TimeToScreen(anchorMs)
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	v.State.Zoom = zoom
	v.State.ScrollX = MsToPixels(anchorMs, v.PixelsPerSecond()) - anchorX
	if v.State.ScrollX < 0 {
		v.State.ScrollX = 0
	}
}

// Follow pages the view so the playhead stays visible during playback.
func (v *Viewport) Follow(ms int64) {
	x := v.TimeToScreen(float64(ms))
	if x >= 0 && x <= v.Width*0.9 {
		return
	}
	v.State.ScrollX = MsToPixels(float64(ms), v.PixelsPerSecond()) - v.Width*0.1
	if v.State.ScrollX < 0 {
		v.State.ScrollX = 0
	}
}

// ScrollLanes moves the track area vertically within [0, maxY].
func (v *Viewport) ScrollLanes(delta, maxY float64) {
	v.State.ScrollY += delta
	if v.State.ScrollY > maxY {
		v.State.ScrollY = maxY
	}
	if v.State.ScrollY < 0 {
		v.State.ScrollY = 0
	}
}
