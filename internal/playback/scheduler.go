// Package playback drives the playhead and keeps audio sources phase-locked
// to it.
package playback

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/audio"
	"github.com/schollz/pyroshow/internal/types"
)

// Entry is one clip that must be sounding, in ms relative to the playhead.
type Entry struct {
	Clip types.AudioClip
	// Delay until the source begins; 0 when the playhead is inside the clip.
	Delay int64
	// Offset into the decoded samples.
	Offset int64
	// Span is how much audio remains to be played.
	Span int64
}

// Plan lists the clips on audible tracks whose playable window has not yet
// elapsed at current, ordered by start time.
func Plan(show *types.Show, current int64) []Entry {
	var out []Entry
	for _, c := range show.Clips {
		track, ok := show.Track(c.TrackID)
		if !ok || !show.Audible(track) {
			continue
		}
		playable := c.PlayableDuration()
		if playable <= 0 {
			continue
		}
		start, end := c.StartTime, c.EndTime()
		switch {
		case current >= end:
			continue
		case current >= start:
			out = append(out, Entry{
				Clip:   c,
				Offset: c.TrimStart + (current - start),
				Span:   end - current,
			})
		default:
			out = append(out, Entry{
				Clip:   c,
				Delay:  start - current,
				Offset: c.TrimStart,
				Span:   playable,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Clip.StartTime < out[j].Clip.StartTime
	})
	return out
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func gainFor(volume float64) float64 {
	switch {
	case volume < 0:
		return 0
	case volume > 1:
		return 1
	}
	return volume
}

// signature holds the clip fields that fix what a running source plays.
// Any change requires a restart.
type signature struct {
	startTime int64
	trimStart int64
	trimEnd   int64
	buffer    *audio.Buffer
}

func signatureOf(c types.AudioClip) signature {
	return signature{startTime: c.StartTime, trimStart: c.TrimStart, trimEnd: c.TrimEnd, buffer: c.Buffer}
}

type voice struct {
	src  audio.Source
	sig  signature
	gain float64
}

// Scheduler owns the sources started on an output, at most one per clip.
// It is driven from a single control loop and is not safe for concurrent
// use.
type Scheduler struct {
	out     audio.Output
	logger  *zap.Logger
	active  map[string]*voice
	missing map[string]bool
}

func NewScheduler(out audio.Output, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		out:     out,
		logger:  logger,
		active:  map[string]*voice{},
		missing: map[string]bool{},
	}
}

// Active returns the ids of clips with a live source.
func (s *Scheduler) Active() []string {
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start stops every source, waits for teardown, then schedules show from
// current. origin is the hardware time at which the timeline was at 0.
func (s *Scheduler) Start(ctx context.Context, show *types.Show, current int64, origin time.Duration) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	for _, e := range Plan(show, current) {
		s.start(e, current, origin)
	}
	return nil
}

// Stop tears down every source and blocks until all of them confirm, or
// ctx is done. Sources that never began are dropped silently.
func (s *Scheduler) Stop(ctx context.Context) error {
	dones := make([]<-chan struct{}, 0, len(s.active))
	for id, v := range s.active {
		dones = append(dones, v.src.Stop())
		delete(s.active, id)
	}
	return await(ctx, dones)
}

// Sync reconciles running sources with show at current: sources for clips
// that are gone, silenced or whose timing changed are stopped, and after
// their teardown completes any clip that should be sounding and is not is
// started from the playhead as it stands after the teardown. Volume changes
// are applied in place.
func (s *Scheduler) Sync(ctx context.Context, show *types.Show, current int64, origin time.Duration) error {
	plan := Plan(show, current)
	want := make(map[string]Entry, len(plan))
	for _, e := range plan {
		if e.Clip.Buffer.Released() {
			continue
		}
		want[e.Clip.ID] = e
	}

	var dones []<-chan struct{}
	for id, v := range s.active {
		e, ok := want[id]
		if ok && signatureOf(e.Clip) == v.sig {
			continue
		}
		if ok {
			s.logger.Debug("clip changed while playing, restarting", zap.String("clip", id))
		}
		dones = append(dones, v.src.Stop())
		delete(s.active, id)
	}
	if err := await(ctx, dones); err != nil {
		return err
	}
	if len(dones) > 0 {
		// the playhead kept moving during teardown
		current = (s.out.Now() - origin).Milliseconds()
		plan = Plan(show, current)
	}

	for _, e := range plan {
		v, ok := s.active[e.Clip.ID]
		if !ok {
			s.start(e, current, origin)
			continue
		}
		if g := gainFor(e.Clip.Volume); g != v.gain {
			v.src.SetGain(g)
			v.gain = g
		}
	}
	return nil
}

// SetVolume changes the gain of a running clip without restarting it.
func (s *Scheduler) SetVolume(clipID string, volume float64) {
	if v, ok := s.active[clipID]; ok {
		v.gain = gainFor(volume)
		v.src.SetGain(v.gain)
	}
}

func (s *Scheduler) start(e Entry, current int64, origin time.Duration) {
	c := e.Clip
	if c.Buffer.Released() {
		if !s.missing[c.ID] {
			s.logger.Warn("clip has no decoded audio, skipping", zap.String("clip", c.ID), zap.String("file", c.SourceName))
			s.missing[c.ID] = true
		}
		return
	}
	delete(s.missing, c.ID)

	src := s.out.NewSource(c.ID, c.Buffer)
	gain := gainFor(c.Volume)
	src.SetGain(gain)
	at := origin + ms(current+e.Delay)
	if err := src.Start(at, ms(e.Offset), ms(e.Span)); err != nil {
		s.logger.Error("start source", zap.String("clip", c.ID), zap.Error(err))
		<-src.Stop()
		return
	}
	s.active[c.ID] = &voice{src: src, sig: signatureOf(c), gain: gain}
	s.logger.Debug("source scheduled",
		zap.String("clip", c.ID),
		zap.Int64("delayMs", e.Delay),
		zap.Int64("offsetMs", e.Offset),
		zap.Int64("spanMs", e.Span),
	)
}

func await(ctx context.Context, dones []<-chan struct{}) error {
	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
