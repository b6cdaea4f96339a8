package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/audio"
	"github.com/schollz/pyroshow/internal/types"
)

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// ShowSource supplies the latest show snapshot. *model.Store satisfies it.
type ShowSource interface {
	Snapshot() *types.Show
}

// Transport is the play/pause/stop/seek/loop state machine. While playing,
// the playhead is the output clock minus an anchored origin. Tick must be
// called regularly; it detects the end of the range and keeps the scheduler
// in step with edits.
type Transport struct {
	mu     sync.Mutex
	clock  audio.Clock
	sched  *Scheduler
	shows  ShowSource
	logger *zap.Logger

	state     State
	origin    time.Duration
	current   int64
	loopStart *int64
	loopEnd   *int64
	looping   bool
}

// NewTransport drives out, reading the show from shows.
func NewTransport(out audio.Output, shows ShowSource, logger *zap.Logger) *Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		clock:  out,
		sched:  NewScheduler(out, logger.Named("scheduler")),
		shows:  shows,
		logger: logger,
	}
}

// Mode returns the current state.
func (t *Transport) Mode() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// State returns the observable playback state.
func (t *Transport) State() types.PlaybackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.PlaybackState{
		IsPlaying:   t.state == Playing,
		CurrentTime: t.now(),
		LoopStart:   copyMs(t.loopStart),
		LoopEnd:     copyMs(t.loopEnd),
		IsLooping:   t.looping,
	}
}

// Current is the playhead position in ms.
func (t *Transport) Current() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now()
}

// ActiveClips lists clips with a live source.
func (t *Transport) ActiveClips() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sched.Active()
}

func (t *Transport) now() int64 {
	if t.state != Playing {
		return t.current
	}
	cur := (t.clock.Now() - t.origin).Milliseconds()
	if cur < 0 {
		return 0
	}
	return cur
}

// Play starts or resumes playback from the current position.
func (t *Transport) Play(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Playing {
		return nil
	}
	show := t.shows.Snapshot()
	if t.current >= show.Duration {
		t.current = 0
	}
	if err := t.startAt(ctx, show, t.current); err != nil {
		return err
	}
	t.logger.Info("play", zap.Int64("at", t.current))
	return nil
}

// Pause freezes the playhead where it is and stops every source.
func (t *Transport) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing {
		return nil
	}
	t.current = t.now()
	t.state = Paused
	t.logger.Info("pause", zap.Int64("at", t.current))
	return t.sched.Stop(ctx)
}

// Stop stops every source and returns the playhead to 0. It may be called
// in any state.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop(ctx)
}

func (t *Transport) stop(ctx context.Context) error {
	if t.state != Stopped {
		t.logger.Info("stop", zap.Int64("at", t.now()))
	}
	t.state = Stopped
	t.current = 0
	return t.sched.Stop(ctx)
}

// Seek moves the playhead to the given ms, clamped to the show. While playing, every
// source is stopped and its teardown awaited before the new position is
// scheduled. Seeking while stopped leaves the transport paused there.
func (t *Transport) Seek(ctx context.Context, to int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seek(ctx, t.shows.Snapshot(), to)
}

func (t *Transport) seek(ctx context.Context, show *types.Show, to int64) error {
	to = clamp(to, 0, show.Duration)
	if t.state != Playing {
		t.current = to
		t.state = Paused
		return nil
	}
	return t.startAt(ctx, show, to)
}

// startAt anchors the origin so that the playhead reads at now and
// schedules from there. Scheduler.Start waits for the old sources first.
func (t *Transport) startAt(ctx context.Context, show *types.Show, at int64) error {
	if err := t.sched.Stop(ctx); err != nil {
		return err
	}
	t.origin = t.clock.Now() - ms(at)
	t.current = at
	t.state = Playing
	return t.sched.Start(ctx, show, at, t.origin)
}

// SetLoop sets or clears the loop region. A nil bound is unset.
func (t *Transport) SetLoop(start, end *int64) error {
	if start != nil && *start < 0 {
		return fmt.Errorf("loop start %d is negative", *start)
	}
	if start != nil && end != nil && *end <= *start {
		return fmt.Errorf("loop end %d must be after start %d", *end, *start)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loopStart = copyMs(start)
	t.loopEnd = copyMs(end)
	return nil
}

func (t *Transport) SetLooping(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.looping = on
}

// rangeEnd is where playback wraps or stops: the loop end when looping
// with one set, otherwise the show duration.
func (t *Transport) rangeEnd(show *types.Show) int64 {
	if t.looping && t.loopEnd != nil && *t.loopEnd < show.Duration {
		return *t.loopEnd
	}
	return show.Duration
}

// Tick is the per-frame polling point. At the end of the range it wraps to
// the loop start when looping, otherwise it stops. Otherwise it reconciles
// the running sources with the latest show.
func (t *Transport) Tick(ctx context.Context) (types.PlaybackState, error) {
	err := t.tick(ctx)
	return t.State(), err
}

func (t *Transport) tick(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing {
		return nil
	}
	show := t.shows.Snapshot()
	cur := t.now()
	end := t.rangeEnd(show)
	if cur < end {
		return t.sched.Sync(ctx, show, cur, t.origin)
	}
	if t.looping && t.loopStart != nil && *t.loopStart < end {
		t.logger.Debug("loop", zap.Int64("from", cur), zap.Int64("to", *t.loopStart))
		return t.seek(ctx, show, *t.loopStart)
	}
	return t.stop(ctx)
}

// Close stops playback.
func (t *Transport) Close(ctx context.Context) error {
	return t.Stop(ctx)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func copyMs(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
