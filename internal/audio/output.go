package audio

import (
	"sync"
	"time"
)

// Clock is the monotonic hardware clock of an output.
type Clock interface {
	Now() time.Duration
}

// Output is an audio-output graph. It is created once per process, passed to
// the engine, and closed explicitly on shutdown.
type Output interface {
	Clock
	// NewSource prepares a source for buf. id identifies the owner in logs.
	NewSource(id string, buf *Buffer) Source
	Close() error
}

// Source is a single playback of a buffer region routed through its own gain.
type Source interface {
	// Start plays span of the buffer beginning at offset, starting at
	// hardware time at (immediately when at is not in the future).
	Start(at, offset, span time.Duration) error
	// SetGain applies immediately, including while playing.
	SetGain(gain float64)
	// Stop tears the source down. The returned channel is closed once the
	// source can produce no more sound. Stopping a source that never started,
	// or already stopped, is a no-op.
	Stop() <-chan struct{}
}

// WallClock measures elapsed monotonic time since it was created.
type WallClock struct {
	origin time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

func (c *WallClock) Now() time.Duration {
	return time.Since(c.origin)
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

func (c *ManualClock) Set(d time.Duration) {
	c.mu.Lock()
	c.now = d
	c.mu.Unlock()
}

// Event is one entry in a NullOutput's log.
type Event struct {
	Kind string // "start", "stopped" or "gain"
	ID   string
	At   time.Duration
}

// NullOutput drives no hardware. It follows the supplied clock and records
// what would have been played, which makes it usable headless and in tests.
type NullOutput struct {
	clock Clock
	// TeardownDelay simulates an output whose stop completes asynchronously.
	TeardownDelay time.Duration

	mu      sync.Mutex
	sources []*NullSource
	events  []Event
	closed  bool
}

func NewNullOutput(clock Clock) *NullOutput {
	return &NullOutput{clock: clock}
}

func (o *NullOutput) Now() time.Duration {
	return o.clock.Now()
}

func (o *NullOutput) NewSource(id string, buf *Buffer) Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := &NullSource{ID: id, out: o, Gain: 1}
	o.sources = append(o.sources, s)
	return s
}

func (o *NullOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

func (o *NullOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Sources returns every source created so far.
func (o *NullOutput) Sources() []*NullSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*NullSource(nil), o.sources...)
}

// Active returns the sources that are started and not yet torn down.
func (o *NullOutput) Active() []*NullSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	var active []*NullSource
	for _, s := range o.sources {
		if s.started && !s.stopped {
			active = append(active, s)
		}
	}
	return active
}

func (o *NullOutput) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}

func (o *NullOutput) record(kind, id string) {
	o.events = append(o.events, Event{Kind: kind, ID: id, At: o.clock.Now()})
}

// NullSource records its parameters.
type NullSource struct {
	ID     string
	At     time.Duration
	Offset time.Duration
	Span   time.Duration
	Gain   float64

	out     *NullOutput
	started bool
	stopped bool
	done    chan struct{}
}

func (s *NullSource) Start(at, offset, span time.Duration) error {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	if s.done != nil {
		return nil
	}
	s.At, s.Offset, s.Span = at, offset, span
	s.started = true
	s.out.record("start", s.ID)
	return nil
}

func (s *NullSource) SetGain(gain float64) {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	s.Gain = gain
	if s.started && !s.stopped {
		s.out.record("gain", s.ID)
	}
}

// Started reports whether Start was called before any Stop.
func (s *NullSource) Started() bool {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	return s.started
}

func (s *NullSource) Stopped() bool {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	return s.stopped
}

func (s *NullSource) Stop() <-chan struct{} {
	s.out.mu.Lock()
	if s.done != nil {
		done := s.done
		s.out.mu.Unlock()
		return done
	}
	s.done = make(chan struct{})
	done := s.done
	if !s.started {
		s.stopped = true
		s.out.mu.Unlock()
		close(done)
		return done
	}
	delay := s.out.TeardownDelay
	s.out.mu.Unlock()

	finish := func() {
		s.out.mu.Lock()
		s.stopped = true
		s.out.record("stopped", s.ID)
		s.out.mu.Unlock()
		close(done)
	}
	if delay <= 0 {
		finish()
		return done
	}
	go func() {
		time.Sleep(delay)
		finish()
	}()
	return done
}
