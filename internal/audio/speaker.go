package audio

import (
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
)

// SpeakerOutput plays through the system audio device. Its clock counts the
// frames the device has pulled, so it advances with the hardware.
type SpeakerOutput struct {
	format beep.Format
	mixer  *beep.Mixer
	frames atomic.Int64
}

// OpenSpeaker initialises the audio device. Only one may be open per process.
func OpenSpeaker(sampleRate int, bufferSize time.Duration) (*SpeakerOutput, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(bufferSize)); err != nil {
		return nil, fault.Wrap(err, fmsg.With("initialise audio device"))
	}
	o := &SpeakerOutput{
		format: beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2},
		mixer:  &beep.Mixer{},
	}
	speaker.Play(o)
	return o, nil
}

// Stream feeds the device from the mixer and advances the clock.
func (o *SpeakerOutput) Stream(samples [][2]float64) (int, bool) {
	n, ok := o.mixer.Stream(samples)
	o.frames.Add(int64(n))
	return n, ok
}

func (o *SpeakerOutput) Err() error { return nil }

func (o *SpeakerOutput) Now() time.Duration {
	return o.format.SampleRate.D(int(o.frames.Load()))
}

func (o *SpeakerOutput) NewSource(id string, buf *Buffer) Source {
	return &speakerSource{out: o, id: id, buf: buf, gain: 1}
}

// Close silences everything routed to the device.
func (o *SpeakerOutput) Close() error {
	speaker.Clear()
	return nil
}

// speakerSource fields are guarded by the speaker lock, which the device
// goroutine holds while pulling samples.
type speakerSource struct {
	out  *SpeakerOutput
	id   string
	buf  *Buffer
	gain float64

	amp     *effects.Gain
	started bool
	stopped bool
}

func (s *speakerSource) Start(at, offset, span time.Duration) error {
	var region beep.Streamer = s.buf.Range(offset, span)
	if s.buf.Format.SampleRate != s.out.format.SampleRate {
		region = beep.Resample(4, s.buf.Format.SampleRate, s.out.format.SampleRate, region)
	}

	delay := at - s.out.Now()
	if delay < 0 {
		delay = 0
	}

	speaker.Lock()
	defer speaker.Unlock()
	if s.started || s.stopped {
		return nil
	}
	s.amp = &effects.Gain{Streamer: region, Gain: s.gain - 1}
	s.started = true
	s.out.mixer.Add(&gate{src: s, s: beep.Seq(beep.Silence(s.out.format.SampleRate.N(delay)), s.amp)})
	return nil
}

func (s *speakerSource) SetGain(gain float64) {
	speaker.Lock()
	s.gain = gain
	if s.amp != nil {
		s.amp.Gain = gain - 1
	}
	speaker.Unlock()
}

// Stop returns after the mixer can no longer pull from the source, so the
// channel is already closed.
func (s *speakerSource) Stop() <-chan struct{} {
	speaker.Lock()
	s.stopped = true
	speaker.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

// gate ends the stream as soon as its source is stopped; the mixer then drops it.
type gate struct {
	src *speakerSource
	s   beep.Streamer
}

func (g *gate) Stream(samples [][2]float64) (int, bool) {
	if g.src.stopped {
		return 0, false
	}
	return g.s.Stream(samples)
}

func (g *gate) Err() error { return g.s.Err() }
