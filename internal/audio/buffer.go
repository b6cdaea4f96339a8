package audio

import (
	"time"

	"github.com/faiface/beep"
)

// Buffer holds decoded samples in memory. It is owned by the clip that
// produced it and must not be modified after decoding.
type Buffer struct {
	Format beep.Format
	data   *beep.Buffer
}

func newBuffer(format beep.Format) *Buffer {
	return &Buffer{Format: format, data: beep.NewBuffer(format)}
}

// NewBufferFromFrames builds a buffer from stereo frames.
func NewBufferFromFrames(sampleRate int, frames [][2]float64) *Buffer {
	b := newBuffer(beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2})
	b.data.Append(&frameStreamer{frames: frames})
	return b
}

// Len is the number of frames, or 0 once released.
func (b *Buffer) Len() int {
	if b == nil || b.data == nil {
		return 0
	}
	return b.data.Len()
}

func (b *Buffer) Duration() time.Duration {
	return b.Format.SampleRate.D(b.Len())
}

// Released reports whether the samples have been dropped.
func (b *Buffer) Released() bool {
	return b == nil || b.data == nil
}

// Release drops the sample data.
func (b *Buffer) Release() {
	if b != nil {
		b.data = nil
	}
}

// Range returns a streamer over [offset, offset+span), clamped to the buffer.
func (b *Buffer) Range(offset, span time.Duration) beep.StreamSeeker {
	if b == nil {
		return beep.NewBuffer(beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}).Streamer(0, 0)
	}
	if b.data == nil {
		return beep.NewBuffer(b.Format).Streamer(0, 0)
	}
	sr := b.Format.SampleRate
	from := clampFrame(sr.N(offset), b.data.Len())
	to := clampFrame(from+sr.N(span), b.data.Len())
	return b.data.Streamer(from, to)
}

// Peak returns the largest absolute sample in frames [from, to).
func (b *Buffer) Peak(from, to int) float64 {
	if b.Released() {
		return 0
	}
	from = clampFrame(from, b.data.Len())
	to = clampFrame(to, b.data.Len())
	if to <= from {
		return 0
	}
	s := b.data.Streamer(from, to)
	chunk := make([][2]float64, 512)
	peak := 0.0
	for {
		n, ok := s.Stream(chunk)
		for _, f := range chunk[:n] {
			for _, v := range f {
				if v < 0 {
					v = -v
				}
				if v > peak {
					peak = v
				}
			}
		}
		if !ok || n == 0 {
			return peak
		}
	}
}

func clampFrame(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}

type frameStreamer struct {
	frames [][2]float64
	pos    int
}

func (f *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	if f.pos >= len(f.frames) {
		return 0, false
	}
	n := copy(samples, f.frames[f.pos:])
	f.pos += n
	return n, true
}

func (f *frameStreamer) Err() error { return nil }
