// Package audio decodes audio files into in-memory sample buffers and plays
// them through an output graph with per-source start offsets and gain.
package audio

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrDecode            = errors.New("audio decode failed")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Container formats recognised by Sniff.
const (
	FormatWAV     = "wav"
	FormatMP3     = "mp3"
	FormatFLAC    = "flac"
	FormatOgg     = "ogg"
	FormatUnknown = ""
)

// Sniff identifies the container format from the leading bytes.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return FormatFLAC
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return FormatOgg
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

// Decode turns raw file bytes into a sample buffer. Every failure other than
// cancellation wraps ErrDecode; unknown containers also match
// ErrUnsupportedFormat.
func Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		buf *Buffer
		err error
	)
	switch Sniff(data) {
	case FormatWAV:
		buf, err = decodeWAV(data)
	case FormatMP3:
		buf, err = decodeStream(func() (beep.StreamSeekCloser, beep.Format, error) {
			return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		})
	case FormatFLAC:
		buf, err = decodeStream(func() (beep.StreamSeekCloser, beep.Format, error) {
			return flac.Decode(bytes.NewReader(data))
		})
	case FormatOgg:
		buf, err = decodeStream(func() (beep.StreamSeekCloser, beep.Format, error) {
			return vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
		})
	default:
		return nil, fault.Wrap(errors.Join(ErrDecode, ErrUnsupportedFormat), fmsg.With("sniff audio container"))
	}
	if err != nil {
		return nil, fault.Wrap(errors.Join(ErrDecode, err), fmsg.With("decode audio"))
	}
	if buf.Len() == 0 {
		return nil, fault.Wrap(ErrDecode, fmsg.With("decoded audio is empty"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeWAV(data []byte) (*Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav header")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pcm.Format == nil || pcm.Format.NumChannels == 0 || pcm.Format.SampleRate == 0 {
		return nil, errors.New("wav has no format chunk")
	}
	return NewBufferFromFrames(pcm.Format.SampleRate, framesFromPCM(pcm, int(dec.BitDepth))), nil
}

// framesFromPCM normalises integer PCM to [-1,1] stereo frames. Mono is
// duplicated to both sides; channels past the second are dropped.
func framesFromPCM(pcm *goaudio.IntBuffer, bitDepth int) [][2]float64 {
	if bitDepth <= 0 {
		bitDepth = pcm.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	ch := pcm.Format.NumChannels
	scale := float64(int64(1) << (bitDepth - 1))
	sample := func(v int) float64 {
		if bitDepth == 8 {
			return float64(v-128) / 128
		}
		return float64(v) / scale
	}

	frames := make([][2]float64, len(pcm.Data)/ch)
	for i := range frames {
		l := sample(pcm.Data[i*ch])
		r := l
		if ch > 1 {
			r = sample(pcm.Data[i*ch+1])
		}
		frames[i] = [2]float64{l, r}
	}
	return frames
}

func decodeStream(open func() (beep.StreamSeekCloser, beep.Format, error)) (*Buffer, error) {
	stream, format, err := open()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	buf := newBuffer(format)
	buf.data.Append(stream)
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}
