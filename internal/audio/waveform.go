package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/schollz/gowaveform"
)

// WaveformPoints is the fixed resolution of a clip's waveform summary.
const WaveformPoints = 512

// Summarize produces a peak envelope of the file in [0,1] with the given
// number of points. The bytes are staged in a temp file for gowaveform.
func Summarize(data []byte, duration time.Duration, points int) ([]float64, error) {
	if points <= 0 || duration <= 0 {
		return nil, fmt.Errorf("summarize: invalid resolution %d over %s", points, duration)
	}
	f, err := os.CreateTemp("", "pyroshow-*."+extensionFor(Sniff(data)))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("create waveform staging file"))
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fault.Wrap(err, fmsg.With("write waveform staging file"))
	}
	if err := f.Close(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("close waveform staging file"))
	}

	wf, err := gowaveform.LoadWaveform(f.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to load waveform: %w", err)
	}
	view, err := wf.GenerateView(gowaveform.WaveformOptions{
		Start: 0,
		End:   duration.Seconds(),
		Width: points,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate view: %w", err)
	}
	if view == nil || len(view.Data) == 0 {
		return nil, fmt.Errorf("waveform view is empty")
	}

	// Data holds a min/max pair per column.
	peaks := make([]float64, points)
	for i := 0; i < len(view.Data)/2 && i < points; i++ {
		lo := int(view.Data[i*2])
		hi := int(view.Data[i*2+1])
		if -lo > hi {
			hi = -lo
		}
		peaks[i] = float64(hi) / 32767
		if peaks[i] > 1 {
			peaks[i] = 1
		}
	}
	return peaks, nil
}

// PeaksFromBuffer computes the same envelope directly from decoded samples.
// Used when gowaveform cannot read the container.
func PeaksFromBuffer(buf *Buffer, points int) []float64 {
	n := buf.Len()
	if n == 0 || points <= 0 {
		return nil
	}
	peaks := make([]float64, points)
	for i := range peaks {
		from := i * n / points
		to := (i + 1) * n / points
		peaks[i] = buf.Peak(from, to)
		if peaks[i] > 1 {
			peaks[i] = 1
		}
	}
	return peaks
}

func extensionFor(format string) string {
	if format == FormatUnknown {
		return "bin"
	}
	return format
}
