package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/pyroshow/internal/catalog"
	"github.com/schollz/pyroshow/internal/types"
)

func sampleShow() *types.Show {
	bpm := 120.0
	created := time.Date(2024, 7, 4, 21, 0, 0, 0, time.UTC)
	return &types.Show{
		Name:      "Harbour",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		Duration:  60000,
		BPM:       &bpm,
		Tracks: []types.Track{
			{ID: "t-audio", Name: "Music", Kind: types.AudioTrack, Color: "#3b82f6", Height: 60},
			{ID: "t-fx", Name: "Barge A", Kind: types.EffectTrack, Color: "#ef4444", Height: 60},
		},
		Clips: []types.AudioClip{
			{ID: "c1", Name: "Overture", SourceName: "overture.wav", StartTime: 2000, Duration: 10000, TrimStart: 1000, TrimEnd: 500, Volume: 0.8, TrackID: "t-audio", Waveform: []float64{0.1, 0.5}},
		},
		Effects: []types.TimelineEffect{
			{ID: "e1", DefinitionID: "custom-1", VisualTime: 10000, FireTime: 7000, Placement: types.Placement{X: -20, Angle: 80}, TrackID: "t-fx", CueLabel: "A1"},
		},
		CustomDefinitions: []types.EffectDefinition{
			{ID: "custom-1", Name: "Red Peony", Category: "shell", FuseTime: 500, LiftTime: 2500, EffectDuration: 3000, Colors: []string{"#ff0000"}, BurstDiameter: 50, MaxHeight: 80},
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Run("round trip keeps every persisted field", func(t *testing.T) {
		show := sampleShow()
		show.Clips[0].Buffer = nil

		data, err := Encode(show)
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, show, got)
	})

	t.Run("derived offsets are written for definitions", func(t *testing.T) {
		data, err := Encode(sampleShow())
		require.NoError(t, err)
		s := string(data)
		assert.Contains(t, s, `"preFiringOffset": 3000`)
		assert.Contains(t, s, `"totalDuration": 6000`)
		assert.Contains(t, s, `"customEffects"`)
		assert.Contains(t, s, `"audioClips"`)
		assert.NotContains(t, s, "Buffer")
	})

	t.Run("missing collections decode as empty", func(t *testing.T) {
		got, err := Decode([]byte(`{"name":"x","duration":1000}`))
		require.NoError(t, err)
		assert.NotNil(t, got.Tracks)
		assert.NotNil(t, got.Clips)
		assert.NotNil(t, got.Effects)
		assert.Empty(t, got.CustomDefinitions)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Decode([]byte(`{"name":`))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("clean show", func(t *testing.T) {
		r := Validate(sampleShow(), catalog.Lookup)
		assert.Empty(t, r)
		assert.NoError(t, r.Err())
	})

	t.Run("structural errors", func(t *testing.T) {
		show := sampleShow()
		show.Tracks = append(show.Tracks, types.Track{ID: "t-fx", Kind: types.EffectTrack})
		show.Clips = append(show.Clips,
			types.AudioClip{ID: "c2", TrackID: "gone", Duration: 100, Volume: 1},
			types.AudioClip{ID: "c3", TrackID: "t-fx", Duration: 100, TrimStart: 80, TrimEnd: 40, Volume: 1.5},
		)
		show.Effects[0].Placement.Angle = 10

		r := Validate(show, catalog.Lookup)
		errs := r.Errors()
		require.Len(t, errs, 6)
		assert.Contains(t, errs[0].String(), "duplicate id")
		assert.Contains(t, errs[1].String(), "missing track")
		assert.Contains(t, errs[2].String(), "placed on effect track")
		assert.Contains(t, errs[3].String(), "trim 80+40")
		assert.Contains(t, errs[4].String(), "volume 1.5")
		assert.Contains(t, errs[5].String(), "placement")

		err := r.Err()
		assert.True(t, errors.Is(err, ErrInvalidShow))
	})

	t.Run("unresolved and negative fire times are warnings", func(t *testing.T) {
		show := sampleShow()
		show.Effects = append(show.Effects,
			types.TimelineEffect{ID: "e2", DefinitionID: "deleted", VisualTime: 1000, Placement: types.DefaultPlacement, TrackID: "t-fx"},
			types.TimelineEffect{ID: "e3", DefinitionID: "custom-1", VisualTime: 1000, FireTime: -2000, Placement: types.DefaultPlacement, TrackID: "t-fx"},
		)
		r := Validate(show, catalog.Lookup)
		assert.Empty(t, r.Errors())
		warnings := r.Warnings()
		require.Len(t, warnings, 2)
		assert.Contains(t, warnings[0].Message, "unresolved")
		assert.Contains(t, warnings[1].Message, "-2000")
		assert.NoError(t, r.Err())
	})

	t.Run("custom definition may not shadow the catalog", func(t *testing.T) {
		show := sampleShow()
		show.CustomDefinitions[0].ID = "shell-peony-75"
		show.Effects[0].DefinitionID = "shell-peony-75"
		r := Validate(show, catalog.Lookup)
		require.Len(t, r.Errors(), 1)
		assert.Contains(t, r.Errors()[0].Message, "shadows")
	})

	t.Run("bad colour is a warning", func(t *testing.T) {
		show := sampleShow()
		show.Tracks[0].Color = "blue-ish"
		r := Validate(show, catalog.Lookup)
		assert.Empty(t, r.Errors())
		assert.Len(t, r.Warnings(), 1)
	})
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"show.json", "show.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			show := sampleShow()
			require.NoError(t, Save(path, show))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, strings.HasSuffix(name, ".gz"), !strings.HasPrefix(string(raw), "{"))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, show, got)
		})
	}

	t.Run("load nonexistent file", func(t *testing.T) {
		_, err := Load("/path/that/does/not/exist/show.json")
		assert.Error(t, err)
	})

	t.Run("save to invalid path", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
		assert.Error(t, Save(filepath.Join(blocker, "show.json"), sampleShow()))
	})
}

func TestAudioFiles(t *testing.T) {
	t.Run("lists audio files only", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "b.wav"), []byte("test"), 0o644)
		os.WriteFile(filepath.Join(dir, "a.FLAC"), []byte("test"), 0o644)
		os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("test"), 0o644)
		os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755)

		assert.Equal(t, []string{"a.FLAC", "b.wav"}, AudioFiles(dir))
	})

	t.Run("nonexistent directory", func(t *testing.T) {
		assert.Equal(t, []string{}, AudioFiles("/path/that/does/not/exist"))
	})
}

func TestAutoSave(t *testing.T) {
	t.Run("autosave debouncing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "autosave", "show.json.gz")
		saver := NewAutoSaver(path, 100*time.Millisecond, nil)

		show := sampleShow()
		saver.Schedule(show)
		saver.Schedule(show)
		show2 := sampleShow()
		show2.Name = "Final"
		saver.Schedule(show2)

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		select {
		case <-saver.Saved():
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for autosave")
		}

		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Final", got.Name)
	})

	t.Run("flush writes immediately", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "show.json")
		saver := NewAutoSaver(path, time.Hour, nil)
		assert.NoError(t, saver.Flush())
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		saver.Schedule(sampleShow())
		require.NoError(t, saver.Flush())
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	// slowSaver blocks its first write until release is closed.
	slowSaver := func(path string) (*AutoSaver, chan struct{}, chan struct{}) {
		saver := NewAutoSaver(path, 10*time.Millisecond, nil)
		started := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		saver.save = func(path string, show *types.Show) error {
			first := false
			once.Do(func() { first = true })
			if first {
				close(started)
				<-release
			}
			return Save(path, show)
		}
		return saver, started, release
	}

	t.Run("flush waits for a save in progress", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "show.json")
		saver, started, release := slowSaver(path)
		saver.Schedule(sampleShow())
		<-started

		flushed := make(chan error, 1)
		go func() { flushed <- saver.Flush() }()
		select {
		case <-flushed:
			t.Fatal("flush returned while a save was still writing")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		require.NoError(t, <-flushed)
		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Harbour", got.Name)
	})

	t.Run("newest snapshot wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "show.json")
		saver, started, release := slowSaver(path)
		saver.Schedule(sampleShow())
		<-started

		newer := sampleShow()
		newer.Name = "Encore"
		saver.Schedule(newer)
		flushed := make(chan error, 1)
		go func() { flushed <- saver.Flush() }()

		close(release)
		require.NoError(t, <-flushed)
		got, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "Encore", got.Name)
	})
}
