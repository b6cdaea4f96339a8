package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/pyroshow/internal/audio"
	"github.com/schollz/pyroshow/internal/audio/audiotest"
	"github.com/schollz/pyroshow/internal/storage"
	"github.com/schollz/pyroshow/internal/types"
)

func ptr[T any](v T) *T { return &v }

// steppingClock advances one second on every call.
func steppingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

var peony = types.EffectDefinition{
	ID: "peony", Name: "Peony", Category: "shell",
	FuseTime: 500, LiftTime: 2500, EffectDuration: 3000,
	Colors: []string{"#ff0000"},
}

func newTestStore(t *testing.T, opts ...Option) (*Store, types.Track, types.Track) {
	t.Helper()
	s := NewStore("test", append([]Option{WithClock(steppingClock())}, opts...)...)
	at, err := s.AddTrack(types.AudioTrack, "Music")
	require.NoError(t, err)
	et, err := s.AddTrack(types.EffectTrack, "")
	require.NoError(t, err)
	_, err = s.AddCustomDefinition(peony)
	require.NoError(t, err)
	return s, at, et
}

func TestTracks(t *testing.T) {
	t.Run("add assigns id colour and height", func(t *testing.T) {
		s, at, et := newTestStore(t)
		assert.NotEmpty(t, at.ID)
		assert.NotEqual(t, at.ID, et.ID)
		assert.Equal(t, "effect 2", et.Name)
		assert.Equal(t, types.DefaultTrackHeight, at.Height)
		assert.Regexp(t, `^#[0-9a-f]{6}$`, at.Color)
		assert.NotEqual(t, at.Color, et.Color)
		assert.Len(t, s.Snapshot().Tracks, 2)
	})

	t.Run("unknown kind", func(t *testing.T) {
		s := NewStore("x")
		_, err := s.AddTrack("video", "v")
		assert.ErrorIs(t, err, ErrTrackKind)
	})

	t.Run("remove cascades to clips and effects", func(t *testing.T) {
		s, at, et := newTestStore(t)
		clip, err := s.AddAudioClip(context.Background(), audiotest.WAV(t, 8000, time.Second, 0.5), "a.wav", at.ID, 0)
		require.NoError(t, err)
		_, err = s.AddEffectInstance("peony", et.ID, 5000)
		require.NoError(t, err)

		require.NoError(t, s.RemoveTrack(at.ID))
		snap := s.Snapshot()
		assert.Empty(t, snap.Clips)
		assert.Len(t, snap.Effects, 1)
		assert.True(t, clip.Buffer.Released())

		require.NoError(t, s.RemoveTrack(et.ID))
		assert.Empty(t, s.Snapshot().Effects)
		assert.ErrorIs(t, s.RemoveTrack(et.ID), ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		s, at, _ := newTestStore(t)
		tr, err := s.UpdateTrack(at.ID, TrackPatch{Muted: ptr(true), Color: ptr("#00ff00")})
		require.NoError(t, err)
		assert.True(t, tr.Muted)
		assert.Equal(t, "#00ff00", tr.Color)
		assert.Equal(t, "Music", tr.Name)

		_, err = s.UpdateTrack(at.ID, TrackPatch{Color: ptr("green")})
		assert.ErrorIs(t, err, ErrOutOfRange)
		_, err = s.UpdateTrack(at.ID, TrackPatch{Height: ptr(0)})
		assert.ErrorIs(t, err, ErrOutOfRange)
		_, err = s.UpdateTrack("nope", TrackPatch{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAudioClips(t *testing.T) {
	ctx := context.Background()

	t.Run("add decodes and summarizes", func(t *testing.T) {
		s, at, _ := newTestStore(t)
		clip, err := s.AddAudioClip(ctx, audiotest.WAV(t, 8000, 2*time.Second, 0.5), "song.wav", at.ID, 2000)
		require.NoError(t, err)
		assert.Equal(t, int64(2000), clip.Duration)
		assert.Equal(t, int64(2000), clip.StartTime)
		assert.Equal(t, 1.0, clip.Volume)
		assert.Equal(t, "song.wav", clip.SourceName)
		assert.Len(t, clip.Waveform, audio.WaveformPoints)
		assert.False(t, clip.Buffer.Released())
		assert.Equal(t, 0, s.PendingDecodes())
	})

	t.Run("decode failure inserts nothing", func(t *testing.T) {
		s, at, _ := newTestStore(t)
		_, err := s.AddAudioClip(ctx, []byte("RIFF\x24\x00\x00\x00WAVEjunk"), "bad.wav", at.ID, 0)
		assert.True(t, errors.Is(err, audio.ErrDecode))
		_, err = s.AddAudioClip(ctx, []byte("plain text"), "notes.txt", at.ID, 0)
		assert.ErrorIs(t, err, audio.ErrDecode)
		assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
		assert.Empty(t, s.Snapshot().Clips)
	})

	t.Run("requires an audio track", func(t *testing.T) {
		s, _, et := newTestStore(t)
		_, err := s.AddAudioClip(ctx, audiotest.WAV(t, 8000, time.Second, 0.5), "a.wav", et.ID, 0)
		assert.ErrorIs(t, err, ErrTrackKind)
		_, err = s.AddAudioClip(ctx, audiotest.WAV(t, 8000, time.Second, 0.5), "a.wav", "gone", 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update validates trim and volume atomically", func(t *testing.T) {
		s, at, _ := newTestStore(t)
		clip, err := s.AddAudioClip(ctx, audiotest.WAV(t, 8000, time.Second, 0.5), "a.wav", at.ID, 0)
		require.NoError(t, err)

		got, err := s.UpdateAudioClip(clip.ID, ClipPatch{TrimStart: ptr(int64(200)), TrimEnd: ptr(int64(300)), Volume: ptr(0.5)})
		require.NoError(t, err)
		assert.Equal(t, int64(500), got.PlayableDuration())
		assert.Equal(t, 0.5, got.Volume)

		_, err = s.UpdateAudioClip(clip.ID, ClipPatch{TrimEnd: ptr(int64(900)), Volume: ptr(0.1)})
		assert.ErrorIs(t, err, ErrInvalidTrim)
		_, err = s.UpdateAudioClip(clip.ID, ClipPatch{Volume: ptr(1.5)})
		assert.ErrorIs(t, err, ErrOutOfRange)

		stored, _ := s.Snapshot().Clip(clip.ID)
		assert.Equal(t, int64(300), stored.TrimEnd)
		assert.Equal(t, 0.5, stored.Volume)
	})

	t.Run("remove releases samples", func(t *testing.T) {
		s, at, _ := newTestStore(t)
		clip, err := s.AddAudioClip(ctx, audiotest.WAV(t, 8000, time.Second, 0.5), "a.wav", at.ID, 0)
		require.NoError(t, err)
		require.NoError(t, s.RemoveAudioClip(clip.ID))
		assert.True(t, clip.Buffer.Released())
		assert.ErrorIs(t, s.RemoveAudioClip(clip.ID), ErrNotFound)
	})

	t.Run("relink attaches samples", func(t *testing.T) {
		s, at, _ := newTestStore(t)
		wav := audiotest.WAV(t, 8000, time.Second, 0.5)
		clip, err := s.AddAudioClip(ctx, wav, "a.wav", at.ID, 0)
		require.NoError(t, err)

		data, err := s.Serialize()
		require.NoError(t, err)
		_, err = s.Deserialize(data)
		require.NoError(t, err)

		require.Len(t, s.Diagnostics(), 1)
		assert.Equal(t, MissingAudio, s.Diagnostics()[0].Kind)

		require.NoError(t, s.RelinkAudio(ctx, clip.ID, wav))
		relinked, _ := s.Snapshot().Clip(clip.ID)
		assert.Equal(t, 8000, relinked.Buffer.Len())
		assert.Empty(t, s.Diagnostics())
	})

	t.Run("relink does not count as an edit", func(t *testing.T) {
		changes := 0
		s, at, _ := newTestStore(t, WithOnChange(func(*types.Show) { changes++ }))
		wav := audiotest.WAV(t, 8000, time.Second, 0.5)
		clip, err := s.AddAudioClip(ctx, wav, "a.wav", at.ID, 0)
		require.NoError(t, err)

		data, err := s.Serialize()
		require.NoError(t, err)
		_, err = s.Deserialize(data)
		require.NoError(t, err)
		before := changes
		updated := s.Snapshot().UpdatedAt

		require.NoError(t, s.RelinkAudio(ctx, clip.ID, wav))
		assert.Equal(t, before, changes)
		assert.Equal(t, updated, s.Snapshot().UpdatedAt)

		_, err = s.UpdateAudioClip(clip.ID, ClipPatch{Volume: ptr(0.5)})
		require.NoError(t, err)
		assert.Equal(t, before+1, changes)
	})

	t.Run("store stays usable while a decode runs", func(t *testing.T) {
		s, at, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 5000)
		require.NoError(t, err)

		entered := make(chan struct{})
		release := make(chan struct{})
		s.decoder = func(ctx context.Context, data []byte) (*audio.Buffer, error) {
			close(entered)
			<-release
			return audio.Decode(ctx, data)
		}

		type result struct {
			clip types.AudioClip
			err  error
		}
		wav := audiotest.WAV(t, 8000, time.Second, 0.5)
		done := make(chan result, 1)
		go func() {
			clip, err := s.AddAudioClip(ctx, wav, "slow.wav", at.ID, 0)
			done <- result{clip, err}
		}()
		<-entered

		assert.Equal(t, 1, s.PendingDecodes())
		_, err = s.AddTrack(types.EffectTrack, "finale")
		require.NoError(t, err)
		moved, err := s.UpdateEffectInstance(fx.ID, EffectPatch{VisualTime: ptr(int64(8000))})
		require.NoError(t, err)
		assert.Equal(t, int64(5000), moved.FireTime)
		snap := s.Snapshot()
		assert.Len(t, snap.Tracks, 3)
		assert.Empty(t, snap.Clips)
		assert.Equal(t, 1, s.PendingDecodes())

		close(release)
		var res result
		select {
		case res = <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("decode did not finish")
		}
		require.NoError(t, res.err)
		assert.Equal(t, 0, s.PendingDecodes())
		_, ok := s.Snapshot().Clip(res.clip.ID)
		assert.True(t, ok)
	})
}

func TestEffects(t *testing.T) {
	t.Run("fire time derived on add", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 10000)
		require.NoError(t, err)
		assert.Equal(t, int64(7000), fx.FireTime)
		assert.Equal(t, types.DefaultPlacement, fx.Placement)
	})

	t.Run("unknown definition is a no-op", func(t *testing.T) {
		s, _, et := newTestStore(t)
		_, err := s.AddEffectInstance("missing", et.ID, 10000)
		assert.ErrorIs(t, err, ErrUnknownDefinition)
		assert.Empty(t, s.Snapshot().Effects)
	})

	t.Run("catalog definitions resolve", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("shell-peony-75", et.ID, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(-2000), fx.FireTime)
	})

	t.Run("requires an effect track", func(t *testing.T) {
		s, at, _ := newTestStore(t)
		_, err := s.AddEffectInstance("peony", at.ID, 10000)
		assert.ErrorIs(t, err, ErrTrackKind)
	})

	t.Run("visual time change recomputes fire time", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 10000)
		require.NoError(t, err)

		got, err := s.UpdateEffectInstance(fx.ID, EffectPatch{VisualTime: ptr(int64(12500)), CueLabel: ptr("B2")})
		require.NoError(t, err)
		assert.Equal(t, int64(9500), got.FireTime)
		assert.Equal(t, "B2", got.CueLabel)

		stored, _ := s.Snapshot().Effect(fx.ID)
		assert.Equal(t, int64(9500), stored.FireTime)
	})

	t.Run("definition change recomputes fire time", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 10000)
		require.NoError(t, err)
		got, err := s.UpdateEffectInstance(fx.ID, EffectPatch{DefinitionID: ptr("mine-red-50")})
		require.NoError(t, err)
		assert.Equal(t, int64(9500), got.FireTime)

		_, err = s.UpdateEffectInstance(fx.ID, EffectPatch{DefinitionID: ptr("missing")})
		assert.ErrorIs(t, err, ErrUnknownDefinition)
	})

	t.Run("placement bounds", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 10000)
		require.NoError(t, err)
		_, err = s.UpdateEffectInstance(fx.ID, EffectPatch{Placement: &types.Placement{X: 100, Angle: 135}})
		assert.NoError(t, err)
		_, err = s.UpdateEffectInstance(fx.ID, EffectPatch{Placement: &types.Placement{X: 101, Angle: 90}})
		assert.ErrorIs(t, err, ErrOutOfRange)
		_, err = s.UpdateEffectInstance(fx.ID, EffectPatch{Placement: &types.Placement{X: 0, Angle: 44}})
		assert.ErrorIs(t, err, ErrOutOfRange)
	})

	t.Run("duplicate shifts both times", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 7000)
		require.NoError(t, err)
		require.Equal(t, int64(4000), fx.FireTime)

		dup, err := s.DuplicateEffectInstance(fx.ID, DefaultDuplicateOffset)
		require.NoError(t, err)
		assert.NotEqual(t, fx.ID, dup.ID)
		assert.Equal(t, int64(8000), dup.VisualTime)
		assert.Equal(t, int64(5000), dup.FireTime)
		assert.Equal(t, fx.DefinitionID, dup.DefinitionID)
		assert.Len(t, s.Snapshot().Effects, 2)
	})

	t.Run("remove", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 7000)
		require.NoError(t, err)
		require.NoError(t, s.RemoveEffectInstance(fx.ID))
		assert.ErrorIs(t, s.RemoveEffectInstance(fx.ID), ErrNotFound)
	})

	t.Run("custom definitions", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, err := s.AddCustomDefinition(peony)
		assert.ErrorIs(t, err, ErrConflict)
		_, err = s.AddCustomDefinition(types.EffectDefinition{ID: "shell-peony-75"})
		assert.ErrorIs(t, err, ErrConflict)
		_, err = s.AddCustomDefinition(types.EffectDefinition{Name: "bad", FuseTime: -1})
		assert.ErrorIs(t, err, ErrOutOfRange)

		def, err := s.AddCustomDefinition(types.EffectDefinition{Name: "Blue Comet", FuseTime: 100, LiftTime: 900, EffectDuration: 1500})
		require.NoError(t, err)
		assert.Contains(t, def.ID, "custom-")
		got, ok := s.Definition(def.ID)
		require.True(t, ok)
		assert.Equal(t, int64(1000), got.PreFiringOffset())
		assert.Equal(t, int64(2500), got.TotalDuration())
	})
}

func TestDiagnostics(t *testing.T) {
	s, _, et := newTestStore(t)
	early, err := s.AddEffectInstance("peony", et.ID, 1000)
	require.NoError(t, err)
	_, err = s.AddEffectInstance("peony", et.ID, 5000)
	require.NoError(t, err)

	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, NegativeFireTime, diags[0].Kind)
	assert.Equal(t, early.ID, diags[0].EntityID)
	assert.Contains(t, diags[0].Message, "2000ms")

	placed := s.Resolve(s.Snapshot())
	require.Len(t, placed, 2)
	assert.Equal(t, int64(-2000), placed[0].Envelope.FireTime)
	assert.Equal(t, int64(2000), placed[1].Envelope.FireTime)
}

func TestSerializeDeserialize(t *testing.T) {
	t.Run("round trip resets updatedAt and keeps createdAt", func(t *testing.T) {
		s, _, et := newTestStore(t)
		_, err := s.AddEffectInstance("peony", et.ID, 10000)
		require.NoError(t, err)
		require.NoError(t, s.SetBPM(ptr(128.0)))
		before := s.Snapshot()

		data, err := s.Serialize()
		require.NoError(t, err)

		other := NewStore("other", WithClock(steppingClock()))
		_, err = other.Deserialize(data)
		require.NoError(t, err)
		after := other.Snapshot()

		assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
		assert.False(t, before.UpdatedAt.Equal(after.UpdatedAt))
		assert.Equal(t, before.Name, after.Name)
		assert.Equal(t, before.Tracks, after.Tracks)
		assert.Equal(t, before.Effects, after.Effects)
		assert.Equal(t, before.CustomDefinitions, after.CustomDefinitions)
		assert.Equal(t, 128.0, *after.BPM)
	})

	t.Run("stale fire times are recomputed", func(t *testing.T) {
		s, _, et := newTestStore(t)
		fx, err := s.AddEffectInstance("peony", et.ID, 10000)
		require.NoError(t, err)
		show := s.Snapshot()
		show.Effects[0].FireTime = 1
		data, err := storage.Encode(show)
		require.NoError(t, err)

		_, err = s.Deserialize(data)
		require.NoError(t, err)
		got, _ := s.Snapshot().Effect(fx.ID)
		assert.Equal(t, int64(7000), got.FireTime)
	})

	t.Run("parse failure keeps the current show", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		before := s.Snapshot()
		_, err := s.Deserialize([]byte("{not json"))
		assert.Error(t, err)
		assert.Equal(t, before, s.Snapshot())
	})

	t.Run("strict import rejects structural errors", func(t *testing.T) {
		s, _, _ := newTestStore(t, WithStrictImport(true))
		before := s.Snapshot()
		doc := `{"name":"broken","duration":1000,"tracks":[],"audioClips":[{"id":"c","trackId":"missing","duration":10,"volume":1}]}`
		report, err := s.Deserialize([]byte(doc))
		assert.ErrorIs(t, err, storage.ErrInvalidShow)
		assert.Len(t, report.Errors(), 1)
		assert.Equal(t, before, s.Snapshot())
	})

	t.Run("lenient import keeps going", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		doc := `{"name":"broken","duration":0,"tracks":[],"audioClips":[{"id":"c","trackId":"missing","duration":10,"volume":1}]}`
		report, err := s.Deserialize([]byte(doc))
		require.NoError(t, err)
		assert.Len(t, report.Errors(), 2)
		assert.Equal(t, "broken", s.Snapshot().Name)
		assert.Equal(t, int64(types.DefaultShowDuration), s.Duration())
	})
}

func TestOnChange(t *testing.T) {
	var snaps []*types.Show
	s := NewStore("x", WithOnChange(func(show *types.Show) { snaps = append(snaps, show) }))
	tr, err := s.AddTrack(types.EffectTrack, "fx")
	require.NoError(t, err)
	_, err = s.AddEffectInstance("missing", tr.ID, 0)
	require.Error(t, err)
	require.NoError(t, s.SetName("renamed"))
	assert.ErrorIs(t, s.SetDuration(0), ErrOutOfRange)

	require.Len(t, snaps, 2)
	assert.Len(t, snaps[0].Tracks, 1)
	assert.Equal(t, "renamed", snaps[1].Name)
}
