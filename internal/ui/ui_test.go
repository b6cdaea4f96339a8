package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/pyroshow/internal/audio"
	"github.com/schollz/pyroshow/internal/model"
	"github.com/schollz/pyroshow/internal/playback"
	"github.com/schollz/pyroshow/internal/remote"
	"github.com/schollz/pyroshow/internal/timing"
	"github.com/schollz/pyroshow/internal/types"
	"github.com/schollz/pyroshow/internal/viewport"
)

func TestLevelChar(t *testing.T) {
	assert.Equal(t, '▁', levelChar(0))
	assert.Equal(t, '▄', levelChar(0.5))
	assert.Equal(t, '█', levelChar(1))
	assert.Equal(t, '█', levelChar(3))
}

func TestRuler(t *testing.T) {
	v := viewport.New(1, 1100)
	ticks, labels := ruler(v, 1100)
	tl := []rune(ticks)
	require.Len(t, tl, 1100)
	assert.Equal(t, '│', tl[0])
	assert.Equal(t, '╷', tl[100])
	assert.Equal(t, '│', tl[500])
	assert.Equal(t, '│', tl[1000])
	assert.True(t, strings.HasPrefix(labels, "0:00 "))
	assert.Equal(t, "0:05", strings.TrimSpace(string([]rune(labels)[500:510])))
}

func TestClipLane(t *testing.T) {
	v := viewport.New(0.1, 100)
	show := &types.Show{Clips: []types.AudioClip{
		{ID: "a", TrackID: "t", StartTime: 1000, Duration: 2000, Waveform: []float64{0, 1}},
		{ID: "b", TrackID: "t", StartTime: 5000, Duration: 1000},
		{ID: "c", TrackID: "other", StartTime: 0, Duration: 9000},
	}}
	lane := clipLane(show, "t", v, 100)
	assert.Equal(t, ' ', lane[9])
	assert.Equal(t, '▁', lane[10])
	assert.Equal(t, '█', lane[29])
	assert.Equal(t, ' ', lane[30])
	assert.Equal(t, '▒', lane[50])
	assert.Equal(t, ' ', lane[60])
}

func TestEffectLane(t *testing.T) {
	v := viewport.New(0.1, 100)
	placed := []model.Placed{
		{Effect: types.TimelineEffect{TrackID: "fx"}, Envelope: timing.Envelope{FireTime: 1000, LaunchTime: 1500, VisualTime: 4000, EndTime: 7000}},
		{Effect: types.TimelineEffect{TrackID: "fx"}, Envelope: timing.Envelope{FireTime: -2000, LaunchTime: -1500, VisualTime: 800, EndTime: 900}},
		{Effect: types.TimelineEffect{TrackID: "other"}, Envelope: timing.Envelope{FireTime: 9000, VisualTime: 9500, EndTime: 9800}},
	}
	lane := effectLane(placed, "fx", v, 100)
	assert.Equal(t, '^', lane[10])
	assert.Equal(t, '·', lane[20])
	assert.Equal(t, '*', lane[40])
	assert.Equal(t, '─', lane[55])
	assert.Equal(t, '─', lane[70])
	assert.Equal(t, ' ', lane[71])
	assert.Equal(t, '!', lane[8])
	assert.Equal(t, '·', lane[0])
	assert.Equal(t, ' ', lane[95])
}

func TestTrackLabel(t *testing.T) {
	assert.Equal(t, "M Music       ", trackLabel(types.Track{Name: "Music", Muted: true}))
	assert.Equal(t, "S a very long ", trackLabel(types.Track{Name: "a very long name", Solo: true}))
	assert.Len(t, []rune(trackLabel(types.Track{Name: "x"})), labelWidth)
}

func TestSplitAt(t *testing.T) {
	l, m, r := splitAt([]rune("abcde"), 2)
	assert.Equal(t, []string{"ab", "c", "de"}, []string{l, m, r})
	l, m, r = splitAt([]rune("abc"), 7)
	assert.Equal(t, []string{"abc", "", ""}, []string{l, m, r})
}

func TestLoopSummary(t *testing.T) {
	start, end := int64(1500), int64(61000)
	assert.Equal(t, "loop off", loopSummary(types.PlaybackState{}))
	assert.Equal(t, "loop 0:01.500-1:01.000", loopSummary(types.PlaybackState{IsLooping: true, LoopStart: &start, LoopEnd: &end}))
	assert.Equal(t, "loop 0:00.000-end", loopSummary(types.PlaybackState{IsLooping: true}))
}

type rig struct {
	clock *audio.ManualClock
	store *model.Store
	tr    *playback.Transport
	m     *Model
}

func newRig(t *testing.T) *rig {
	t.Helper()
	clock := &audio.ManualClock{}
	clock.Set(time.Minute)
	store := model.NewStore("finale")
	_, err := store.AddTrack(types.AudioTrack, "Music")
	require.NoError(t, err)
	fx, err := store.AddTrack(types.EffectTrack, "Shells")
	require.NoError(t, err)
	_, err = store.AddEffectInstance("shell-peony-75", fx.ID, 1000)
	require.NoError(t, err)
	tr := playback.NewTransport(audio.NewNullOutput(clock), store, nil)
	m := New(context.Background(), Options{Store: store, Transport: tr, Zoom: 0.1})
	return &rig{clock: clock, store: store, tr: tr, m: m}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTransportKeys(t *testing.T) {
	r := newRig(t)

	r.m.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, playback.Playing, r.tr.Mode())

	r.clock.Advance(500 * time.Millisecond)
	_, cmd := r.m.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, int64(500), r.tr.Current())

	r.m.Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, playback.Paused, r.tr.Mode())

	r.m.Update(runes("."))
	assert.Equal(t, int64(1500), r.tr.Current())
	r.m.Update(runes(">"))
	assert.Equal(t, int64(11500), r.tr.Current())
	r.m.Update(runes("<"))
	r.m.Update(runes("<"))
	assert.Equal(t, int64(0), r.tr.Current())

	r.m.Update(runes("s"))
	assert.Equal(t, playback.Stopped, r.tr.Mode())
}

func TestLoopKeys(t *testing.T) {
	r := newRig(t)
	r.m.Update(runes("."))
	r.m.Update(runes("["))
	r.m.Update(runes("."))
	r.m.Update(runes("."))
	r.m.Update(runes("]"))
	r.m.Update(runes("r"))

	st := r.tr.State()
	require.NotNil(t, st.LoopStart)
	require.NotNil(t, st.LoopEnd)
	assert.Equal(t, int64(1000), *st.LoopStart)
	assert.Equal(t, int64(3000), *st.LoopEnd)
	assert.True(t, st.IsLooping)
}

func TestTrackKeys(t *testing.T) {
	r := newRig(t)
	r.m.Update(runes("m"))
	r.m.Update(tea.KeyMsg{Type: tea.KeyDown})
	r.m.Update(runes("o"))
	r.m.Update(tea.KeyMsg{Type: tea.KeyDown})

	show := r.store.Snapshot()
	assert.True(t, show.Tracks[0].Muted)
	assert.True(t, show.Tracks[1].Solo)
	assert.Equal(t, 1, r.m.selected)
}

func TestViewKeys(t *testing.T) {
	r := newRig(t)
	zoom := r.m.vp.State.Zoom
	r.m.Update(runes("+"))
	assert.Greater(t, r.m.vp.State.Zoom, zoom)

	r.m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.False(t, r.m.follow)
	assert.Greater(t, r.m.vp.State.ScrollX, 0.0)
	r.m.Update(runes("f"))
	assert.True(t, r.m.follow)

	r.m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, float64(120-labelWidth-4), r.m.vp.Width)
}

func TestRemoteMsg(t *testing.T) {
	r := newRig(t)
	_, cmd := r.m.Update(remoteMsg(remote.Command{Op: remote.OpSeek, Ms: 4200}))
	assert.Nil(t, cmd)
	assert.Equal(t, int64(4200), r.tr.Current())
	assert.Equal(t, "remote: seek", r.m.status)
}

func TestQuit(t *testing.T) {
	r := newRig(t)
	r.m.Update(tea.KeyMsg{Type: tea.KeySpace})
	_, cmd := r.m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, playback.Stopped, r.tr.Mode())
}

func TestView(t *testing.T) {
	ConfigureColor(true)
	r := newRig(t)
	out := r.m.View()
	assert.Contains(t, out, "finale")
	assert.Contains(t, out, "Music")
	assert.Contains(t, out, "Shells")
	assert.Contains(t, out, "negative-fire-time")
	assert.Contains(t, out, "!")
}
