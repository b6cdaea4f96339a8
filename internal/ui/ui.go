// Package ui is the terminal preview of a show: a scrolling timeline with
// clip waveforms, effect envelopes and a playhead driven by the transport.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/model"
	"github.com/schollz/pyroshow/internal/playback"
	"github.com/schollz/pyroshow/internal/remote"
	"github.com/schollz/pyroshow/internal/types"
	"github.com/schollz/pyroshow/internal/viewport"
)

const (
	defaultWidth = 80
	seekStep     = 1000
	jumpStep     = 10000
)

type Options struct {
	Store        *model.Store
	Transport    *playback.Transport
	Zoom         float64
	TickInterval time.Duration
	// Remote, when set, delivers OSC commands into the update loop.
	Remote   <-chan remote.Command
	Feedback *remote.Feedback
	Logger   *zap.Logger
}

type tickMsg time.Time

type remoteMsg remote.Command

type Model struct {
	ctx       context.Context
	store     *model.Store
	transport *playback.Transport
	remote    <-chan remote.Command
	feedback  *remote.Feedback
	logger    *zap.Logger
	interval  time.Duration

	vp       *viewport.Viewport
	keys     keyMap
	help     help.Model
	styles   styles
	width    int
	height   int
	follow   bool
	selected int
	status   string
}

func New(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.TickInterval
	if interval <= 0 {
		interval = time.Second / 30
	}
	m := &Model{
		ctx:       ctx,
		store:     opts.Store,
		transport: opts.Transport,
		remote:    opts.Remote,
		feedback:  opts.Feedback,
		logger:    logger,
		interval:  interval,
		keys:      defaultKeys(),
		help:      help.New(),
		styles:    newStyles(),
		width:     defaultWidth,
		follow:    true,
	}
	m.vp = viewport.New(opts.Zoom, float64(m.laneWidth()))
	return m
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForRemote(ch <-chan remote.Command) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		cmd, ok := <-ch
		if !ok {
			return nil
		}
		return remoteMsg(cmd)
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), waitForRemote(m.remote))
}

func (m *Model) laneWidth() int {
	return max(m.width-labelWidth-4, 10)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.vp.Width = float64(m.laneWidth())
		return m, nil
	case tickMsg:
		st, err := m.transport.Tick(m.ctx)
		if err != nil {
			m.fail("tick", err)
		}
		if m.follow && st.IsPlaying {
			m.vp.Follow(st.CurrentTime)
		}
		if m.feedback != nil {
			if err := m.feedback.Send(st); err != nil {
				m.logger.Debug("feedback send failed", zap.Error(err))
			}
		}
		return m, m.tick()
	case remoteMsg:
		cmd := remote.Command(msg)
		if err := cmd.Apply(m.ctx, m.transport); err != nil {
			m.fail("remote "+cmd.Op.String(), err)
		} else {
			m.status = "remote: " + cmd.Op.String()
		}
		return m, waitForRemote(m.remote)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) fail(op string, err error) {
	m.status = fmt.Sprintf("%s: %v", op, err)
	m.logger.Warn("ui action failed", zap.String("op", op), zap.Error(err))
}

func (m *Model) seekBy(delta int64) {
	if err := m.transport.Seek(m.ctx, m.transport.Current()+delta); err != nil {
		m.fail("seek", err)
		return
	}
	m.vp.Follow(m.transport.Current())
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		if err := m.transport.Stop(m.ctx); err != nil {
			m.logger.Warn("stop on quit failed", zap.Error(err))
		}
		return m, tea.Quit
	case key.Matches(msg, k.PlayPause):
		var err error
		if m.transport.Mode() == playback.Playing {
			err = m.transport.Pause(m.ctx)
		} else {
			err = m.transport.Play(m.ctx)
		}
		if err != nil {
			m.fail("play", err)
		}
	case key.Matches(msg, k.Stop):
		if err := m.transport.Stop(m.ctx); err != nil {
			m.fail("stop", err)
		}
	case key.Matches(msg, k.SeekBack):
		m.seekBy(-seekStep)
	case key.Matches(msg, k.SeekFwd):
		m.seekBy(seekStep)
	case key.Matches(msg, k.JumpBack):
		m.seekBy(-jumpStep)
	case key.Matches(msg, k.JumpFwd):
		m.seekBy(jumpStep)
	case key.Matches(msg, k.Home):
		if err := m.transport.Seek(m.ctx, 0); err != nil {
			m.fail("seek", err)
		}
		m.vp.State.ScrollX = 0
	case key.Matches(msg, k.JogLeft):
		m.follow = false
		m.vp.Jog(-1, false)
	case key.Matches(msg, k.JogRight):
		m.follow = false
		m.vp.Jog(1, false)
	case key.Matches(msg, k.FastLeft):
		m.follow = false
		m.vp.Jog(-1, true)
	case key.Matches(msg, k.FastRight):
		m.follow = false
		m.vp.Jog(1, true)
	case key.Matches(msg, k.ZoomIn):
		m.vp.Zoom(true, float64(m.transport.Current()))
	case key.Matches(msg, k.ZoomOut):
		m.vp.Zoom(false, float64(m.transport.Current()))
	case key.Matches(msg, k.Up):
		m.selectTrack(-1)
	case key.Matches(msg, k.Down):
		m.selectTrack(1)
	case key.Matches(msg, k.Mute):
		m.toggleTrack(func(t types.Track) model.TrackPatch {
			muted := !t.Muted
			return model.TrackPatch{Muted: &muted}
		})
	case key.Matches(msg, k.Solo):
		m.toggleTrack(func(t types.Track) model.TrackPatch {
			solo := !t.Solo
			return model.TrackPatch{Solo: &solo}
		})
	case key.Matches(msg, k.LoopIn):
		m.setLoop(true)
	case key.Matches(msg, k.LoopOut):
		m.setLoop(false)
	case key.Matches(msg, k.Loop):
		m.transport.SetLooping(!m.transport.State().IsLooping)
	case key.Matches(msg, k.Follow):
		m.follow = !m.follow
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) visibleLanes() int {
	if m.height == 0 {
		return 8
	}
	return max(m.height-10, 1)
}

func (m *Model) selectTrack(delta int) {
	n := len(m.store.Snapshot().Tracks)
	if n == 0 {
		return
	}
	m.selected = max(0, min(m.selected+delta, n-1))
	top := int(m.vp.State.ScrollY)
	rows := m.visibleLanes()
	maxY := float64(max(n-rows, 0))
	switch {
	case m.selected < top:
		m.vp.ScrollLanes(float64(m.selected-top), maxY)
	case m.selected >= top+rows:
		m.vp.ScrollLanes(float64(m.selected-top-rows+1), maxY)
	}
}

func (m *Model) toggleTrack(patch func(types.Track) model.TrackPatch) {
	show := m.store.Snapshot()
	if m.selected >= len(show.Tracks) {
		return
	}
	t := show.Tracks[m.selected]
	if _, err := m.store.UpdateTrack(t.ID, patch(t)); err != nil {
		m.fail("track", err)
	}
}

func (m *Model) setLoop(in bool) {
	st := m.transport.State()
	at := st.CurrentTime
	start, end := st.LoopStart, st.LoopEnd
	if in {
		start = &at
	} else {
		end = &at
	}
	if err := m.transport.SetLoop(start, end); err != nil {
		m.fail("loop", err)
	}
}

func (m *Model) View() string {
	show := m.store.Snapshot()
	st := m.transport.State()
	s := m.styles
	width := m.laneWidth()
	pad := strings.Repeat(" ", labelWidth)

	var b strings.Builder
	header := fmt.Sprintf("%s  %s %s / %s  zoom %.2f  %s",
		show.Name, transportSymbol(st), viewport.FormatTime(st.CurrentTime),
		viewport.FormatTime(show.Duration), m.vp.State.Zoom, loopSummary(st))
	if m.follow {
		header += "  follow"
	}
	b.WriteString(s.Playback.Render(header) + "\n\n")

	ticks, labels := ruler(m.vp, width)
	b.WriteString(pad + s.Label.Render(labels) + "\n")
	b.WriteString(pad + s.Major.Render(ticks) + "\n")

	head, _ := column(m.vp, st.CurrentTime, width)
	placed := m.store.Resolve(show)
	top := int(m.vp.State.ScrollY)
	rows := m.visibleLanes()
	for i, t := range show.Tracks {
		if i < top || i >= top+rows {
			continue
		}
		var lane []rune
		if t.Kind == types.AudioTrack {
			lane = clipLane(show, t.ID, m.vp, width)
		} else {
			lane = effectLane(placed, t.ID, m.vp, width)
		}
		label := s.Label.Render(trackLabel(t))
		if i == m.selected {
			label = s.Selected.Render(trackLabel(t))
		}
		laneStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color))
		if !show.Audible(t) {
			laneStyle = s.Muted
		}
		left, mid, right := splitAt(lane, head)
		b.WriteString(label + laneStyle.Render(left) + s.Playhead.Render(mid) + laneStyle.Render(right) + "\n")
	}
	if len(show.Tracks) == 0 {
		b.WriteString(s.Label.Render("no tracks") + "\n")
	}

	b.WriteString("\n")
	if d := diagnosticSummary(m.store.Diagnostics()); d != "" {
		b.WriteString(s.Warning.Render(d) + "\n")
	}
	if m.status != "" {
		b.WriteString(s.Label.Render(m.status) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return s.Container.Render(b.String())
}
