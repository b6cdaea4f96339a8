package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/schollz/pyroshow/internal/catalog"
	"github.com/schollz/pyroshow/internal/model"
	"github.com/schollz/pyroshow/internal/storage"
	"github.com/schollz/pyroshow/internal/types"
	"github.com/schollz/pyroshow/internal/viewport"
)

var cmdFlags struct {
	duration string
	bpm      float64
	at       string
	track    string
	cue      string
	x        float64
	angle    float64
	volume   float64
	repeat   int
	every    string
}

var newCmd = &cobra.Command{
	Use:   "new <show.json>",
	Short: "Create an empty show with one audio and one effect track",
	Args:  cobra.ExactArgs(1),
	RunE:  runNew,
}

var infoCmd = &cobra.Command{
	Use:   "info <show.json>",
	Short: "Print the cue sheet: every effect with its fire time, plus warnings",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var validateCmd = &cobra.Command{
	Use:   "validate <show.json>",
	Short: "Check a show file and exit non-zero on structural errors",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the built-in effect definitions",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

var addAudioCmd = &cobra.Command{
	Use:   "add-audio <show.json> <file>",
	Short: "Place an audio file on an audio track",
	Args:  cobra.ExactArgs(2),
	RunE:  runAddAudio,
}

var placeCmd = &cobra.Command{
	Use:   "place <show.json> <effect-id>",
	Short: "Place an effect so its burst is seen at --at",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlace,
}

func init() {
	newCmd.Flags().StringVar(&cmdFlags.duration, "duration", "5m", "Show length (ms or a duration like 4m30s)")
	newCmd.Flags().Float64Var(&cmdFlags.bpm, "bpm", 0, "Tempo of the soundtrack (0 leaves it unset)")

	addAudioCmd.Flags().StringVar(&cmdFlags.at, "at", "0", "Timeline start (ms or a duration like 1m2.5s)")
	addAudioCmd.Flags().StringVar(&cmdFlags.track, "track", "", "Audio track id or name (default: first audio track)")
	addAudioCmd.Flags().Float64Var(&cmdFlags.volume, "volume", 1, "Clip volume, 0 to 1")

	placeCmd.Flags().StringVar(&cmdFlags.at, "at", "0", "Visual time of the burst (ms or a duration)")
	placeCmd.Flags().StringVar(&cmdFlags.track, "track", "", "Effect track id or name (default: first effect track)")
	placeCmd.Flags().StringVar(&cmdFlags.cue, "cue", "", "Cue label")
	placeCmd.Flags().Float64Var(&cmdFlags.x, "x", types.DefaultPlacement.X, "Launch position across the site, -100 to 100")
	placeCmd.Flags().Float64Var(&cmdFlags.angle, "angle", types.DefaultPlacement.Angle, "Launch angle in degrees, 45 to 135")
	placeCmd.Flags().IntVar(&cmdFlags.repeat, "repeat", 0, "Place this many extra copies after the first")
	placeCmd.Flags().StringVar(&cmdFlags.every, "every", "", "Spacing between copies (default: storage.duplicate_offset_ms)")
}

// parseTime accepts plain milliseconds or a Go duration string.
func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: use milliseconds or a duration like 1m30s", s)
	}
	return d.Milliseconds(), nil
}

// findTrack resolves ref by id, then by name. An empty ref picks the first
// track of kind.
func findTrack(show *types.Show, ref string, kind types.TrackKind) (types.Track, error) {
	for _, t := range show.Tracks {
		if t.Kind != kind {
			continue
		}
		if ref == "" || t.ID == ref || strings.EqualFold(t.Name, ref) {
			return t, nil
		}
	}
	if ref == "" {
		return types.Track{}, fmt.Errorf("show has no %s track", kind)
	}
	return types.Track{}, fmt.Errorf("no %s track %q", kind, ref)
}

func runNew(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	duration, err := parseTime(cmdFlags.duration)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, "", false, false)
	if err != nil {
		return err
	}
	defer s.close()

	store := s.store
	if err := store.SetName(showName(path)); err != nil {
		return err
	}
	if err := store.SetDuration(duration); err != nil {
		return err
	}
	if cmdFlags.bpm > 0 {
		bpm := cmdFlags.bpm
		if err := store.SetBPM(&bpm); err != nil {
			return err
		}
	}
	if _, err := store.AddTrack(types.AudioTrack, "Music"); err != nil {
		return err
	}
	if _, err := store.AddTrack(types.EffectTrack, "Shells"); err != nil {
		return err
	}
	if err := storage.Save(path, store.Snapshot()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", path, viewport.FormatTime(duration))
	return nil
}

func runAddAudio(cmd *cobra.Command, args []string) error {
	path, file := args[0], args[1]
	at, err := parseTime(cmdFlags.at)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, path, false, false)
	if err != nil {
		return err
	}
	defer s.close()

	track, err := findTrack(s.store.Snapshot(), cmdFlags.track, types.AudioTrack)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	clip, err := s.store.AddAudioClip(cmd.Context(), data, filepath.Base(file), track.ID, at)
	if err != nil {
		return err
	}
	if cmdFlags.volume != 1 {
		vol := cmdFlags.volume
		if clip, err = s.store.UpdateAudioClip(clip.ID, model.ClipPatch{Volume: &vol}); err != nil {
			return err
		}
	}
	if err := storage.Save(path, s.store.Snapshot()); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "added %s on %s: %s to %s\n", clip.Name, track.Name,
		viewport.FormatTime(clip.StartTime), viewport.FormatTime(clip.EndTime()))
	if dir, _ := filepath.Abs(filepath.Dir(file)); dir != absDir(s.audioDir()) {
		fmt.Fprintf(out, "note: playback looks for %s in %s\n", clip.SourceName, s.audioDir())
	}
	return nil
}

func absDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}

func runPlace(cmd *cobra.Command, args []string) error {
	path, defID := args[0], args[1]
	at, err := parseTime(cmdFlags.at)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, path, false, false)
	if err != nil {
		return err
	}
	defer s.close()

	track, err := findTrack(s.store.Snapshot(), cmdFlags.track, types.EffectTrack)
	if err != nil {
		return err
	}
	fx, err := s.store.AddEffectInstance(defID, track.ID, at)
	if err != nil {
		return err
	}
	patch := model.EffectPatch{}
	if cmdFlags.cue != "" {
		patch.CueLabel = &cmdFlags.cue
	}
	if p := (types.Placement{X: cmdFlags.x, Angle: cmdFlags.angle}); p != fx.Placement {
		patch.Placement = &p
	}
	if patch.CueLabel != nil || patch.Placement != nil {
		if fx, err = s.store.UpdateEffectInstance(fx.ID, patch); err != nil {
			return err
		}
	}
	every := s.cfg.Storage.DuplicateOffsetMs
	if cmdFlags.every != "" {
		if every, err = parseTime(cmdFlags.every); err != nil {
			return err
		}
	}
	placed := []types.TimelineEffect{fx}
	for i := 0; i < cmdFlags.repeat; i++ {
		dup, err := s.store.DuplicateEffectInstance(placed[len(placed)-1].ID, every)
		if err != nil {
			return err
		}
		placed = append(placed, dup)
	}
	if err := storage.Save(path, s.store.Snapshot()); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, fx := range placed {
		fmt.Fprintf(out, "placed %s on %s: burst %s, fire %s\n", defID, track.Name,
			viewport.FormatTime(fx.VisualTime), viewport.FormatTime(fx.FireTime))
		if fx.FireTime < 0 {
			fmt.Fprintf(out, "warning: fire signal needed %dms before show start\n", -fx.FireTime)
		}
	}
	return nil
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0], false, false)
	if err != nil {
		return err
	}
	defer s.close()

	show := s.store.Snapshot()
	out := cmd.OutOrStdout()
	bpm := "-"
	if show.BPM != nil {
		bpm = strconv.FormatFloat(*show.BPM, 'f', -1, 64)
	}
	fmt.Fprintf(out, "%s\nduration %s  bpm %s  tracks %d  clips %d  effects %d\n",
		show.Name, viewport.FormatTime(show.Duration), bpm,
		len(show.Tracks), len(show.Clips), len(show.Effects))

	trackName := func(id string) string {
		if t, ok := show.Track(id); ok {
			return t.Name
		}
		return id
	}

	if len(show.Clips) > 0 {
		t := newTable().Headers("CLIP", "TRACK", "FILE", "START", "END", "VOLUME")
		for _, c := range show.Clips {
			t.Row(c.Name, trackName(c.TrackID), c.SourceName,
				viewport.FormatTime(c.StartTime), viewport.FormatTime(c.EndTime()),
				strconv.FormatFloat(c.Volume, 'f', 2, 64))
		}
		fmt.Fprintln(out, t.Render())
	}

	placed := s.store.Resolve(show)
	if len(placed) > 0 {
		t := newTable().Headers("FIRE", "BURST", "END", "EFFECT", "TRACK", "CUE")
		for _, p := range placed {
			fire := viewport.FormatTime(p.Envelope.FireTime)
			if p.Envelope.PreShow() {
				fire += " !"
			}
			t.Row(fire, viewport.FormatTime(p.Envelope.VisualTime), viewport.FormatTime(p.Envelope.EndTime),
				p.Definition.Name, trackName(p.Effect.TrackID), p.Effect.CueLabel)
		}
		fmt.Fprintln(out, t.Render())
	}

	for _, issue := range s.report.Errors() {
		fmt.Fprintf(out, "error: %s\n", issue)
	}
	for _, d := range s.store.Diagnostics() {
		fmt.Fprintf(out, "warning: %s %s: %s\n", d.Kind, d.EntityID, d.Message)
	}
	return nil
}

var errInvalid = errors.New("show has structural errors")

func runValidate(cmd *cobra.Command, args []string) error {
	show, err := storage.Load(args[0])
	if err != nil {
		return err
	}
	report := storage.Validate(show, catalog.Lookup)
	out := cmd.OutOrStdout()
	for _, issue := range report {
		fmt.Fprintln(out, issue)
	}
	if report.Err() != nil {
		cmd.SilenceUsage = true
		return fmt.Errorf("%s: %d errors, %d warnings: %w", args[0], len(report.Errors()), len(report.Warnings()), errInvalid)
	}
	fmt.Fprintf(out, "%s: ok (%d warnings)\n", args[0], len(report.Warnings()))
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	t := newTable().Headers("ID", "NAME", "CATEGORY", "FUSE", "LIFT", "EFFECT", "PRE-FIRE", "COLOURS")
	for _, d := range catalog.All() {
		t.Row(d.ID, d.Name, d.Category,
			strconv.FormatInt(d.FuseTime, 10),
			strconv.FormatInt(d.LiftTime, 10),
			strconv.FormatInt(d.EffectDuration, 10),
			strconv.FormatInt(d.PreFiringOffset(), 10),
			strings.Join(d.Colors, " "))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}
