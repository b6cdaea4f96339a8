package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/schollz/pyroshow/internal/audio"
	"github.com/schollz/pyroshow/internal/config"
	"github.com/schollz/pyroshow/internal/logging"
	"github.com/schollz/pyroshow/internal/model"
	"github.com/schollz/pyroshow/internal/playback"
	"github.com/schollz/pyroshow/internal/remote"
	"github.com/schollz/pyroshow/internal/storage"
	"github.com/schollz/pyroshow/internal/ui"
)

var (
	Version = "dev"

	// Command-line configuration
	flags struct {
		config   string
		logFile  string
		logLevel string
		verbose  bool
		noAudio  bool
		oscPort  int
		zoom     float64
		fps      int
		noColor  bool
		strict   bool
		audioDir string
	}
)

var rootCmd = &cobra.Command{
	Use:   "pyroshow [show.json]",
	Short: "Timeline preview and audio sync for pyrotechnic shows",
	Long: `pyroshow plays back a choreographed fireworks show against its soundtrack.

Effects are placed by the moment their burst should be seen; the fire signal
time is derived from each product's fuse and lift delays. The preview keeps
every audio clip phase-locked to the playhead through play, pause, seek and
loop, and can be driven remotely over OSC.`,
	Version: Version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runPreview,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "",
		"YAML config file (empty uses defaults)")
	pf.StringVarP(&flags.logFile, "log", "l", "",
		"Write JSON logs to specified file (empty disables)")
	pf.StringVar(&flags.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Also log to stderr (not used by the preview)")
	pf.BoolVar(&flags.strict, "strict", false,
		"Reject show files with structural errors instead of loading them")
	pf.StringVar(&flags.audioDir, "audio-dir", "",
		"Folder holding the show's audio files (default: next to the show file)")

	rootCmd.Flags().BoolVar(&flags.noAudio, "no-audio", false,
		"Run the transport without an audio device")
	rootCmd.Flags().IntVar(&flags.oscPort, "osc-port", 0,
		"Listen for /transport/* OSC commands on this port (0 uses config)")
	rootCmd.Flags().Float64Var(&flags.zoom, "zoom", 0,
		"Initial timeline zoom (0 uses config)")
	rootCmd.Flags().IntVar(&flags.fps, "fps", 0,
		"Transport tick rate (0 uses config)")
	rootCmd.Flags().BoolVar(&flags.noColor, "no-color", false,
		"Disable colours")

	rootCmd.AddCommand(newCmd, infoCmd, validateCmd, catalogCmd, addAudioCmd, placeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers explicitly set flags over the config file and environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("log") {
		cfg.Log.File = flags.logFile
	}
	if f.Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if f.Changed("strict") {
		cfg.Storage.StrictImport = flags.strict
	}
	if f.Changed("no-audio") {
		cfg.Audio.Enabled = !flags.noAudio
	}
	if flags.oscPort > 0 {
		cfg.OSC.Enabled = true
		cfg.OSC.ListenPort = flags.oscPort
	}
	if flags.zoom > 0 {
		cfg.UI.Zoom = flags.zoom
	}
	if flags.fps > 0 {
		cfg.UI.FPS = flags.fps
	}
	if flags.noColor {
		cfg.UI.NoColor = true
	}
	return cfg, cfg.Validate()
}

// session is a loaded show with its logger and optional autosave.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	store  *model.Store
	saver  *storage.AutoSaver
	path   string
	report storage.Report
}

// openSession loads path into a new store. A path that does not exist yet
// starts an empty show named after the file. With autosave, every mutation
// is written back to path after the configured debounce.
func openSession(cmd *cobra.Command, path string, autosave, console bool) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, console || flags.verbose)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, path: path}

	opts := []model.Option{
		model.WithLogger(logger.Named("store")),
		model.WithStrictImport(cfg.Storage.StrictImport),
	}
	if autosave && path != "" {
		s.saver = storage.NewAutoSaver(path, cfg.Storage.AutosaveDebounce, logger.Named("autosave"))
		opts = append(opts, model.WithOnChange(s.saver.Schedule))
	}
	s.store = model.NewStore(showName(path), opts...)

	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("starting new show", zap.String("path", path))
		return s, nil
	}
	data, err := storage.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s.report, err = s.store.Deserialize(data)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func showName(path string) string {
	if path == "" {
		return "untitled"
	}
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".json"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func (s *session) audioDir() string {
	if flags.audioDir != "" {
		return flags.audioDir
	}
	if s.path == "" {
		return "."
	}
	return filepath.Dir(s.path)
}

// relink decodes every clip's source file found in the audio folder.
// Clips whose file is missing keep playing as silence and show up in
// diagnostics.
func (s *session) relink(ctx context.Context) {
	dir := s.audioDir()
	available := map[string]bool{}
	for _, name := range storage.AudioFiles(dir) {
		available[name] = true
	}
	for _, c := range s.store.Snapshot().Clips {
		if !available[c.SourceName] {
			s.logger.Warn("audio file not found", zap.String("clip", c.ID), zap.String("file", c.SourceName))
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, c.SourceName))
		if err == nil {
			err = s.store.RelinkAudio(ctx, c.ID, data)
		}
		if err != nil {
			s.logger.Warn("relink failed", zap.String("clip", c.ID), zap.Error(err))
		}
	}
}

// close flushes any pending autosave and the logger.
func (s *session) close() error {
	var err error
	if s.saver != nil {
		err = s.saver.Flush()
	}
	_ = s.logger.Sync()
	return err
}

func openOutput(cfg config.Config, logger *zap.Logger) audio.Output {
	if cfg.Audio.Enabled {
		out, err := audio.OpenSpeaker(cfg.Audio.SampleRate, time.Duration(cfg.Audio.BufferMs)*time.Millisecond)
		if err == nil {
			return out
		}
		logger.Warn("audio device unavailable, continuing silently", zap.Error(err))
	}
	return audio.NewNullOutput(audio.NewWallClock())
}

func runPreview(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	s, err := openSession(cmd, path, true, false)
	if err != nil {
		return err
	}
	defer s.close()
	logger := s.logger
	logger.Info("pyroshow starting", zap.String("version", Version), zap.String("show", path))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s.relink(ctx)

	out := openOutput(s.cfg, logger)
	tr := playback.NewTransport(out, s.store, logger.Named("transport"))
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		if err := tr.Close(closeCtx); err != nil {
			logger.Warn("transport close failed", zap.Error(err))
		}
		out.Close()
	}()

	opts := ui.Options{
		Store:        s.store,
		Transport:    tr,
		Zoom:         s.cfg.UI.Zoom,
		TickInterval: s.cfg.TickInterval(),
		Logger:       logger.Named("ui"),
	}
	if s.cfg.OSC.Enabled {
		addr := net.JoinHostPort("", strconv.Itoa(s.cfg.OSC.ListenPort))
		srv, err := remote.Listen(addr, logger.Named("osc"))
		if err != nil {
			return err
		}
		defer srv.Close()
		go func() {
			if err := srv.Serve(); err != nil {
				logger.Error("osc server stopped", zap.Error(err))
			}
		}()
		opts.Remote = srv.Commands()
		if s.cfg.OSC.FeedbackPort > 0 {
			opts.Feedback = remote.NewFeedback(s.cfg.OSC.FeedbackHost, s.cfg.OSC.FeedbackPort)
		}
		logger.Info("osc remote listening", zap.Stringer("addr", srv.Addr()))
	}

	ui.ConfigureColor(s.cfg.UI.NoColor)
	p := tea.NewProgram(ui.New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
