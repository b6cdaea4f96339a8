// Package config loads pyroshow settings from an optional YAML file, a .env
// file and PYROSHOW_* environment variables, in that order of precedence.
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/schollz/pyroshow/internal/viewport"
)

type Audio struct {
	Enabled    bool `yaml:"enabled"`
	SampleRate int  `yaml:"sample_rate"`
	BufferMs   int  `yaml:"buffer_ms"`
}

type UI struct {
	FPS     int     `yaml:"fps"`
	Zoom    float64 `yaml:"zoom"`
	NoColor bool    `yaml:"no_color"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type OSC struct {
	Enabled      bool   `yaml:"enabled"`
	ListenPort   int    `yaml:"listen_port"`
	FeedbackHost string `yaml:"feedback_host"`
	FeedbackPort int    `yaml:"feedback_port"`
}

type Storage struct {
	AutosaveDebounce  time.Duration `yaml:"autosave_debounce"`
	StrictImport      bool          `yaml:"strict_import"`
	DuplicateOffsetMs int64         `yaml:"duplicate_offset_ms"`
}

type Config struct {
	Audio   Audio   `yaml:"audio"`
	UI      UI      `yaml:"ui"`
	Log     Log     `yaml:"log"`
	OSC     OSC     `yaml:"osc"`
	Storage Storage `yaml:"storage"`
}

func Default() Config {
	return Config{
		Audio: Audio{Enabled: true, SampleRate: 44100, BufferMs: 50},
		UI:    UI{FPS: 30, Zoom: 0.1},
		Log:   Log{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		OSC:   OSC{ListenPort: 57130, FeedbackHost: "127.0.0.1", FeedbackPort: 57131},
		Storage: Storage{
			AutosaveDebounce:  time.Second,
			DuplicateOffsetMs: 1000,
		},
	}
}

// Load reads path over the defaults. An empty path, or a missing file,
// yields the defaults plus environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fault.Wrap(err, fmsg.With("read config"))
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fault.Wrap(err, fmsg.With("parse config"))
			}
		}
	}

	// .env does not override variables already set
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("PYROSHOW_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("PYROSHOW_LOG_FILE"); ok {
		cfg.Log.File = v
	}
	if v, ok := lookupBool("PYROSHOW_AUDIO"); ok {
		cfg.Audio.Enabled = v
	}
	if v, ok := lookupInt("PYROSHOW_OSC_PORT"); ok {
		cfg.OSC.Enabled = true
		cfg.OSC.ListenPort = v
	}
	if v, ok := lookupBool("PYROSHOW_STRICT_IMPORT"); ok {
		cfg.Storage.StrictImport = v
	}
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Audio.SampleRate <= 0:
		return errors.New("audio.sample_rate must be positive")
	case c.Audio.BufferMs <= 0:
		return errors.New("audio.buffer_ms must be positive")
	case c.UI.FPS <= 0 || c.UI.FPS > 240:
		return errors.New("ui.fps must be between 1 and 240")
	case c.UI.Zoom < viewport.MinZoom || c.UI.Zoom > viewport.MaxZoom:
		return fmt.Errorf("ui.zoom must be between %g and %g", viewport.MinZoom, viewport.MaxZoom)
	case c.OSC.Enabled && (c.OSC.ListenPort <= 0 || c.OSC.ListenPort > 65535):
		return errors.New("osc.listen_port out of range")
	case c.Storage.AutosaveDebounce < 0:
		return errors.New("storage.autosave_debounce must not be negative")
	case c.Storage.DuplicateOffsetMs < 0:
		return errors.New("storage.duplicate_offset_ms must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be debug, info, warn or error")
	}
	return nil
}

// TickInterval is the UI polling period.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.UI.FPS)
}
