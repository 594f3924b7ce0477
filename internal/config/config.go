package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/stepseq-go/internal/generation"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
)

type Generation struct {
	BaseURL      string        `yaml:"base_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type Config struct {
	SampleRate  int        `yaml:"sample_rate"`
	BPM         int        `yaml:"bpm"`
	Bars        int        `yaml:"bars"`
	BeatsPerBar int        `yaml:"beats_per_bar"`
	ProjectsDir string     `yaml:"projects_dir"`
	Listen      string     `yaml:"listen"`
	LogLevel    string     `yaml:"log_level"`
	Generation  Generation `yaml:"generation"`
}

func Default() Config {
	return Config{
		SampleRate:  44100,
		BPM:         transport.DefaultBPM,
		Bars:        track.DefaultBars,
		BeatsPerBar: track.DefaultBeatsPerBar,
		ProjectsDir: "projects",
		Listen:      ":3000",
		LogLevel:    "info",
		Generation: Generation{
			BaseURL:      "http://localhost:3000",
			PollInterval: generation.DefaultInterval,
			MaxAttempts:  generation.DefaultMaxAttempts,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path or a missing
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fault.Wrap(err, fmsg.With("read config"))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fault.Wrap(err, fmsg.WithDesc("parse config", "Config file is not valid YAML."))
	}
	cfg.Validate()
	return cfg, nil
}

// Validate clamps out of range values back into range.
func (c *Config) Validate() {
	d := Default()
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		c.SampleRate = d.SampleRate
	}
	if c.BPM == 0 {
		c.BPM = d.BPM
	}
	c.BPM = transport.ClampBPM(c.BPM)
	if c.Bars <= 0 {
		c.Bars = d.Bars
	}
	if c.BeatsPerBar <= 0 {
		c.BeatsPerBar = d.BeatsPerBar
	}
	if c.ProjectsDir == "" {
		c.ProjectsDir = d.ProjectsDir
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Generation.PollInterval <= 0 {
		c.Generation.PollInterval = d.Generation.PollInterval
	}
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = d.Generation.MaxAttempts
	}
}

func (c Config) Grid() int { return track.GridLength(c.Bars, c.BeatsPerBar) }

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// InitLogger installs a stderr text handler at level as the default
// logger, so the stdlib log package routes through it too.
func InitLogger(level string) *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
