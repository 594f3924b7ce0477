package stepseq

import (
	"log/slog"

	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
	"github.com/cbegin/stepseq-go/internal/voice"
)

type Option func(*engineConfig)

type engineConfig struct {
	bars        int
	beatsPerBar int
	bpm         int
	looping     bool
	noteLength  string
	notifier    Notifier
	logger      *slog.Logger
	onDraw      func(transport.Frame)
	clock       transport.Clock
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		bars:        track.DefaultBars,
		beatsPerBar: track.DefaultBeatsPerBar,
		bpm:         transport.DefaultBPM,
		looping:     true,
		noteLength:  voice.DefaultDuration,
	}
}

// WithGrid sets the pattern length as bars of beatsPerBar steps.
func WithGrid(bars, beatsPerBar int) Option {
	return func(cfg *engineConfig) {
		cfg.bars = bars
		cfg.beatsPerBar = beatsPerBar
	}
}

func WithBPM(bpm int) Option {
	return func(cfg *engineConfig) {
		cfg.bpm = bpm
	}
}

// WithLooping controls what happens at the end of the pattern. Engines loop
// by default; WithLooping(false) stops playback at the wrap.
func WithLooping(enabled bool) Option {
	return func(cfg *engineConfig) {
		cfg.looping = enabled
	}
}

// WithNoteLength sets the duration token used for every triggered hit.
func WithNoteLength(token string) Option {
	return func(cfg *engineConfig) {
		cfg.noteLength = token
	}
}

func WithNotifier(n Notifier) Option {
	return func(cfg *engineConfig) {
		cfg.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = l
	}
}

// WithRedraw installs a callback for transport frames. It runs on its own
// goroutine; slow redraws drop frames instead of delaying playback.
func WithRedraw(f func(transport.Frame)) Option {
	return func(cfg *engineConfig) {
		cfg.onDraw = f
	}
}

// WithClock replaces the wall clock that schedules ticks.
func WithClock(c transport.Clock) Option {
	return func(cfg *engineConfig) {
		cfg.clock = c
	}
}
