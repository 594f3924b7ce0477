// Command stepseq renders, plays and serves step sequencer projects.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	stepseq "github.com/cbegin/stepseq-go"
	"github.com/cbegin/stepseq-go/internal/config"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/voice"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	logLevel   string
	bpmFlag    int
	outputFile string

	cfg    config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stepseq",
	Short: "Multi-track step sequencer",
	Long: `stepseq is a multi-track step sequencer with drum, melodic, effect and
audio-clip tracks, a shared effects bus, WAV and MIDI export, and project files.

Examples:
  stepseq render beat.json -o beat.wav
  stepseq midi beat.json -o beat.mid
  stepseq play beat.json --loops 4
  stepseq tui beat.json
  stepseq serve --listen :3000`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("bpm") {
			cfg.BPM = bpmFlag
		}
		cfg.Validate()
		if cmd.Name() != tuiCmd.Name() {
			logger = config.InitLogger(cfg.LogLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().IntVar(&bpmFlag, "bpm", 0, "tempo for new projects")

	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output .wav path")
	midiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output .mid path")

	rootCmd.AddCommand(renderCmd, midiCmd, playCmd, tuiCmd, serveCmd, generateCmd)
}

// outputPath derives an output file from the input when -o is not set.
func outputPath(input, ext string) string {
	if outputFile != "" {
		return outputFile
	}
	if input == "" {
		return "stepseq" + ext
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func newEngine(opts ...stepseq.Option) (*stepseq.Engine, error) {
	base := []stepseq.Option{
		stepseq.WithGrid(cfg.Bars, cfg.BeatsPerBar),
		stepseq.WithBPM(cfg.BPM),
		stepseq.WithLogger(logger),
	}
	return stepseq.New(cfg.SampleRate, append(base, opts...)...)
}

// openProject builds an engine and loads path into it. Clip tracks whose
// reference is a local WAV file get their audio attached; the reference is
// resolved relative to the project file.
func openProject(path string, opts ...stepseq.Option) (*stepseq.Engine, error) {
	e, err := newEngine(opts...)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return e, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		e.Close()
		return nil, err
	}
	if err := e.LoadProject(data); err != nil {
		e.Close()
		return nil, fmt.Errorf("%s: %s", path, stepseq.Issue(err))
	}
	for _, t := range e.Tracks() {
		if t.Category == voice.AudioClip && isLocalWAV(t.Clip) {
			attachClip(e, t, filepath.Dir(path))
		}
	}
	return e, nil
}

func isLocalWAV(ref string) bool {
	return ref != "" && !strings.Contains(ref, "://") && strings.EqualFold(filepath.Ext(ref), ".wav")
}

func attachClip(e *stepseq.Engine, t track.Track, dir string) {
	ref := t.Clip
	if !filepath.IsAbs(ref) {
		ref = filepath.Join(dir, ref)
	}
	f, err := os.Open(ref)
	if err != nil {
		logger.Warn("clip unavailable", "track", t.ID, "clip", t.Clip, "err", err)
		return
	}
	defer f.Close()
	if err := e.AttachClipAudio(t.ID, f); err != nil {
		logger.Warn("clip not attached", "track", t.ID, "clip", t.Clip, "err", err)
	}
}
