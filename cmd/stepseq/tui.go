package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	stepseq "github.com/cbegin/stepseq-go"
	"github.com/cbegin/stepseq-go/internal/audio"
	"github.com/cbegin/stepseq-go/internal/config"
	"github.com/cbegin/stepseq-go/internal/project"
	"github.com/cbegin/stepseq-go/internal/tui"
)

var tuiLogFile string

var tuiCmd = &cobra.Command{
	Use:   "tui [project]",
	Short: "Launch the interactive terminal sequencer",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "stepseq.log", "log destination while the UI owns the terminal")
}

func runTUI(_ *cobra.Command, args []string) error {
	f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	bridge := tui.NewBridge()
	e, err := openProject(path,
		stepseq.WithNotifier(bridge),
		stepseq.WithRedraw(bridge.Redraw),
		stepseq.WithLooping(true))
	if err != nil {
		return err
	}
	defer e.Close()

	out, err := audio.Open(cfg.SampleRate, e)
	if err != nil {
		return err
	}
	defer out.Close()
	out.Play()

	return tui.Run(e, bridge, tui.Options{
		WAVPath:  outputPath(path, ".wav"),
		MIDIPath: outputPath(path, ".mid"),
		Store:    project.NewStore(cfg.ProjectsDir),
	})
}
