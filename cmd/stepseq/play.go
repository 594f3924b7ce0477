package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	stepseq "github.com/cbegin/stepseq-go"
	"github.com/cbegin/stepseq-go/internal/audio"
	"github.com/cbegin/stepseq-go/internal/transport"
)

var playLoops int

var playCmd = &cobra.Command{
	Use:   "play <project>",
	Short: "Play a project through the default audio device",
	Long:  `Plays the pattern --loops times (0 = until interrupted). Ctrl-C stops playback.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().IntVar(&playLoops, "loops", 1, "number of passes, 0 loops forever")
}

func runPlay(cmd *cobra.Command, args []string) error {
	e, err := openProject(args[0], stepseq.WithLooping(playLoops != 1))
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ch := e.Watch()
	if err := e.Init(); err != nil {
		return err
	}
	if err := e.Start(); err != nil {
		return err
	}
	return waitPlayback(ctx, e, ch, playLoops)
}

func waitPlayback(ctx context.Context, e *stepseq.Engine, ch <-chan transport.Event, loops int) error {
	passes := 0
	for {
		select {
		case <-ctx.Done():
			e.Stop()
			fmt.Println("stopped")
			return nil
		case ev := <-ch:
			switch ev.Kind {
			case transport.EventPatternEnded:
				fmt.Println("playback completed")
				return nil
			case transport.EventWrapped:
				passes++
				fmt.Printf("pass %d completed\n", passes)
				if loops > 0 && passes >= loops {
					e.Stop()
					return nil
				}
			}
		}
	}
}
