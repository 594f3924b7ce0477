package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <project>",
	Short: "Render a project to a 16-bit stereo WAV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var midiCmd = &cobra.Command{
	Use:   "midi <project>",
	Short: "Export a project as a standard MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMIDI,
}

func runRender(cmd *cobra.Command, args []string) error {
	e, err := openProject(args[0])
	if err != nil {
		return err
	}
	defer e.Close()
	data, err := e.Export(cmd.Context())
	if err != nil {
		return err
	}
	out := outputPath(args[0], ".wav")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
	return nil
}

func runMIDI(_ *cobra.Command, args []string) error {
	e, err := openProject(args[0])
	if err != nil {
		return err
	}
	defer e.Close()
	data, err := e.ExportMIDI()
	if err != nil {
		return err
	}
	out := outputPath(args[0], ".mid")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
	return nil
}
