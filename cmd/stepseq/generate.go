package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cbegin/stepseq-go/internal/generation"
)

var (
	genReq     generation.Request
	genProject string
	genBaseURL string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a vocal track with the music generation service",
	Long: `Starts a generation task and polls its status until it completes, fails
or runs out of attempts. With --project the result is added to the project
as an audio-clip track and the file is rewritten.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genReq.Prompt, "prompt", "", "description of the music")
	generateCmd.Flags().StringVar(&genReq.Style, "style", "", "musical style")
	generateCmd.Flags().StringVar(&genReq.Lyrics, "lyrics", "", "lyrics to sing")
	generateCmd.Flags().BoolVar(&genReq.Instrumental, "instrumental", false, "no vocals")
	generateCmd.Flags().StringVar(&genProject, "project", "", "project file to add the result to")
	generateCmd.Flags().StringVar(&genBaseURL, "base-url", "", "service URL (default from config)")
	_ = generateCmd.MarkFlagRequired("prompt")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	base := cfg.Generation.BaseURL
	if genBaseURL != "" {
		base = genBaseURL
	}
	p := generation.NewPoller(generation.NewHTTPClient(base))
	p.Interval = cfg.Generation.PollInterval
	p.MaxAttempts = cfg.Generation.MaxAttempts
	p.Logger = logger
	p.OnProgress = func(attempt, limit int, s generation.Status) {
		fmt.Printf("generating... %d/%d (%s)\n", attempt, limit, s)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	res, err := p.Run(ctx, genReq)
	if err != nil {
		return err
	}
	fmt.Printf("completed: %s\n", res.AudioURL)
	if genProject == "" {
		return nil
	}

	e, err := openProject(genProject)
	if err != nil {
		return err
	}
	defer e.Close()
	t, err := e.AddGeneratedTrack(res)
	if err != nil {
		return err
	}
	data, err := e.SaveProject()
	if err != nil {
		return err
	}
	if err := os.WriteFile(genProject, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("added %s (%s) to %s\n", t.Name, t.ID, genProject)
	return nil
}
