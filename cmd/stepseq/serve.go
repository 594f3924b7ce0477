package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cbegin/stepseq-go/internal/generation"
	"github.com/cbegin/stepseq-go/internal/project"
	"github.com/cbegin/stepseq-go/internal/server"
)

var (
	listenAddr string
	proxyGen   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&proxyGen, "generation", false, "proxy generate and status requests to the configured service")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr := cfg.Listen
	if listenAddr != "" {
		addr = listenAddr
	}
	opts := server.Options{
		Store:       project.NewStore(cfg.ProjectsDir),
		Bars:        cfg.Bars,
		BeatsPerBar: cfg.BeatsPerBar,
		Logger:      logger,
	}
	if proxyGen {
		opts.Generation = generation.NewHTTPClient(cfg.Generation.BaseURL)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(opts).Run(ctx, addr)
}
