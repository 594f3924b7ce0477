// Package server exposes rendering, MIDI export and project storage over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/gin-gonic/gin"

	stepseq "github.com/cbegin/stepseq-go"
	"github.com/cbegin/stepseq-go/internal/generation"
	"github.com/cbegin/stepseq-go/internal/midiexport"
	"github.com/cbegin/stepseq-go/internal/project"
	"github.com/cbegin/stepseq-go/internal/render"
	"github.com/cbegin/stepseq-go/internal/track"
)

// maxBody bounds request documents.
const maxBody = 8 << 20

type Options struct {
	Store       *project.Store
	Bars        int
	BeatsPerBar int
	// Generation, when set, enables the generate and status proxy routes.
	Generation generation.Client
	Logger     *slog.Logger
}

type Server struct {
	opts   Options
	logger *slog.Logger
	router *gin.Engine
}

func New(opts Options) *Server {
	if opts.Bars <= 0 {
		opts.Bars = track.DefaultBars
	}
	if opts.BeatsPerBar <= 0 {
		opts.BeatsPerBar = track.DefaultBeatsPerBar
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{opts: opts, logger: opts.Logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/export", s.handleExport)
		v1.POST("/export/midi", s.handleExportMIDI)
		if s.opts.Store != nil {
			v1.POST("/projects", s.handleSaveProject)
			v1.GET("/projects", s.handleListProjects)
			v1.GET("/projects/:name", s.handleLoadProject)
		}
		if s.opts.Generation != nil {
			v1.POST("/generate", s.handleGenerate)
			v1.GET("/status/:id", s.handleStatus)
		}
	}
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "stepseq",
	})
}

// loadEngine builds a fresh engine for one request and loads the body into
// it.
func (s *Server) loadEngine(c *gin.Context) (*stepseq.Engine, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request"})
		return nil, false
	}
	e, err := stepseq.New(render.SampleRate,
		stepseq.WithGrid(s.opts.Bars, s.opts.BeatsPerBar),
		stepseq.WithLogger(s.logger),
		stepseq.WithNotifier(stepseq.LogNotifier{Logger: s.logger.With("component", "export")}))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if err := e.LoadProject(body); err != nil {
		e.Close()
		c.JSON(http.StatusBadRequest, gin.H{"error": stepseq.Issue(err)})
		return nil, false
	}
	return e, true
}

func (s *Server) exportError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, render.ErrNothingToExport) || errors.Is(err, midiexport.ErrEmpty) ||
		ftag.Get(err) == render.KindNothingToExport {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": stepseq.Issue(err)})
}

func attachment(c *gin.Context, name, ext string) {
	if name == "" {
		name = "stepseq"
	}
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '/' || r == '\\' || r < ' ' {
			return '_'
		}
		return r
	}, name)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+ext))
}

func (s *Server) handleExport(c *gin.Context) {
	e, ok := s.loadEngine(c)
	if !ok {
		return
	}
	defer e.Close()
	data, err := e.Export(c.Request.Context())
	if err != nil {
		s.exportError(c, err)
		return
	}
	attachment(c, e.Name(), ".wav")
	c.Data(http.StatusOK, "audio/wav", data)
}

func (s *Server) handleExportMIDI(c *gin.Context) {
	e, ok := s.loadEngine(c)
	if !ok {
		return
	}
	defer e.Close()
	data, err := e.ExportMIDI()
	if err != nil {
		s.exportError(c, err)
		return
	}
	attachment(c, e.Name(), ".mid")
	c.Data(http.StatusOK, "audio/midi", data)
}

func (s *Server) handleSaveProject(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read request"})
		return
	}
	doc, err := project.Unmarshal(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": stepseq.Issue(err)})
		return
	}
	name, err := s.opts.Store.Save(doc)
	if err != nil {
		s.logger.Warn("save project", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": stepseq.Issue(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "filename": name})
}

func (s *Server) handleListProjects(c *gin.Context) {
	names, err := s.opts.Store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": stepseq.Issue(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": names})
}

func (s *Server) handleLoadProject(c *gin.Context) {
	doc, err := s.opts.Store.Load(c.Param("name"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, doc)
	case errors.Is(err, fs.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": stepseq.Issue(err)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": stepseq.Issue(err)})
	}
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generation.Request
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "prompt is required"})
		return
	}
	id, err := s.opts.Generation.Generate(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": stepseq.Issue(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "taskId": id})
}

func (s *Server) handleStatus(c *gin.Context) {
	res, err := s.opts.Generation.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": stepseq.Issue(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"status":   string(res.Status),
		"audioUrl": res.AudioURL,
		"title":    res.Title,
		"error":    res.Error,
	})
}
