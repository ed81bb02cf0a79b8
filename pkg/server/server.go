// Package server exposes the task pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/events"
	"github.com/harrisonrobin/taskmind/pkg/extract"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/model"
	"github.com/harrisonrobin/taskmind/pkg/pipeline"
	"github.com/harrisonrobin/taskmind/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires HTTP routes to a Syncer and its store.
type Server struct {
	syncer    *pipeline.Syncer
	bus       *events.Bus
	jwtSecret []byte
	engine    *gin.Engine
}

// New builds the router. An empty jwtSecret leaves /api open.
func New(syncer *pipeline.Syncer, bus *events.Bus, jwtSecret string) *Server {
	if bus == nil {
		bus = events.NewBus(0)
	}
	s := &Server{syncer: syncer, bus: bus}
	if jwtSecret != "" {
		s.jwtSecret = []byte(jwtSecret)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	if s.jwtSecret != nil {
		api.Use(s.requireJWT())
	}
	api.GET("/tasks", s.listTasks)
	api.DELETE("/tasks", s.clearTasks)
	api.POST("/tasks/:id/toggle", s.toggleTask)
	api.POST("/sync", s.sync)
	api.POST("/analyze", s.analyze)
	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.putSettings)
	api.GET("/events", s.streamEvents)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

type reportResponse struct {
	Status    string       `json:"status"`
	Stats     model.Stats  `json:"stats"`
	Shared    bool         `json:"shared"`
	Extracted []model.Task `json:"extracted"`
	Total     int          `json:"total"`
}

func toResponse(r pipeline.Report) reportResponse {
	status := "ok"
	if r.NoContent {
		status = "no_content"
	}
	extracted := r.Extracted
	if extracted == nil {
		extracted = []model.Task{}
	}
	return reportResponse{Status: status, Stats: r.Stats, Shared: r.Shared, Extracted: extracted, Total: r.Total}
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.syncer.Store.Tasks()})
}

func (s *Server) clearTasks(c *gin.Context) {
	if err := s.syncer.Store.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) toggleTask(c *gin.Context) {
	task, err := s.syncer.Store.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) sync(c *gin.Context) {
	report, err := s.syncer.Sync(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(report))
}

func (s *Server) analyze(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	report, err := s.syncer.Analyze(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(report))
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.syncer.Settings.Current().Masked())
}

func (s *Server) putSettings(c *gin.Context) {
	var next model.Settings
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	current := s.syncer.Settings.Current()
	// A masked key echoed back by a client keeps the stored one.
	if next.GeminiAPIKey != "" && next.GeminiAPIKey == current.Masked().GeminiAPIKey {
		next.GeminiAPIKey = current.GeminiAPIKey
	}
	next.GeminiAPIKey = strings.TrimSpace(next.GeminiAPIKey)

	if err := s.syncer.Settings.Save(c.Request.Context(), next); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, next.Masked())
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, extract.ErrMissingCredential):
		status, code = http.StatusPreconditionFailed, "missing_credential"
	case errors.Is(err, auth.ErrNoToken):
		status, code = http.StatusPreconditionFailed, "missing_google_credential"
	case errors.Is(err, extract.ErrExtractionFailed):
		status, code = http.StatusBadGateway, "extraction_failed"
	case errors.Is(err, store.ErrTaskNotFound):
		status, code = http.StatusNotFound, "not_found"
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
