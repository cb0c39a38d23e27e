// Package server exposes poplog's live state over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atikulmunna/poplog/internal/aggregator"
	"github.com/atikulmunna/poplog/internal/hub"
	"github.com/atikulmunna/poplog/internal/scheduler"
)

// JobLister reports monitored jobs. *scheduler.Scheduler satisfies it.
type JobLister interface {
	Snapshot() []scheduler.JobStatus
}

// Deps are the components the server reads from.
type Deps struct {
	Hub        *hub.Hub
	Aggregator *aggregator.Aggregator
	Jobs       JobLister
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

// Server holds the Gin engine and its dependencies.
type Server struct {
	engine *gin.Engine
	deps   Deps
	addr   string
	logger *zap.Logger
}

// New creates a server listening on addr, e.g. ":8080".
func New(deps Deps, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine: engine,
		deps:   deps,
		addr:   addr,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.deps.Aggregator.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"uptime":       stats.Uptime,
			"jobs_watched": stats.JobsWatched,
			"eps":          stats.EPS,
			"dropped":      stats.Dropped,
		})
	})

	s.engine.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.deps.Aggregator.Snapshot())
	})
	s.engine.GET("/api/jobs", s.handleJobs)

	s.engine.GET("/ws", s.handleWebSocket)

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

// handleJobs lists monitored jobs, optionally narrowed by ?group= and
// ?state= (case-insensitive).
func (s *Server) handleJobs(c *gin.Context) {
	group := c.Query("group")
	state := c.Query("state")

	jobs := s.deps.Jobs.Snapshot()
	out := make([]scheduler.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		if group != "" && !strings.EqualFold(j.Group, group) {
			continue
		}
		if state != "" && !strings.EqualFold(j.State.String(), state) {
			continue
		}
		out = append(out, j)
	}
	c.JSON(http.StatusOK, out)
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
