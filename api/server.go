// Package api serves the HTTP control and telemetry surface of the
// simulator.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kilianp07/batsim/core/control"
	"github.com/kilianp07/batsim/core/logger"
	"github.com/kilianp07/batsim/core/telemetry"
)

// Option customizes the router.
type Option func(*router)

// WithQuerier enables GET /api/v1/telemetry.
func WithQuerier(q telemetry.Querier) Option {
	return func(r *router) { r.querier = q }
}

// WithGatherer sets the registry served on /metrics. The default is the
// global Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(r *router) {
		if g != nil {
			r.gatherer = g
		}
	}
}

// WithLogger sets the request and error logger.
func WithLogger(l logger.Logger) Option {
	return func(r *router) {
		if l != nil {
			r.log = l
		}
	}
}

type router struct {
	svc      control.Service
	querier  telemetry.Querier
	gatherer prometheus.Gatherer
	log      logger.Logger
}

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc control.Service, cfg Config, opts ...Option) http.Handler {
	rt := &router{svc: svc, gatherer: prometheus.DefaultGatherer, log: logger.NopLogger{}}
	for _, o := range opts {
		o(rt)
	}

	g := gin.New()
	g.Use(errorHandler(rt.log), requestLogger(rt.log))

	g.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	g.GET("/metrics", gin.WrapH(promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{})))

	v1 := g.Group("/api/v1", bearerAuth(cfg.Token))
	{
		v1.GET("/status", rt.status)
		v1.POST("/start", rt.start)
		v1.POST("/stop", rt.stop)
		v1.GET("/parameters", rt.getParameters)
		v1.PUT("/parameters", rt.putParameters)
		v1.PUT("/load", rt.putLoad)
		v1.GET("/telemetry/latest", rt.latest)
		v1.GET("/telemetry", rt.telemetry)
	}

	if len(cfg.AllowedOrigins) == 0 {
		return g
	}
	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(g)
}

// Server runs the API until its context is cancelled.
type Server struct {
	srv *http.Server
	log logger.Logger
}

// NewServer returns a Server listening on addr.
func NewServer(addr string, h http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Server{
		srv: &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second},
		log: log,
	}
}

// Run serves requests and shuts down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
