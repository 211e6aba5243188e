package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/joshp123/gohome-fireboard/internal/core"
)

const (
	apiRate  = rate.Limit(5)
	apiBurst = 10
)

// NewEngine builds the HTTP surface: health, metrics, dashboards and plugin APIs under /api/<plugin id>.
func NewEngine(plugins []core.Plugin, registry *prometheus.Registry, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", HealthHandler(plugins))
	r.GET("/metrics", gin.WrapH(MetricsHandler(registry)))
	r.GET("/dashboards/*path", DashboardsHandler(core.DashboardsMap(plugins)))

	api := r.Group("/api")
	api.Use(Throttle(apiRate, apiBurst))
	for _, p := range plugins {
		if reg, ok := p.(core.HTTPRegistrant); ok {
			reg.RegisterHTTP(api.Group("/" + p.ID()))
		}
	}
	return r
}

// HTTPServer serves the gin engine.
type HTTPServer struct {
	Server *http.Server
}

func NewHTTPServer(addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{Server: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func (s *HTTPServer) ListenAndServe() error {
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}
