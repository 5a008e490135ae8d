// Package httpserver exposes the bot's operator-facing HTTP surface:
// /healthz (fiber, same shape as the teacher's internal/signal.Server
// health route) and /metrics (the standard promhttp handler, served on
// its own net/http mux since Prometheus scraping doesn't need fiber's
// routing).
package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mirrorbot/mirrorbot/internal/health"
)

// Server runs the /healthz fiber app and the /metrics promhttp mux on
// their configured ports.
type Server struct {
	app     *fiber.App
	checker *health.Checker
	metrics *http.Server

	healthAddr  string
	metricsAddr string
}

// New builds a Server. healthAddr serves /healthz; metricsAddr serves
// /metrics.
func New(checker *health.Checker, healthAddr, metricsAddr string) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           5 * time.Second,
	})

	s := &Server{
		app:         app,
		checker:     checker,
		healthAddr:  healthAddr,
		metricsAddr: metricsAddr,
	}
	s.setupRoutes()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.metrics = &http.Server{Addr: metricsAddr, Handler: mux}

	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		if !s.checker.Healthy() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"checks":   s.checker.Statuses(),
				"time":     time.Now().Unix(),
			})
		}
		return c.JSON(fiber.Map{
			"status": "ok",
			"checks": s.checker.Statuses(),
			"time":   time.Now().Unix(),
		})
	})
}

// Start runs both the health and metrics servers, blocking until either
// one fails. Shutdown should be used to stop them gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 2)

	go func() {
		log.Info().Str("addr", s.healthAddr).Msg("starting healthz server")
		errCh <- s.app.Listen(s.healthAddr)
	}()
	go func() {
		log.Info().Str("addr", s.metricsAddr).Msg("starting metrics server")
		errCh <- s.metrics.ListenAndServe()
	}()

	return fmt.Errorf("httpserver: %w", <-errCh)
}

// Shutdown gracefully stops both servers.
func (s *Server) Shutdown() error {
	if err := s.app.Shutdown(); err != nil {
		return err
	}
	return s.metrics.Close()
}
