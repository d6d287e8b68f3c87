// Package httpserver exposes the control and status surface of the daemon:
// health, session status, manual wake trigger, manual end-of-utterance, and
// error-banner dismissal.
package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chadiek/voice-gate/internal/faults"
	"github.com/chadiek/voice-gate/internal/session"
	"github.com/chadiek/voice-gate/internal/wake"
)

// SessionService is the slice of the session manager the HTTP surface needs.
type SessionService interface {
	Status() session.Snapshot
	StopRecording() error
	Active() bool
}

// Server bundles the echo router and its dependencies.
type Server struct {
	Echo    *echo.Echo
	svc     SessionService
	trigger *wake.Trigger
	surface *faults.Surface
}

// New constructs the HTTP server with routes. trigger and surface may be nil
// in tests.
func New(svc SessionService, trigger *wake.Trigger, surface *faults.Surface) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	s := &Server{Echo: e, svc: svc, trigger: trigger, surface: surface}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/status", s.status)
	e.POST("/wake", s.wakeHandler)
	e.POST("/stop", s.stop)
	e.DELETE("/error", s.clearError)
	return s
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.Status())
}

// wakeHandler is the manual trigger for deployments without a hotword engine.
func (s *Server) wakeHandler(c echo.Context) error {
	if s.trigger == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "no manual trigger configured"})
	}
	if s.svc.Active() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "session already active"})
	}
	s.trigger.Fire("manual")
	return c.JSON(http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) stop(c echo.Context) error {
	if err := s.svc.StopRecording(); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) clearError(c echo.Context) error {
	if s.surface != nil {
		s.surface.Clear()
	}
	return c.NoContent(http.StatusNoContent)
}
