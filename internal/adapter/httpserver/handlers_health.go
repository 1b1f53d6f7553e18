package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ognjhunt/blueprintxr/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

// HealthCheck is a named dependency check, e.g. the document store ping.
// Breaker, when set, reports the circuit breaker guarding the dependency.
type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Breaker func() string
}

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Breaker string `json:"breaker,omitempty"`
}

type readinessResponse struct {
	Status      string        `json:"status"`
	FailedCheck string        `json:"failed_check,omitempty"`
	Screens     int           `json:"screens"`
	Checks      []checkResult `json:"checks"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.checkDependencies(startupCheckTimeout))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.checkDependencies(readinessCheckTimeout))
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).Seconds(),
		"screens": s.screens.Len(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// checkDependencies runs every dependency check and reports each one.
// The first failure is named in failed_check.
func (s *Server) checkDependencies(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		resp := readinessResponse{
			Status:  "ready",
			Screens: s.screens.Len(),
			Checks:  make([]checkResult, 0, len(s.healthChecks)),
		}
		for _, hc := range s.healthChecks {
			res := checkResult{Name: hc.Name, Status: "ok"}
			if hc.Breaker != nil {
				res.Breaker = hc.Breaker()
			}
			if err := hc.Check(ctx); err != nil {
				res.Status = "failed"
				res.Error = err.Error()
				if resp.FailedCheck == "" {
					resp.Status = "unhealthy"
					resp.FailedCheck = hc.Name
				}
			}
			resp.Checks = append(resp.Checks, res)
		}

		status := http.StatusOK
		if resp.FailedCheck != "" {
			status = http.StatusServiceUnavailable
		}
		if err := c.JSON(status, resp); err != nil {
			return fmt.Errorf("failed to send health response: %w", err)
		}
		return nil
	}
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
