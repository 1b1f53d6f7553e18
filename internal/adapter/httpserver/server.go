package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ognjhunt/blueprintxr/internal/adapter/metrics"
	"github.com/ognjhunt/blueprintxr/internal/blueprint"
	"github.com/ognjhunt/blueprintxr/internal/domain"
	"github.com/ognjhunt/blueprintxr/internal/platform/config"
)

// ContainerRepository is the blueprint side of the remote repository.
type ContainerRepository interface {
	GetContainer(ctx context.Context, id string) (*domain.Container, error)
	GetContainersByCreator(ctx context.Context, userID string) ([]domain.Container, error)
	ListContainers(ctx context.Context) ([]domain.Container, error)
	SearchContainers(ctx context.Context, query string, limit int) ([]domain.Container, error)
	ContainerName(ctx context.Context, id string) (string, bool, error)
	CreateContainer(ctx context.Context, c domain.Container) (domain.Container, error)
	UpdateContainer(ctx context.Context, id string, patch blueprint.ContainerPatch) error
	GetAnchor(ctx context.Context, id string) (*domain.AnchorRecord, error)
	GetAnchorsForContainer(ctx context.Context, containerID string) ([]domain.AnchorRecord, error)
}

// ModelRepository resolves the 3D models anchor records point at.
type ModelRepository interface {
	GetModel(ctx context.Context, id string) (*domain.Model, error)
}

// Deps are the collaborators the HTTP surface is built on. Metrics fields may be nil.
type Deps struct {
	Screens       *Screens
	Containers    ContainerRepository
	Models        ModelRepository
	HealthChecks  []HealthCheck
	MetricsHTTP   *metrics.HTTPMetrics
	MetricsScreen *metrics.ScreenMetrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	screens        *Screens
	containers     ContainerRepository
	models         ModelRepository
	healthChecks   []HealthCheck
	httpMetrics    *metrics.HTTPMetrics
	screenMetrics  *metrics.ScreenMetrics
	metricsHandler http.Handler
	checkOrigin    func(r *http.Request) bool
	startTime      time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:           e,
		config:         cfg,
		screens:        deps.Screens,
		containers:     deps.Containers,
		models:         deps.Models,
		healthChecks:   deps.HealthChecks,
		httpMetrics:    deps.MetricsHTTP,
		screenMetrics:  deps.MetricsScreen,
		metricsHandler: deps.MetricsHandler,
		checkOrigin:    NewCheckOrigin(cfg.AppURL, cfg.AppEnv != "production"),
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and then tears down every open screen.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.screens.CloseAll()
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
