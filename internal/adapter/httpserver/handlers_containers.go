package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ognjhunt/blueprintxr/internal/blueprint"
	"github.com/ognjhunt/blueprintxr/internal/domain"
	apperrors "github.com/ognjhunt/blueprintxr/internal/platform/errors"
)

const maxSearchLimit = 100

type createContainerRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	CreatedBy   string              `json:"created_by"`
	IsPrivate   bool                `json:"is_private"`
	MarkedAreas []domain.MarkedArea `json:"marked_areas"`
}

func (s *Server) registerContainerRoutes(g *echo.Group) {
	g.GET("", s.handleListContainers)
	g.POST("", s.handleCreateContainer)
	g.GET("/:id", s.handleGetContainer)
	g.GET("/:id/name", s.handleContainerName)
	g.PATCH("/:id", s.handleUpdateContainer)
	g.GET("/:id/anchors", s.handleContainerAnchors)
}

// handleListContainers filters by created_by, searches public blueprints by name
// when q or limit is given, and lists everything otherwise.
func (s *Server) handleListContainers(c echo.Context) error {
	ctx := c.Request().Context()
	params := c.QueryParams()

	var (
		containers []domain.Container
		err        error
	)
	switch {
	case params.Get("created_by") != "":
		containers, err = s.containers.GetContainersByCreator(ctx, params.Get("created_by"))
	case params.Has("q") || params.Has("limit"):
		limit, perr := searchLimit(params.Get("limit"))
		if perr != nil {
			return perr
		}
		containers, err = s.containers.SearchContainers(ctx, params.Get("q"), limit)
	default:
		containers, err = s.containers.ListContainers(ctx)
	}
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, containers)
}

func searchLimit(raw string) (int, error) {
	if raw == "" {
		return blueprint.DefaultSearchLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxSearchLimit {
		return 0, apperrors.ValidationError("limit must be between 1 and " + strconv.Itoa(maxSearchLimit)).
			WithField("limit", raw)
	}
	return limit, nil
}

func (s *Server) handleCreateContainer(c echo.Context) error {
	var req createContainerRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name == "" {
		return apperrors.ValidationError("name is required")
	}
	if err := validateAreas(req.MarkedAreas); err != nil {
		return err
	}

	created, err := s.containers.CreateContainer(c.Request().Context(), domain.Container{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		IsPrivate:   req.IsPrivate,
		MarkedAreas: req.MarkedAreas,
	})
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, created)
}

func (s *Server) handleGetContainer(c echo.Context) error {
	id := c.Param("id")
	container, err := s.containers.GetContainer(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if container == nil {
		return apperrors.NotFoundError("container not found").WithField("container_id", id)
	}
	return writeJSON(c, http.StatusOK, container)
}

func (s *Server) handleContainerName(c echo.Context) error {
	id := c.Param("id")
	name, ok, err := s.containers.ContainerName(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundError("container not found").WithField("container_id", id)
	}
	return writeJSON(c, http.StatusOK, map[string]string{"id": id, "name": name})
}

func (s *Server) handleUpdateContainer(c echo.Context) error {
	id := c.Param("id")
	var patch blueprint.ContainerPatch
	if err := c.Bind(&patch); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if patch.Name != nil && *patch.Name == "" {
		return apperrors.ValidationError("name must not be empty")
	}
	if patch.MarkedAreas != nil {
		if err := validateAreas(*patch.MarkedAreas); err != nil {
			return err
		}
	}

	if err := s.containers.UpdateContainer(c.Request().Context(), id, patch); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleContainerAnchors(c echo.Context) error {
	id := c.Param("id")
	records, err := s.containers.GetAnchorsForContainer(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, records)
}

func validateAreas(areas []domain.MarkedArea) error {
	for _, a := range areas {
		if a.Min.X > a.Max.X || a.Min.Y > a.Max.Y || a.Min.Z > a.Max.Z {
			return apperrors.ValidationError("marked area min must not exceed max").WithField("area_id", a.ID)
		}
	}
	return nil
}
