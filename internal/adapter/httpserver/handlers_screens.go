package httpserver

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ognjhunt/blueprintxr/internal/app"
	apperrors "github.com/ognjhunt/blueprintxr/internal/platform/errors"
)

type placeRequest struct {
	ContainerID string `json:"container_id"`
}

type persistRequest struct {
	ContainerID string `json:"container_id"`
	Name        string `json:"name"`
}

type downloadRequest struct {
	ContainerID string   `json:"container_id"`
	AnchorIDs   []string `json:"anchor_ids"`
}

func (s *Server) registerScreenRoutes(g *echo.Group) {
	g.POST("", s.handleOpenScreen)
	g.DELETE("/:id", s.handleCloseScreen)
	g.GET("/:id/state", s.handleState)
	g.GET("/:id/stream", s.handleStream)
	g.GET("/:id/area", s.handleCurrentArea)

	g.POST("/:id/init", s.handleInit)
	g.POST("/:id/resume", s.handleResume)
	g.POST("/:id/pause", s.handlePause)
	g.POST("/:id/placement/toggle", s.handleTogglePlacement)

	g.POST("/:id/anchors", s.handlePlaceAnchor)
	g.DELETE("/:id/anchors/:local_id", s.handleRemoveAnchor)
	g.POST("/:id/anchors/:local_id/persist", s.handlePersistAnchor)
	g.POST("/:id/anchors/:local_id/unpersist", s.handleUnpersistAnchor)
	g.GET("/:id/persisted", s.handleListPersisted)
	g.POST("/:id/download", s.handleDownload)
}

func (s *Server) screen(c echo.Context) (*app.Coordinator, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.ValidationError("invalid screen id").WithField("screen_id", raw)
	}
	coord, err := s.screens.Get(id)
	if err != nil {
		return nil, apperrors.NotFoundError("screen not found").WithField("screen_id", raw)
	}
	return coord, nil
}

func localID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("local_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid local anchor id").WithField("local_id", raw)
	}
	return id, nil
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleOpenScreen(c echo.Context) error {
	id, _, err := s.screens.Open()
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, map[string]string{"id": id.String()})
}

func (s *Server) handleCloseScreen(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid screen id").WithField("screen_id", c.Param("id"))
	}
	if err := s.screens.Close(id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleState(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, coord.Snapshot())
}

func (s *Server) handleCurrentArea(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	containerID := c.QueryParam("container_id")
	if containerID == "" {
		return apperrors.ValidationError("container_id is required")
	}

	area, err := coord.CurrentArea(c.Request().Context(), containerID)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"area": area})
}

func (s *Server) handleInit(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	if err := coord.Init(c.Request().Context()); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, coord.Snapshot())
}

func (s *Server) handleResume(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	if err := coord.Resume(c.Request().Context()); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, coord.Snapshot())
}

func (s *Server) handlePause(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	if err := coord.Pause(c.Request().Context()); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, coord.Snapshot())
}

func (s *Server) handleTogglePlacement(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	mode, err := coord.TogglePlacement(c.Request().Context())
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]any{"placement": mode})
}

func (s *Server) handlePlaceAnchor(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	var req placeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.ContainerID == "" {
		return apperrors.ValidationError("container_id is required")
	}

	res, err := coord.PlaceAnchor(c.Request().Context(), req.ContainerID)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, res)
}

func (s *Server) handlePersistAnchor(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	id, err := localID(c)
	if err != nil {
		return err
	}
	var req persistRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	rec, err := coord.PersistAndSave(c.Request().Context(), id, req.ContainerID, req.Name)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, rec)
}

func (s *Server) handleUnpersistAnchor(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	id, err := localID(c)
	if err != nil {
		return err
	}
	if err := coord.UnpersistAnchor(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRemoveAnchor(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	id, err := localID(c)
	if err != nil {
		return err
	}
	if err := coord.RemoveAnchor(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListPersisted(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	ids, err := coord.ListPersisted(c.Request().Context())
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return writeJSON(c, http.StatusOK, map[string]any{"persistent_ids": ids})
}

func (s *Server) handleDownload(c echo.Context) error {
	coord, err := s.screen(c)
	if err != nil {
		return err
	}
	var req downloadRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.ContainerID == "" && len(req.AnchorIDs) == 0 {
		return apperrors.ValidationError("container_id or anchor_ids is required")
	}

	report, err := coord.DownloadAndResolve(c.Request().Context(), req.ContainerID, req.AnchorIDs)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, report)
}
