package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/ognjhunt/blueprintxr/internal/platform/errors"
)

func (s *Server) registerModelRoutes(g *echo.Group) {
	g.GET("/:id", s.handleGetModel)
}

func (s *Server) handleGetModel(c echo.Context) error {
	id := c.Param("id")
	model, err := s.models.GetModel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if model == nil {
		return apperrors.NotFoundError("model not found").WithField("model_id", id)
	}
	return writeJSON(c, http.StatusOK, model)
}
