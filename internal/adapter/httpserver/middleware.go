package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/ognjhunt/blueprintxr/internal/adapter/resilience"
	"github.com/ognjhunt/blueprintxr/internal/anchor"
	"github.com/ognjhunt/blueprintxr/internal/domain"
	"github.com/ognjhunt/blueprintxr/internal/platform/correlation"
	apperrors "github.com/ognjhunt/blueprintxr/internal/platform/errors"
)

const correlationHeader = "X-Correlation-ID"

// correlationMiddleware reuses an incoming correlation id or starts a new one,
// and echoes it back in the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" || len(id) > 64 {
			id = correlation.NewID()
		}
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationHeader, id)
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

// HandleError writes err as a structured JSON error response.
func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := toAPIError(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

// toAPIError classifies domain and adapter errors into API error types.
func toAPIError(err error) *apperrors.Error {
	var structured *apperrors.Error
	if errors.As(err, &structured) {
		return structured
	}

	var denied *domain.PermissionsDeniedError
	var unsupported *domain.FeatureUnsupportedError

	switch {
	case errors.Is(err, ErrScreenNotFound):
		return apperrors.NotFoundError("screen not found")
	case errors.Is(err, domain.ErrAnchorNotFound):
		return apperrors.NotFoundError("anchor not found")
	case errors.Is(err, domain.ErrDocumentNotFound):
		return apperrors.NotFoundError("document not found")
	case errors.Is(err, ErrTooManyScreens):
		return apperrors.ConflictError("too many open screens", err)
	case errors.Is(err, domain.ErrNotReady),
		errors.Is(err, domain.ErrPlacementNotArmed),
		errors.Is(err, domain.ErrNotPersisted),
		errors.Is(err, anchor.ErrPersistentIDInUse):
		return apperrors.ConflictError(rootMessage(err), err)
	case errors.As(err, &denied), errors.As(err, &unsupported):
		return apperrors.UnavailableError(err.Error(), err)
	case errors.Is(err, domain.ErrCoordinatorClosed),
		errors.Is(err, domain.ErrEngineUnavailable),
		errors.Is(err, domain.ErrSessionClosed):
		return apperrors.UnavailableError("ar session unavailable", err)
	case errors.Is(err, resilience.ErrBreakerOpen), errors.Is(err, context.DeadlineExceeded):
		return apperrors.UnavailableError("document store unavailable", err)
	case errors.Is(err, domain.ErrEngineRejected),
		errors.Is(err, domain.ErrPersistedAnchorNotFound):
		return apperrors.ExternalError("ar engine rejected the operation", err)
	case errors.Is(err, domain.ErrSaveFailed):
		return apperrors.ExternalError("failed to save anchor", err)
	default:
		return apperrors.AsStructuredError(err)
	}
}

// rootMessage is the message of the innermost domain sentinel in err.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		domain.ErrNotReady,
		domain.ErrPlacementNotArmed,
		domain.ErrNotPersisted,
		anchor.ErrPersistentIDInUse,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict:
		slog.InfoContext(ctx, "Conflict", attrs...)
	case apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Unavailable", attrs...)
	case apperrors.TypeInternal:
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}
