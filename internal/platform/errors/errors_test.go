package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{ConflictError("not armed", nil), http.StatusConflict},
		{UnavailableError("session closed", nil), http.StatusServiceUnavailable},
		{ExternalError("store down", nil), http.StatusBadGateway},
		{InternalError("boom", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := ExternalError("document store unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "external: document store unavailable: connection refused", err.Error())
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := NotFoundError("screen not found").WithField("screen_id", "s1")
	wrapped := fmt.Errorf("handler: %w", original)
	got := AsStructuredError(wrapped)
	require.Same(t, original, got)
	assert.Equal(t, "s1", got.Context["screen_id"])

	plain := AsStructuredError(errors.New("oops"))
	assert.Equal(t, TypeInternal, plain.Type)
}

func TestToResponse(t *testing.T) {
	resp := ValidationError("container_id is required").WithField("field", "container_id").ToResponse()
	assert.Equal(t, "container_id is required", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "container_id", resp.Context["field"])
}
