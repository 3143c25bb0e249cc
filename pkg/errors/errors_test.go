package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cause := stderrors.New("lookup timed out")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("patient", nil), http.StatusNotFound},
		{"bad request", BadRequest("invalid document ID", nil), http.StatusBadRequest},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
		{"forbidden", Forbidden("access denied"), http.StatusForbidden},
		{"conflict", Conflict("email already in use", nil), http.StatusConflict},
		{"unprocessable", Unprocessable("file is empty", nil), http.StatusUnprocessableEntity},
		{"upstream", Upstream("patient lookup unavailable", cause), http.StatusBadGateway},
		{"internal", Internal(cause), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("save: %w", Conflict("busy", nil)), http.StatusConflict},
		{"plain", cause, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Upstream("patient lookup unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "patient lookup unavailable: connection refused", err.Error())
	assert.Equal(t, "patient not found", NotFound("patient", nil).Error())
}
