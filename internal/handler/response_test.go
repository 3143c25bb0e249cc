package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
	"github.com/jwalitptl/dispensing-api/pkg/validator"
)

func failWith(err error) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Fail(c, err)
	return w, c
}

func TestFail(t *testing.T) {
	w, c := failWith(apperrors.NotFound("document", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"document not found"}`, w.Body.String())
	assert.Empty(t, c.Errors)

	fields := validator.Errors{{Field: "email", Message: "must be a valid email"}}
	w, _ = failWith(apperrors.BadRequest("invalid user", fields))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"invalid user","data":{"fields":[{"field":"email","message":"must be a valid email"}]}}`, w.Body.String())

	w, c = failWith(errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"internal server error"}`, w.Body.String())
	require.Len(t, c.Errors, 1)
}
