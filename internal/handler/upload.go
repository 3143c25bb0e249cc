package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReadUpload reads a multipart file field, refusing more than maxBytes.
// On failure the response is written and ok is false.
func ReadUpload(c *gin.Context, field string, maxBytes int64) (name string, data []byte, ok bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("multipart field %q is required", field)))
		return "", nil, false
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse("file exceeds the upload limit"))
		return "", nil, false
	}

	f, err := fh.Open()
	if err != nil {
		Fail(c, fmt.Errorf("failed to open upload: %w", err))
		return "", nil, false
	}
	defer f.Close()

	limit := maxBytes
	if limit <= 0 {
		limit = fh.Size
	}
	data, err = io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		Fail(c, fmt.Errorf("failed to read upload: %w", err))
		return "", nil, false
	}
	if int64(len(data)) > limit {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse("file exceeds the upload limit"))
		return "", nil, false
	}
	return fh.Filename, data, true
}
