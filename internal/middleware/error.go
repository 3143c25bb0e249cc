package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/dispensing-api/internal/handler"
	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
)

// ErrorHandler logs the errors handlers attached with c.Error and writes the
// last one as the response when the handler wrote nothing.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last().Err
		message := "internal server error"
		var appErr *apperrors.AppError
		if errors.As(lastErr, &appErr) {
			message = appErr.Message
		}
		c.JSON(apperrors.StatusOf(lastErr), handler.NewErrorResponse(message))
	}
}
