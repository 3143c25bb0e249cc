package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/dispensing-api/pkg/errors"
	"github.com/jwalitptl/dispensing-api/pkg/validator"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Fail writes err as an error response. Application errors keep their status
// and message, with the failed fields as data when validation caused them.
// Anything else is a 500 whose cause is only logged.
func Fail(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := appErr.StatusCode()
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		var fields validator.Errors
		if errors.As(err, &fields) {
			FailWith(c, status, appErr.Message, gin.H{"fields": fields})
			return
		}
		c.JSON(status, NewErrorResponse(appErr.Message))
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
}

// FailWith writes a response with data alongside the error message, such as
// the fields of a rejected form.
func FailWith(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, &Response{Status: "error", Message: message, Data: data})
}
