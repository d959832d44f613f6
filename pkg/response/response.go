package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/aecdata/pipeline/pkg/errors"
)

const jsonContentType = "application/json; charset=utf-8"

// ErrorBody is the payload written for every failed request.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success writes data as the JSON response body.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// Raw writes an already serialised JSON body.
func Raw(c *gin.Context, statusCode int, body []byte) {
	c.Data(statusCode, jsonContentType, body)
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		// Surfaced by the access logger; the body never carries the cause.
		_ = c.Error(err)
	}

	c.JSON(status, ErrorBody{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Message: appErr.Detail,
	})
}

// Abort writes the error response and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
