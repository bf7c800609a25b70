package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the JSON body of every error response
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// NewResponse builds the body for a status and message
func NewResponse(status int, message string) Response {
	return Response{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	}
}

// Abort writes the error envelope for err and stops the handler chain
func Abort(c *gin.Context, err error) {
	status := KindOf(err).Status()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, NewResponse(status, MessageOf(err)))
}

// AbortWithStatus writes the error envelope with an explicit status
func AbortWithStatus(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, NewResponse(status, message))
}
