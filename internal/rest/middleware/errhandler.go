package middleware

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// ErrorResponse is the body shape of every failed request
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	RequestID  string `json:"requestId"`
}

// ErrorHandler renders the last handler error as JSON. Handlers push
// errors with c.Error and abort; this middleware owns the wire shape.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)
		c.JSON(status, ErrorResponse{
			Error:      ierr.ErrorCodeFromErr(err),
			Message:    displayMessage(err),
			StatusCode: status,
			RequestID:  types.GetRequestID(c.Request.Context()),
		})
	}
}

func displayMessage(err error) string {
	// GetAllHints walks post-order; the first non-empty hint is the
	// most specific one.
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}
