package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/meterline/meterline/internal/types"
)

// RequestIDMiddleware tags every request with a correlation id. The
// client's X-Request-Id is honored when present; otherwise one is
// generated. The id is echoed back on the response.
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST)
	}

	ctx := context.WithValue(c.Request.Context(), types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}
