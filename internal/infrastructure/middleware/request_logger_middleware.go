package middleware

import (
	"fmt"
	"time"

	"stagecast/pkg/logger"
	"stagecast/pkg/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware tags every request with a correlation id and writes
// the access log line through the context logger. An inbound X-Request-ID is
// honored so ids survive proxy hops.
func RequestLoggerMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)

		c.Next()

		// The auth middleware runs after us, so the identity is only known
		// once the chain unwinds.
		if userID, ok := c.Get("user_id"); ok {
			ctx = logger.WithParticipant(ctx, fmt.Sprint(userID))
		}
		cl.LogRequest(ctx, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
