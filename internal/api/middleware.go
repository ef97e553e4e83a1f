package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

const HeaderRequestID = "X-Request-ID"

// RequestLogger tags each request with an id, echoes it back and stores a
// request-scoped zap logger on the request context.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		reqLogger := logger.With(zap.String("request_id", requestID))
		c.Request = c.Request.WithContext(utils.WithLogger(c.Request.Context(), reqLogger))

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if variant := c.GetHeader(HeaderAssistantType); variant != "" {
			fields = append(fields, zap.String("assistant_type", variant))
		}

		if c.Writer.Status() >= 500 {
			reqLogger.Warn("http request", fields...)
			return
		}
		reqLogger.Info("http request", fields...)
	}
}
