package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"cortex-rag/internal/ratelimit"
	"cortex-rag/internal/transport/http/response"
)

// RateLimit throttles the expensive routes per user. Runs after AuthJWT.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserIDKey)
		if userID == "" {
			response.Error(c, 401, response.CodeUnauthorized, "missing authentication")
			c.Abort()
			return
		}

		if err := limiter.Allow(c.Request.Context(), userID); err != nil {
			var limitErr *ratelimit.LimitError
			if errors.As(err, &limitErr) {
				response.ErrorWithData(c, 429, response.CodeRateLimited, "rate limit exceeded", gin.H{
					"scope":               string(limitErr.Scope),
					"retry_after_seconds": int(limitErr.RetryAfter / time.Second),
				})
				c.Abort()
				return
			}
			response.Error(c, 500, response.CodeInternalServer, "rate limit check failed")
			c.Abort()
			return
		}
		c.Next()
	}
}
