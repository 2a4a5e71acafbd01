package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rewardzway/internal/observability/logger"
	"go.uber.org/zap"
)

// RewardWriteRateLimit throttles reward-writing endpoints per client address.
func (s *Server) RewardWriteRateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.limiter.Allow(ctx, scope, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("reward write rate limit check failed",
				zap.String("scope", scope),
				zap.Error(err),
			)
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			logger.FromContext(ctx).Warn("reward write rate limit exceeded",
				zap.String("scope", scope),
				zap.String("client_ip", c.ClientIP()),
			)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}
