package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/interviewlab/core/internal/pkg/response"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitWindow = time.Minute

// RateLimit caps requests per authenticated user per minute for the routes it
// guards. Redis failures let the request through. max <= 0 disables it.
func RateLimit(rdb *redis.Client, name string, max int, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || max <= 0 {
			c.Next()
			return
		}
		subject := CurrentUserID(c)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}

		ctx := c.Request.Context()
		key := rateLimitKey(name, subject, time.Now())
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("rate limit unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		if count > int64(max) {
			c.Header("Retry-After", strconv.Itoa(secondsUntilNextWindow(time.Now())))
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}

func rateLimitKey(name, subject string, now time.Time) string {
	return fmt.Sprintf("iv:rate_limit:%s:%s:%d", name, subject, now.Unix()/int64(rateLimitWindow/time.Second))
}

func secondsUntilNextWindow(now time.Time) int {
	w := int64(rateLimitWindow / time.Second)
	return int(w - now.Unix()%w)
}
