// ratelimit.go implements a fixed-window rate limiter with counters in
// Redis, so every instance behind the load balancer shares one budget.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// rateLimitKeyPrefix namespaces limiter counters in Redis.
const rateLimitKeyPrefix = "ratelimit:"

// redisTimeout bounds each limiter round trip so a slow Redis cannot stall
// requests.
const redisTimeout = 250 * time.Millisecond

// KeyFunc extracts the identity a request is counted against.
type KeyFunc func(c echo.Context) string

// RateLimit returns middleware that allows maxRequests per key within each
// window. The counter for a key is created by the first request of a window
// and expires with it. When Redis is unavailable requests are allowed.
func RateLimit(rdb *redis.Client, maxRequests int, window time.Duration, keyFn KeyFunc) echo.MiddlewareFunc {
	if window <= 0 {
		window = time.Minute
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if maxRequests <= 0 {
				return next(c)
			}
			key := keyFn(c)
			if key == "" {
				key = "ip:" + c.RealIP()
			}

			count, ttl, err := hit(c.Request().Context(), rdb, rateLimitKeyPrefix+key, window)
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request",
					slog.String("key", key),
					slog.Any("error", err),
				)
				return next(c)
			}

			remaining := max(maxRequests-int(count), 0)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if int(count) > maxRequests {
				h.Set("Retry-After", strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "Too Many Requests",
					"message": "Rate limit exceeded. Please try again later.",
				})
			}
			return next(c)
		}
	}
}

// hit increments the window counter for key and returns the new count and
// the time left in the window.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		// A counter without expiry would never reset.
		if ttl == -1 {
			_ = rdb.Expire(ctx, key, window).Err()
		}
		ttl = window
	}
	return count, ttl, nil
}
