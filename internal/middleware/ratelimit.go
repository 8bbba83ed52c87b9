package middleware

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskforge/taskify/internal/api"
)

// RateLimit throttles requests per client address with a fixed window
// counter in Redis. Counting errors fail open: throttling is a boundary
// protection, not a correctness requirement.
func RateLimit(rdb *redis.Client, window time.Duration, max int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			key := "ratelimit:" + ip
			count, err := rdb.Incr(r.Context(), key).Result()
			if err != nil {
				log.Printf("rate limit incr: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(r.Context(), key, window)
			}
			if count > int64(max) {
				api.WriteError(w, api.NewError(http.StatusTooManyRequests, api.CodeRateLimited, "Too many requests, please try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
