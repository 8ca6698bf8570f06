package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := limiter.Reserve()
		if !reservation.OK() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		delay := reservation.Delay()
		if delay > 0 {
			reservation.Cancel()
			retryAfter := int(delay.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware bounds concurrent requests. A request that cannot
// enter within wait is shed with 503 instead of queuing unbounded.
func backpressureMiddleware(next http.Handler, maxInFlight int, wait time.Duration) http.Handler {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if wait <= 0 {
		wait = 50 * time.Millisecond
	}
	slots := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request canceled while waiting for capacity"})
		case <-timer.C:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server overloaded, try again later"})
		}
	})
}
