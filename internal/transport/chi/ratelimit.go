package chi

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/skuindex/internal/domain"
)

// RateLimitMiddleware rejects requests with 429 once the limiter's bucket is empty.
// A nil limiter passes everything through.
func RateLimitMiddleware(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, domain.ErrRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
