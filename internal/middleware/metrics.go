package middleware

import (
	"net/http"
	"time"

	"github.com/stacklane/stacklane/internal/metrics"
)

// unmatchedRoute labels requests that matched no route, keeping label
// cardinality bounded.
const unmatchedRoute = "unmatched"

// Instrument records one observation per request, labelled by the chi
// route pattern rather than the raw path.
func Instrument(recorder metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			if route == "" {
				route = unmatchedRoute
			}
			recorder.ObserveHTTPRequest(r.Method, route, wrapped.status, time.Since(start))
		})
	}
}
