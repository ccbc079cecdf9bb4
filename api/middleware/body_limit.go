package middleware

import "net/http"

// BodyLimit caps request bodies at limit bytes so nothing upstream of the
// controller, such as idempotency hashing, can buffer an unbounded upload.
// Reads past the cap fail with *http.MaxBytesError. A non-positive limit
// disables it.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
