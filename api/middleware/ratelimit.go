package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/angelmondragon/studyabroad-backend/api/responses"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
)

// SubmissionRateLimit caps anonymous submissions per client IP. A non-positive
// limit disables it.
func SubmissionRateLimit(limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many submissions, try again later"))
		}),
	)
}
