package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/studyabroad-backend/api/responses"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/studyabroad-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

// idempotentRoutes maps "METHOD pattern" to how long a response is replayable.
// Public submissions keep their keys for a week since form resubmits come late.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/public/submissions": 7 * 24 * time.Hour,
	http.MethodPost + " /api/{entity}":           24 * time.Hour,
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response of a create request retried with
// the same Idempotency-Key. Requests without the header pass through, as does
// everything when store is nil. 5xx responses are never stored so a failed
// create can be retried.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := idempotentRoutes[r.Method+" "+routePattern(r)]
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if !ok || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeTooLarge, "request body too large"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(r.Header.Get("Content-Type"), body)
			key := store.IdempotencyKey(r.Method+"|"+r.URL.Path, clientKey)

			prev, err := lookup(r.Context(), store, logg, key)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check idempotency"))
				return
			}
			if prev != nil {
				if prev.RequestHash != hash {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replay(w, prev)
				return
			}

			capture := &responseCapture{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			if capture.code() >= http.StatusInternalServerError {
				return
			}
			persist(context.WithoutCancel(r.Context()), store, logg, key, ttl, storedResponse{
				Status:      capture.code(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
		})
	}
}

// lookup returns the stored response for key. A record that cannot be decoded
// is dropped so the request runs fresh.
func lookup(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var prev storedResponse
	if err := json.Unmarshal([]byte(raw), &prev); err != nil || prev.Status == 0 {
		if err == nil {
			err = errors.New("stored response missing status")
		}
		logWarn(ctx, logg, "idempotency.record_corrupt", err)
		if delErr := store.Del(ctx, key); delErr != nil {
			logWarn(ctx, logg, "idempotency.record_delete_failed", delErr)
		}
		return nil, nil
	}
	return &prev, nil
}

func persist(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string, ttl time.Duration, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		logWarn(ctx, logg, "idempotency.marshal_failed", err)
		return
	}
	if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
		logWarn(ctx, logg, "idempotency.persist_failed", err)
	}
}

func replay(w http.ResponseWriter, prev *storedResponse) {
	if prev.ContentType != "" {
		w.Header().Set("Content-Type", prev.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(prev.Status)
	_, _ = w.Write(prev.Body)
}

// requestHash covers the media type and body. Multipart boundaries differ per
// request, so parameters are dropped from the content type.
func requestHash(contentType string, body []byte) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(contentType))))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// responseCapture records the status like statusRecorder and keeps a copy of the body.
type responseCapture struct {
	statusRecorder
	body bytes.Buffer
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}

func logWarn(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.WarnErr(ctx, msg, err)
}
