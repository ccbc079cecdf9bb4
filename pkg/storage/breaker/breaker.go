// Package breaker wraps a storage.Store with a circuit breaker so a failing
// media backend fails fast instead of stalling every request.
package breaker

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/studyabroad-backend/pkg/config"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

const name = "media-store"

type Store struct {
	next storage.Store
	cb   *gobreaker.CircuitBreaker[string]
}

var _ storage.Store = (*Store)(nil)

// Wrap returns next guarded by a breaker, or next itself when disabled.
func Wrap(next storage.Store, cfg config.BreakerConfig, logg *logger.Logger) storage.Store {
	if !cfg.Enabled {
		return next
	}
	return New(next, cfg, logg)
}

func New(next storage.Store, cfg config.BreakerConfig, logg *logger.Logger) *Store {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "media store circuit breaker state changed")
		},
		IsSuccessful: isSuccessful,
	})
	return &Store{next: next, cb: cb}
}

// isSuccessful keeps missing assets and caller cancellations out of the failure count.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, storage.ErrAssetNotFound) ||
		errors.Is(err, context.Canceled)
}

func (s *Store) Store(ctx context.Context, bucket string, upload storage.Upload) (string, error) {
	return s.cb.Execute(func() (string, error) {
		return s.next.Store(ctx, bucket, upload)
	})
}

func (s *Store) PreviewURL(ctx context.Context, bucket, assetID string, opts storage.PreviewOptions) (string, error) {
	return s.cb.Execute(func() (string, error) {
		return s.next.PreviewURL(ctx, bucket, assetID, opts)
	})
}

func (s *Store) Delete(ctx context.Context, bucket, assetID string) error {
	_, err := s.cb.Execute(func() (string, error) {
		return "", s.next.Delete(ctx, bucket, assetID)
	})
	return err
}

// Ping bypasses the breaker so readiness reports the backend's real state.
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// State reports the breaker state for diagnostics.
func (s *Store) State() string {
	return s.cb.State().String()
}
