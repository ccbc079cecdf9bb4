package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/studyabroad-backend/pkg/config"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

type stubStore struct {
	err   error
	calls int
}

func (s *stubStore) Store(context.Context, string, storage.Upload) (string, error) {
	s.calls++
	return "asset", s.err
}

func (s *stubStore) PreviewURL(context.Context, string, string, storage.PreviewOptions) (string, error) {
	s.calls++
	return "", s.err
}

func (s *stubStore) Delete(context.Context, string, string) error {
	s.calls++
	return s.err
}

func (s *stubStore) Ping(context.Context) error { return nil }

func testConfig() config.BreakerConfig {
	return config.BreakerConfig{Enabled: true, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 2}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &stubStore{err: errors.New("backend down")}
	s := New(next, testConfig(), nil)

	for i := 0; i < 2; i++ {
		err := s.Delete(context.Background(), "team", "a")
		require.Error(t, err)
	}
	err := s.Delete(context.Background(), "team", "a")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls, "open breaker must not reach the backend")
	assert.Equal(t, "open", s.State())
}

func TestMissingAssetDoesNotTrip(t *testing.T) {
	next := &stubStore{err: storage.ErrAssetNotFound}
	s := New(next, testConfig(), nil)

	for i := 0; i < 5; i++ {
		_, err := s.PreviewURL(context.Background(), "team", "a", storage.PreviewOptions{})
		assert.ErrorIs(t, err, storage.ErrAssetNotFound)
	}
	assert.Equal(t, 5, next.calls)
	assert.Equal(t, "closed", s.State())
}

func TestWrapDisabledReturnsNext(t *testing.T) {
	next := &stubStore{}
	cfg := testConfig()
	cfg.Enabled = false
	assert.Same(t, storage.Store(next), Wrap(next, cfg, nil))
}
