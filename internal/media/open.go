package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/studyabroad-backend/pkg/config"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage/breaker"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage/gcs"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage/local"
)

// Stores is the configured media driver.
type Stores struct {
	// Store is the driver behind the circuit breaker and, when requested, the
	// preview cache.
	Store storage.Store
	// Local is set for the local driver so its signed URLs can be served.
	Local *local.Store
}

// OpenOptions tune Open.
type OpenOptions struct {
	CachePreviews bool
	Metrics       *metrics.MediaMetrics
	// Buckets are prepared ahead of use by drivers that keep per-bucket state.
	Buckets []string
}

// Open builds the media driver named by cfg.Media.Driver.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts OpenOptions) (Stores, error) {
	var (
		out  Stores
		base storage.Store
	)
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Media.Driver)); driver {
	case config.MediaDriverGCS:
		client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, cfg.FeatureFlags.PublicGCS(), logg)
		if err != nil {
			return Stores{}, fmt.Errorf("gcs client: %w", err)
		}
		base = gcs.NewStore(client)
	case config.MediaDriverLocal, "":
		store, err := local.New(cfg.Media.LocalDir, cfg.Media.PublicBaseURL, cfg.Media.SigningSecret)
		if err != nil {
			return Stores{}, fmt.Errorf("local media: %w", err)
		}
		if err := store.Prepare(opts.Buckets...); err != nil {
			return Stores{}, fmt.Errorf("local media: %w", err)
		}
		if strings.TrimSpace(cfg.Media.SigningSecret) == "" {
			if cfg.App.IsProd() {
				return Stores{}, fmt.Errorf("local media: STUDYABROAD_MEDIA_SIGNING_SECRET is required in %s", cfg.App.Env)
			}
			logg.Warn(ctx, "media.signing_secret_missing")
		}
		out.Local = store
		base = store
	default:
		return Stores{}, fmt.Errorf("unsupported media driver %q", driver)
	}

	out.Store = breaker.Wrap(base, cfg.Breaker, logg)
	if opts.CachePreviews && cfg.Media.PreviewCacheTTL > 0 {
		out.Store = NewCachingStore(out.Store, cfg.Media.PreviewCacheSize, cfg.Media.PreviewCacheTTL, opts.Metrics)
	}
	return out, nil
}
