package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/studyabroad-backend/pkg/db/models"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
)

const (
	orphanSweepJobName       = "orphan-media-sweep"
	defaultOrphanBatchSize   = 100
	defaultOrphanMaxAttempts = 10
)

type orphanRepo interface {
	ListDue(ctx context.Context, limit, maxAttempts int) ([]models.OrphanedMedia, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
	Remove(ctx context.Context, id uuid.UUID) error
}

type assetReferences interface {
	ReferencesAsset(ctx context.Context, assetID string) (bool, error)
}

type assetDeleter interface {
	Delete(ctx context.Context, bucket, assetID string) error
}

// OrphanMediaSweepJobParams wires the orphan sweep.
type OrphanMediaSweepJobParams struct {
	Logger      *logger.Logger
	Repo        orphanRepo
	Documents   assetReferences
	Media       assetDeleter
	Metrics     *metrics.CronJobMetrics
	BatchSize   int
	MaxAttempts int
}

// NewOrphanMediaSweepJob retries deletion of assets whose cleanup failed
// during a record write.
func NewOrphanMediaSweepJob(params OrphanMediaSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orphan repository required")
	}
	if params.Documents == nil {
		return nil, fmt.Errorf("document repository required")
	}
	if params.Media == nil {
		return nil, fmt.Errorf("media store required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOrphanBatchSize
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultOrphanMaxAttempts
	}
	return &orphanMediaSweepJob{
		logg:        params.Logger,
		repo:        params.Repo,
		docs:        params.Documents,
		media:       params.Media,
		metrics:     params.Metrics,
		batchSize:   batch,
		maxAttempts: attempts,
	}, nil
}

type orphanMediaSweepJob struct {
	logg        *logger.Logger
	repo        orphanRepo
	docs        assetReferences
	media       assetDeleter
	metrics     *metrics.CronJobMetrics
	batchSize   int
	maxAttempts int
}

func (j *orphanMediaSweepJob) Name() string { return orphanSweepJobName }

// Run processes one batch. Assets a document points at again are dropped from
// the queue without touching storage. Individual delete failures are recorded
// on the entry and do not fail the run; bookkeeping failures do.
func (j *orphanMediaSweepJob) Run(ctx context.Context) error {
	rows, err := j.repo.ListDue(ctx, j.batchSize, j.maxAttempts)
	if err != nil {
		return fmt.Errorf("query orphaned media: %w", err)
	}

	var (
		deleted, failed, kept int
		errs                  error
	)
	for _, row := range rows {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		rowCtx := j.logg.WithFields(ctx, map[string]any{
			"bucket":   row.Bucket,
			"asset_id": row.AssetID,
			"attempts": row.Attempts,
		})
		inUse, refErr := j.docs.ReferencesAsset(ctx, row.AssetID)
		if refErr != nil {
			failed++
			j.logg.WarnErr(rowCtx, "orphaned media reference check failed", refErr)
			errs = multierr.Append(errs, j.repo.MarkFailed(ctx, row.ID, refErr))
			continue
		}
		if inUse {
			kept++
			j.logg.Info(rowCtx, "orphaned media still referenced, dropping from queue")
			errs = multierr.Append(errs, j.repo.Remove(ctx, row.ID))
			continue
		}
		if delErr := j.media.Delete(ctx, row.Bucket, row.AssetID); delErr != nil {
			failed++
			j.logg.WarnErr(rowCtx, "orphaned media delete failed", delErr)
			errs = multierr.Append(errs, j.repo.MarkFailed(ctx, row.ID, delErr))
			continue
		}
		deleted++
		errs = multierr.Append(errs, j.repo.Remove(ctx, row.ID))
	}

	j.metrics.AddItems(orphanSweepJobName, "deleted", deleted)
	j.metrics.AddItems(orphanSweepJobName, "failed", failed)
	j.metrics.AddItems(orphanSweepJobName, "referenced", kept)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(rows),
		"deleted":    deleted,
		"failed":     failed,
		"referenced": kept,
	})
	j.logg.Info(logCtx, "orphaned media sweep complete")

	if errs != nil {
		return fmt.Errorf("orphaned media bookkeeping: %w", errs)
	}
	return nil
}
