// Package cleanup queues media assets whose deletion failed so the sweep job
// can retry them.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/studyabroad-backend/pkg/db/models"
)

// Repository persists orphaned media entries.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository binds a GORM DB to orphan queue operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Enqueue records an orphaned asset. Re-queuing the same asset refreshes its
// reason and last error without resetting the attempt count.
func (r *Repository) Enqueue(ctx context.Context, bucket, assetID, reason string, cause error) error {
	if bucket == "" || assetID == "" {
		return errors.New("bucket and asset id are required")
	}
	now := r.now().UTC()
	row := &models.OrphanedMedia{
		ID:        uuid.New(),
		Bucket:    bucket,
		AssetID:   assetID,
		Reason:    reason,
		LastError: errorText(cause),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "bucket"}, {Name: "asset_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"reason":     reason,
			"last_error": row.LastError,
			"updated_at": now,
		}),
	}).Create(row).Error
}

// ListDue returns up to limit entries that have been attempted fewer than
// maxAttempts times, oldest first.
func (r *Repository) ListDue(ctx context.Context, limit, maxAttempts int) ([]models.OrphanedMedia, error) {
	var rows []models.OrphanedMedia
	q := r.db.WithContext(ctx).Order("updated_at ASC").Order("id ASC")
	if maxAttempts > 0 {
		q = q.Where("attempts < ?", maxAttempts)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list orphaned media: %w", err)
	}
	return rows, nil
}

// MarkFailed increments the attempt count and stores the latest error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	return r.db.WithContext(ctx).
		Model(&models.OrphanedMedia{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": errorText(cause),
			"updated_at": r.now().UTC(),
		}).Error
}

// Remove drops an entry once its asset is gone.
func (r *Repository) Remove(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OrphanedMedia{}).Error
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	return &msg
}
