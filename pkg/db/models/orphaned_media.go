package models

import (
	"time"

	"github.com/google/uuid"
)

// OrphanedMedia is an asset whose best-effort deletion failed and awaits the sweep job.
type OrphanedMedia struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Bucket    string    `gorm:"column:bucket;not null"`
	AssetID   string    `gorm:"column:asset_id;not null"`
	Reason    string    `gorm:"column:reason;not null"`
	LastError *string   `gorm:"column:last_error"`
	Attempts  int       `gorm:"column:attempts;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (OrphanedMedia) TableName() string { return "orphaned_media" }
