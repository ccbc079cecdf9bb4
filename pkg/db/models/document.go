package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/studyabroad-backend/pkg/db/types"
)

// Document is one record of a content collection. Fields hold the encoded
// attribute values; structured values are JSON strings.
type Document struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Collection string          `gorm:"column:collection;not null"`
	Fields     dbtypes.JSONMap `gorm:"column:fields;type:jsonb;not null"`
	MediaRef   *string         `gorm:"column:media_ref"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (Document) TableName() string { return "documents" }
