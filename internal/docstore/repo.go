// Package docstore persists collection documents in a single JSON-fields table.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/angelmondragon/studyabroad-backend/pkg/db"
	"github.com/angelmondragon/studyabroad-backend/pkg/db/models"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	ErrConflict = errors.New("docstore: document conflict")
)

// Repository handles document persistence.
type Repository struct {
	db      *gorm.DB
	dialect dialect
}

// NewRepository binds a GORM DB to document operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, dialect: dialectFor(db.Dialector.Name())}
}

// Create inserts doc. ID and timestamps are supplied by the caller.
func (r *Repository) Create(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	if doc.ID == uuid.Nil {
		return fmt.Errorf("document id is required")
	}
	err := r.db.WithContext(ctx).Create(doc).Error
	if pkgdb.IsUniqueViolation(err, "") {
		return fmt.Errorf("%w: id %s already exists", ErrConflict, doc.ID)
	}
	return err
}

// Get loads one document of collection.
func (r *Repository) Get(ctx context.Context, collection string, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&doc).Error
	if pkgdb.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns one page of collection plus the total match count.
func (r *Repository) List(ctx context.Context, collection string, q Query) ([]models.Document, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Document{}).Where("collection = ?", collection)
	for _, f := range q.Filters {
		if err := validateField(f.Field); err != nil {
			return nil, 0, err
		}
		base = base.Where(r.dialect.field(f.Field, f.Kind)+" = ?", r.dialect.bind(f.Kind, f.Value))
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := base.Session(&gorm.Session{})
	for _, s := range q.Sort {
		expr, err := r.orderExpr(s)
		if err != nil {
			return nil, 0, err
		}
		page = page.Order(expr)
	}
	if len(q.Sort) == 0 {
		page = page.Order("created_at DESC")
	}
	page = page.Order("id ASC")
	if q.Limit > 0 {
		page = page.Limit(q.Limit)
	}
	if q.Offset > 0 {
		page = page.Offset(q.Offset)
	}

	var docs []models.Document
	if err := page.Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *Repository) orderExpr(s Sort) (string, error) {
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	if column, ok := columnFields[s.Field]; ok {
		return column + " " + dir, nil
	}
	if err := validateField(s.Field); err != nil {
		return "", err
	}
	return r.dialect.field(s.Field, s.Kind) + " " + dir, nil
}

// Update writes fields, media ref and updatedAt of doc. When expectedUpdatedAt
// is set the write only applies if the stored row still carries it.
func (r *Repository) Update(ctx context.Context, doc *models.Document, expectedUpdatedAt *time.Time) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	tx := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("collection = ? AND id = ?", doc.Collection, doc.ID)
	if expectedUpdatedAt != nil {
		tx = tx.Where("updated_at = ?", *expectedUpdatedAt)
	}
	res := tx.Updates(map[string]any{
		"fields":     doc.Fields,
		"media_ref":  doc.MediaRef,
		"updated_at": doc.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if expectedUpdatedAt != nil {
			if _, err := r.Get(ctx, doc.Collection, doc.ID); err == nil {
				return ErrConflict
			}
		}
		return ErrNotFound
	}
	return nil
}

// Delete removes one document of collection.
func (r *Repository) Delete(ctx context.Context, collection string, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&models.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReferencesAsset reports whether any document still points at assetID.
func (r *Repository) ReferencesAsset(ctx context.Context, assetID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("media_ref = ?", assetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
