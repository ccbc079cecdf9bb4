package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/studyabroad-backend/internal/docstore"
	"github.com/angelmondragon/studyabroad-backend/internal/media"
	"github.com/angelmondragon/studyabroad-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/studyabroad-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
	"github.com/angelmondragon/studyabroad-backend/pkg/pagination"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

// DocumentStore is the persistence surface the manager needs.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, collection string, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, collection string, q docstore.Query) ([]models.Document, int64, error)
	Update(ctx context.Context, doc *models.Document, expectedUpdatedAt *time.Time) error
	Delete(ctx context.Context, collection string, id uuid.UUID) error
}

// OrphanQueue records assets whose cleanup failed so they can be retried.
type OrphanQueue interface {
	Enqueue(ctx context.Context, bucket, assetID, reason string, cause error) error
}

// Orphan reasons recorded with queued cleanups.
const (
	ReasonReplaced    = "replaced"
	ReasonDeleted     = "record_deleted"
	ReasonWriteFailed = "write_failed"
)

// ManagerParams wires the manager.
type ManagerParams struct {
	Documents      DocumentStore
	Media          storage.Store
	Codec          *Codec
	Orphans        OrphanQueue
	Logger         *logger.Logger
	Metrics        *metrics.MediaMetrics
	MaxUploadBytes int64
	Now            func() time.Time
}

// Manager keeps records and their media assets consistent across writes.
type Manager struct {
	docs      DocumentStore
	media     storage.Store
	codec     *Codec
	orphans   OrphanQueue
	logg      *logger.Logger
	metrics   *metrics.MediaMetrics
	maxUpload int64
	now       func() time.Time
}

func NewManager(p ManagerParams) (*Manager, error) {
	if p.Documents == nil {
		return nil, errors.New("document store is required")
	}
	if p.Codec == nil {
		return nil, errors.New("codec is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		docs:      p.Documents,
		media:     p.Media,
		codec:     p.Codec,
		orphans:   p.Orphans,
		logg:      p.Logger,
		metrics:   p.Metrics,
		maxUpload: p.MaxUploadBytes,
		now:       now,
	}, nil
}

// UpdateOptions carries optional update preconditions.
type UpdateOptions struct {
	// ExpectedUpdatedAt rejects the update with a conflict unless the stored
	// record still carries this timestamp.
	ExpectedUpdatedAt *time.Time
}

// ListQuery is a raw listing request. Filters map field names to their
// textual value; Sort is "field" or "-field".
type ListQuery struct {
	Filters map[string]string
	Sort    string
	Limit   int
	Offset  int
}

// ListResult is one page of a collection.
type ListResult struct {
	Documents []models.Document
	Total     int64
	Limit     int
	Offset    int
}

// Timestamps are kept at microsecond precision so they survive a round trip
// through timestamptz unchanged.
func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// Create validates payload, stores file when present and creates the record.
func (m *Manager) Create(ctx context.Context, schema *Schema, payload Payload, file *media.File) (*models.Document, error) {
	ctx = m.logg.WithCollection(ctx, schema.Collection)

	fields, err := m.codec.Encode(schema, payload, ModeCreate)
	if err != nil {
		return nil, err
	}
	upload, err := m.prepareFile(schema, file, true)
	if err != nil {
		return nil, err
	}

	var assetID string
	if upload != nil {
		assetID, err = m.storeAsset(ctx, schema, *upload)
		if err != nil {
			return nil, err
		}
	}

	now := m.timestamp()
	doc := &models.Document{
		ID:         uuid.New(),
		Collection: schema.Collection,
		Fields:     dbtypes.JSONMap(fields),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if assetID != "" {
		doc.MediaRef = &assetID
	}

	if err := m.docs.Create(ctx, doc); err != nil {
		if assetID != "" {
			m.cleanup(ctx, schema.Media.Bucket, assetID, ReasonWriteFailed)
		}
		if errors.Is(err, docstore.ErrConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "record already exists")
		}
		return nil, pkgerrors.Storage(err, "create record")
	}
	m.logg.Info(m.logg.WithRecordID(ctx, doc.ID.String()), "record.created")
	return doc, nil
}

// Update merges payload over the stored record and optionally replaces its
// media asset. The new asset is uploaded and referenced before the old one is
// removed, so a failure never leaves the record pointing at a deleted asset.
func (m *Manager) Update(ctx context.Context, schema *Schema, id uuid.UUID, payload Payload, file *media.File, opts UpdateOptions) (*models.Document, error) {
	ctx = m.logg.WithRecordID(m.logg.WithCollection(ctx, schema.Collection), id.String())

	existing, err := m.get(ctx, schema.Collection, id)
	if err != nil {
		return nil, err
	}

	var expected *time.Time
	if opts.ExpectedUpdatedAt != nil {
		t := opts.ExpectedUpdatedAt.UTC().Truncate(time.Microsecond)
		if !existing.UpdatedAt.UTC().Equal(t) {
			return nil, conflict(existing.UpdatedAt)
		}
		expected = &t
	}

	changes, err := m.codec.Encode(schema, payload, ModeUpdate)
	if err != nil {
		return nil, err
	}
	upload, err := m.prepareFile(schema, file, false)
	if err != nil {
		return nil, err
	}

	merged := make(dbtypes.JSONMap, len(existing.Fields)+len(changes))
	for k, v := range existing.Fields {
		merged[k] = v
	}
	for k, v := range changes {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	oldRef := existing.MediaRef
	updated := *existing
	updated.Fields = merged
	updated.UpdatedAt = m.timestamp()

	var newAsset string
	if upload != nil {
		newAsset, err = m.storeAsset(ctx, schema, *upload)
		if err != nil {
			return nil, err
		}
		updated.MediaRef = &newAsset
	}

	if err := m.docs.Update(ctx, &updated, expected); err != nil {
		if newAsset != "" {
			m.cleanup(ctx, schema.Media.Bucket, newAsset, ReasonWriteFailed)
		}
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			return nil, pkgerrors.NotFound(fmt.Sprintf("%s record not found", schema.Collection))
		case errors.Is(err, docstore.ErrConflict):
			return nil, conflict(existing.UpdatedAt)
		}
		return nil, pkgerrors.Storage(err, "update record")
	}

	if newAsset != "" && oldRef != nil && *oldRef != "" && *oldRef != newAsset {
		m.cleanup(ctx, schema.Media.Bucket, *oldRef, ReasonReplaced)
	}
	m.logg.Info(ctx, "record.updated")
	return &updated, nil
}

// Delete removes the record, then its media asset best-effort.
func (m *Manager) Delete(ctx context.Context, schema *Schema, id uuid.UUID) error {
	ctx = m.logg.WithRecordID(m.logg.WithCollection(ctx, schema.Collection), id.String())

	existing, err := m.get(ctx, schema.Collection, id)
	if err != nil {
		return err
	}
	if err := m.docs.Delete(ctx, schema.Collection, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return pkgerrors.NotFound(fmt.Sprintf("%s record not found", schema.Collection))
		}
		return pkgerrors.Storage(err, "delete record")
	}

	if existing.MediaRef != nil && *existing.MediaRef != "" {
		bucket := schema.Collection
		if schema.HasMedia() {
			bucket = schema.Media.Bucket
		}
		m.cleanup(ctx, bucket, *existing.MediaRef, ReasonDeleted)
	}
	m.logg.Info(ctx, "record.deleted")
	return nil
}

// Get loads one raw record.
func (m *Manager) Get(ctx context.Context, schema *Schema, id uuid.UUID) (*models.Document, error) {
	return m.get(ctx, schema.Collection, id)
}

// List returns one page of raw records. Filters are limited to the schema's
// filterable fields and its public filter fields.
func (m *Manager) List(ctx context.Context, schema *Schema, q ListQuery) (*ListResult, error) {
	page := pagination.Params{Limit: q.Limit, Offset: q.Offset}.Normalize()
	query := docstore.Query{Limit: page.Limit, Offset: page.Offset}

	var invalid []string
	for name, raw := range q.Filters {
		filter, ok := buildFilter(schema, name, raw)
		if !ok {
			invalid = append(invalid, name)
			continue
		}
		query.Filters = append(query.Filters, filter)
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, pkgerrors.Validation("unsupported filters: "+strings.Join(invalid, ", "), invalid...)
	}

	if q.Sort != "" {
		order, ok := buildSort(schema, q.Sort)
		if !ok {
			return nil, pkgerrors.Validation("unsupported sort: "+q.Sort, "sort")
		}
		query.Sort = []docstore.Sort{order}
	}

	docs, total, err := m.docs.List(ctx, schema.Collection, query)
	if err != nil {
		return nil, pkgerrors.Storage(err, "list records")
	}
	return &ListResult{Documents: docs, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

func (m *Manager) get(ctx context.Context, collection string, id uuid.UUID) (*models.Document, error) {
	doc, err := m.docs.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, pkgerrors.NotFound(fmt.Sprintf("%s record not found", collection))
	}
	if err != nil {
		return nil, pkgerrors.Storage(err, "load record")
	}
	return doc, nil
}

func (m *Manager) prepareFile(schema *Schema, file *media.File, create bool) (*storage.Upload, error) {
	if file == nil {
		if create && schema.HasMedia() && schema.Media.Required {
			return nil, pkgerrors.Validation("file is required", "file")
		}
		return nil, nil
	}
	if !schema.HasMedia() {
		return nil, pkgerrors.Validation(schema.Collection+" does not accept files", "file")
	}
	if m.media == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotConfigured, "media store is not configured")
	}
	upload, err := media.Prepare(file, schema.Media.Groups, m.maxUpload)
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func (m *Manager) storeAsset(ctx context.Context, schema *Schema, upload storage.Upload) (string, error) {
	assetID, err := m.media.Store(ctx, schema.Media.Bucket, upload)
	if errors.Is(err, media.ErrTooLarge) {
		return "", media.TooLarge(m.maxUpload)
	}
	if err != nil {
		return "", pkgerrors.Storage(err, "store media")
	}
	m.logg.Info(m.logg.WithAssetID(ctx, assetID), "media.stored")
	return assetID, nil
}

// cleanup deletes an asset that is no longer referenced. Failures are logged
// and queued for the sweep job, never returned.
func (m *Manager) cleanup(ctx context.Context, bucket, assetID, reason string) {
	ctx = m.logg.WithAssetID(context.WithoutCancel(ctx), assetID)
	if m.media == nil {
		return
	}
	err := m.media.Delete(ctx, bucket, assetID)
	if err == nil {
		m.metrics.IncCleanup("deleted")
		return
	}
	m.metrics.IncCleanup("failed")
	m.logg.WarnErr(m.logg.WithField(ctx, "reason", reason), "media.cleanup_failed", err)
	if m.orphans == nil {
		return
	}
	if qerr := m.orphans.Enqueue(ctx, bucket, assetID, reason, err); qerr != nil {
		m.logg.WarnErr(ctx, "media.orphan_enqueue_failed", qerr)
		return
	}
	m.metrics.IncCleanup("queued")
}

func conflict(current time.Time) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "record was modified since it was read").
		WithDetails("current updatedAt " + current.UTC().Format(time.RFC3339Nano))
}

func buildFilter(schema *Schema, name, raw string) (docstore.Filter, bool) {
	field, ok := schema.Field(name)
	if !ok {
		return docstore.Filter{}, false
	}
	if _, public := schema.PublicFilter[name]; !field.Filterable && !public {
		return docstore.Filter{}, false
	}
	kind := field.Kind.valueKind()
	filter := docstore.Filter{Field: name, Kind: kind}
	switch kind {
	case docstore.KindNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return docstore.Filter{}, false
		}
		filter.Value = n
	case docstore.KindBool:
		b, err := encodeBool(raw)
		if err != nil {
			return docstore.Filter{}, false
		}
		filter.Value = b
	default:
		filter.Value = raw
	}
	return filter, true
}

func buildSort(schema *Schema, raw string) (docstore.Sort, bool) {
	desc := strings.HasPrefix(raw, "-")
	name := strings.TrimPrefix(raw, "-")
	if name == "createdAt" || name == "updatedAt" {
		return docstore.Sort{Field: name, Desc: desc}, true
	}
	field, ok := schema.Field(name)
	if !ok || !field.Sortable {
		return docstore.Sort{}, false
	}
	return docstore.Sort{Field: name, Kind: field.Kind.valueKind(), Desc: desc}, true
}
