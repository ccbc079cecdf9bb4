package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/studyabroad-backend/api/responses"
	"github.com/angelmondragon/studyabroad-backend/api/validators"
	"github.com/angelmondragon/studyabroad-backend/internal/media"
	"github.com/angelmondragon/studyabroad-backend/internal/records"
	"github.com/angelmondragon/studyabroad-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
)

// RecordManager performs the media-aware record writes and raw reads.
type RecordManager interface {
	Create(ctx context.Context, schema *records.Schema, payload records.Payload, file *media.File) (*models.Document, error)
	Update(ctx context.Context, schema *records.Schema, id uuid.UUID, payload records.Payload, file *media.File, opts records.UpdateOptions) (*models.Document, error)
	Delete(ctx context.Context, schema *records.Schema, id uuid.UUID) error
	Get(ctx context.Context, schema *records.Schema, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, schema *records.Schema, q records.ListQuery) (*records.ListResult, error)
}

// ViewProjector turns stored documents into client views.
type ViewProjector interface {
	Project(ctx context.Context, schema *records.Schema, doc *models.Document) records.View
	ProjectAll(ctx context.Context, schema *records.Schema, docs []models.Document) []records.View
}

// SchemaCatalog resolves route entities to schemas.
type SchemaCatalog interface {
	Lookup(name string) (*records.Schema, bool)
}

// Resources bundles what the collection handlers need.
type Resources struct {
	Catalog        SchemaCatalog
	Manager        RecordManager
	Projector      ViewProjector
	Logger         *logger.Logger
	MaxUploadBytes int64
}

type listResponse struct {
	Documents []records.View `json:"documents"`
	Total     int64          `json:"total"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

func (res Resources) ready() error {
	if res.Catalog == nil || res.Manager == nil || res.Projector == nil {
		return pkgerrors.New(pkgerrors.CodeNotConfigured, "records service unavailable")
	}
	return nil
}

func (res Resources) schema(r *http.Request) (*records.Schema, context.Context, error) {
	ctx := r.Context()
	if err := res.ready(); err != nil {
		return nil, ctx, err
	}
	entity := strings.TrimSpace(chi.URLParam(r, "entity"))
	schema, ok := res.Catalog.Lookup(entity)
	if !ok {
		return nil, ctx, pkgerrors.NotFound("unknown collection " + entity)
	}
	if res.Logger != nil {
		ctx = res.Logger.WithCollection(ctx, schema.Collection)
	}
	return schema, ctx, nil
}

// Malformed ids are reported as not found; no record can carry them.
func recordID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.NotFound("record not found")
	}
	return id, nil
}

func (res Resources) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, ctx, err := res.schema(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		q, err := validators.ParseListQuery(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		result, err := res.Manager.List(ctx, schema, q)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{
			Documents: res.Projector.ProjectAll(ctx, schema, result.Documents),
			Total:     result.Total,
			Limit:     result.Limit,
			Offset:    result.Offset,
		})
	}
}

func (res Resources) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, ctx, err := res.schema(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		doc, err := res.Manager.Get(ctx, schema, id)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, res.Projector.Project(ctx, schema, doc))
	}
}

func (res Resources) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, ctx, err := res.schema(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		req, err := validators.ParseRecordRequest(w, r, res.MaxUploadBytes)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		defer req.Close()

		doc, err := res.Manager.Create(ctx, schema, req.Payload, req.File)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, res.Projector.Project(ctx, schema, doc))
	}
}

func (res Resources) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, ctx, err := res.schema(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		expected, err := validators.ParseIfMatch(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		req, err := validators.ParseRecordRequest(w, r, res.MaxUploadBytes)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		defer req.Close()

		doc, err := res.Manager.Update(ctx, schema, id, req.Payload, req.File, records.UpdateOptions{ExpectedUpdatedAt: expected})
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, res.Projector.Project(ctx, schema, doc))
	}
}

func (res Resources) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, ctx, err := res.schema(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		id, err := recordID(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		if err := res.Manager.Delete(ctx, schema, id); err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
