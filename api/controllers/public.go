package controllers

import (
	"net/http"

	"github.com/angelmondragon/studyabroad-backend/api/responses"
	"github.com/angelmondragon/studyabroad-backend/api/validators"
	"github.com/angelmondragon/studyabroad-backend/internal/collections"
	"github.com/angelmondragon/studyabroad-backend/internal/records"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
)

// PublicList serves the site's read-only listing. Only publicly readable
// collections are exposed and the schema's public filter always applies.
// Read failures are logged and rendered as an empty page.
func (res Resources) PublicList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, ctx, err := res.schema(r)
		if err == nil && !schema.PublicRead {
			err = pkgerrors.NotFound("unknown collection " + schema.Collection)
		}
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		q, err := validators.ParseListQuery(r)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		if len(schema.PublicFilter) > 0 && q.Filters == nil {
			q.Filters = make(map[string]string, len(schema.PublicFilter))
		}
		for field, value := range schema.PublicFilter {
			q.Filters[field] = value
		}

		result, err := res.Manager.List(ctx, schema, q)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				responses.WriteError(ctx, res.Logger, w, err)
				return
			}
			if res.Logger != nil {
				res.Logger.WarnErr(ctx, "public.list_degraded", err)
			}
			responses.WriteSuccess(w, listResponse{Documents: []records.View{}, Limit: q.Limit, Offset: q.Offset})
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

// PublicGet serves one publicly visible record; hidden records are not found.
func (res Resources) PublicGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema, ctx, err := res.schema(r)
		if err == nil && !schema.PublicRead {
			err = pkgerrors.NotFound("unknown collection " + schema.Collection)
		}
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
		view := res.Projector.Project(ctx, schema, doc)
		if !schema.PubliclyVisible(view) {
			responses.WriteError(ctx, res.Logger, w, pkgerrors.NotFound("record not found"))
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type submissionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PublicSubmission accepts the site's contact and consultation forms.
func (res Resources) PublicSubmission() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := res.ready(); err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		schema, ok := res.Catalog.Lookup(collections.Submissions)
		if !ok || !schema.PublicCreate {
			responses.WriteError(ctx, res.Logger, w, pkgerrors.New(pkgerrors.CodeNotConfigured, "submissions are disabled"))
			return
		}
		if res.Logger != nil {
			ctx = res.Logger.WithCollection(ctx, schema.Collection)
		}

		req, err := validators.ParseRecordRequest(w, r, res.MaxUploadBytes)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		defer req.Close()

		// site visitors cannot set workflow fields
		delete(req.Payload, "status")

		doc, err := res.Manager.Create(ctx, schema, req.Payload, req.File)
		if err != nil {
			responses.WriteError(ctx, res.Logger, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, submissionResponse{ID: doc.ID.String(), Status: "received"})
	}
}
