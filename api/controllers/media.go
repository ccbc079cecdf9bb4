package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/studyabroad-backend/api/responses"
	pkgerrors "github.com/angelmondragon/studyabroad-backend/pkg/errors"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage/local"
)

// MediaServe streams locally stored assets behind signed preview URLs,
// resizing raster images when the URL carries w or h.
func MediaServe(store *local.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotConfigured, "local media is disabled"))
			return
		}
		bucket := chi.URLParam(r, "bucket")
		assetID := chi.URLParam(r, "assetID")
		if logg != nil {
			ctx = logg.WithAssetID(ctx, assetID)
		}

		q := r.URL.Query()
		width, _ := strconv.Atoi(q.Get("w"))
		height, _ := strconv.Atoi(q.Get("h"))
		exp, err := strconv.ParseInt(q.Get("exp"), 10, 64)
		if err != nil || width < 0 || height < 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.NotFound("media not found"))
			return
		}
		if err := store.Verify(bucket, assetID, width, height, exp, q.Get("sig")); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "media not found"))
			return
		}

		f, err := store.Open(bucket, assetID)
		if err != nil {
			if errors.Is(err, storage.ErrAssetNotFound) {
				responses.WriteError(ctx, logg, w, pkgerrors.NotFound("media not found"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Storage(err, "open media"))
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Storage(err, "read media"))
			return
		}

		contentType := mimetype.Detect(data).String()
		if (width > 0 || height > 0) && local.Resizable(contentType) {
			resized, resizeErr := local.Resize(data, contentType, width, height)
			if resizeErr != nil {
				if logg != nil {
					logg.WarnErr(ctx, "media.resize_failed", resizeErr)
				}
			} else {
				data = resized
			}
		}

		maxAge := exp - time.Now().Unix()
		if maxAge < 0 {
			maxAge = 0
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "private, max-age="+strconv.FormatInt(maxAge, 10))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
