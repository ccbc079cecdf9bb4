package records

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/studyabroad-backend/pkg/db/models"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/metrics"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

// View is a decoded record with its resolved media URL, serialized flat.
type View map[string]any

const defaultProjectionConcurrency = 8

// ProjectorParams wires the projector.
type ProjectorParams struct {
	Store       storage.Store
	Codec       *Codec
	URLTTL      time.Duration
	Concurrency int
	Logger      *logger.Logger
	Metrics     *metrics.MediaMetrics
}

// Projector turns stored documents into views for read-only callers.
type Projector struct {
	store       storage.Store
	codec       *Codec
	ttl         time.Duration
	concurrency int
	logg        *logger.Logger
	metrics     *metrics.MediaMetrics
}

func NewProjector(p ProjectorParams) (*Projector, error) {
	if p.Codec == nil {
		return nil, errors.New("codec is required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger is required")
	}
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultProjectionConcurrency
	}
	return &Projector{
		store:       p.Store,
		codec:       p.Codec,
		ttl:         p.URLTTL,
		concurrency: concurrency,
		logg:        p.Logger,
		metrics:     p.Metrics,
	}, nil
}

// Project decodes doc and resolves its media URL. It never fails: a missing
// media reference or an unresolvable asset yields a nil mediaUrl.
func (p *Projector) Project(ctx context.Context, schema *Schema, doc *models.Document) View {
	view := View(p.codec.Decode(schema, doc.Fields))
	view["id"] = doc.ID.String()
	view["collection"] = doc.Collection
	view["createdAt"] = doc.CreatedAt
	view["updatedAt"] = doc.UpdatedAt
	view["mediaUrl"] = nil

	if doc.MediaRef == nil || *doc.MediaRef == "" {
		return view
	}
	view["mediaRef"] = *doc.MediaRef

	if !schema.HasMedia() || p.store == nil {
		p.metrics.IncResolution(schema.Collection, "failed")
		return view
	}

	opts := storage.PreviewOptions{
		Width:  schema.Media.PreviewWidth,
		Height: schema.Media.PreviewHeight,
		TTL:    p.ttl,
	}
	url, err := p.store.PreviewURL(ctx, schema.Media.Bucket, *doc.MediaRef, opts)
	if err != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"collection": schema.Collection,
			"record_id":  doc.ID.String(),
			"asset_id":   *doc.MediaRef,
		})
		if errors.Is(err, storage.ErrAssetNotFound) {
			p.logg.Warn(logCtx, "media.asset_missing")
			p.metrics.IncResolution(schema.Collection, "missing")
		} else {
			p.logg.WarnErr(logCtx, "media.preview_failed", err)
			p.metrics.IncResolution(schema.Collection, "failed")
		}
		return view
	}
	p.metrics.IncResolution(schema.Collection, "resolved")
	view["mediaUrl"] = url
	return view
}

// ProjectAll projects docs concurrently, preserving order. Each record
// resolves independently, so one broken reference only nulls its own URL.
func (p *Projector) ProjectAll(ctx context.Context, schema *Schema, docs []models.Document) []View {
	views := make([]View, len(docs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range docs {
		g.Go(func() error {
			views[i] = p.Project(ctx, schema, &docs[i])
			return nil
		})
	}
	_ = g.Wait()
	return views
}
