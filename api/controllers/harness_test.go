package controllers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/studyabroad-backend/internal/cleanup"
	"github.com/angelmondragon/studyabroad-backend/internal/collections"
	"github.com/angelmondragon/studyabroad-backend/internal/docstore"
	"github.com/angelmondragon/studyabroad-backend/internal/records"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/migrate"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage/local"
)

type harness struct {
	router http.Handler
	store  *local.Store
	docs   *docstore.Repository
	res    Resources
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: io.Discard})
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.Run(context.Background(), sqlDB, "sqlite", "up"))

	store, err := local.New(t.TempDir(), "http://media.test", "secret")
	require.NoError(t, err)

	logg := testLogger()
	codec := records.NewCodec()
	docs := docstore.NewRepository(conn)
	manager, err := records.NewManager(records.ManagerParams{
		Documents:      docs,
		Media:          store,
		Codec:          codec,
		Orphans:        cleanup.NewRepository(conn),
		Logger:         logg,
		MaxUploadBytes: 1 << 20,
	})
	require.NoError(t, err)
	projector, err := records.NewProjector(records.ProjectorParams{
		Store:  store,
		Codec:  codec,
		URLTTL: time.Hour,
		Logger: logg,
	})
	require.NoError(t, err)

	res := Resources{
		Catalog:        collections.New(),
		Manager:        manager,
		Projector:      projector,
		Logger:         logg,
		MaxUploadBytes: 1 << 20,
	}
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/public", func(r chi.Router) {
			r.Post("/submissions", res.PublicSubmission())
			r.Get("/{entity}", res.PublicList())
			r.Get("/{entity}/{id}", res.PublicGet())
		})
		r.Get("/{entity}", res.List())
		r.Post("/{entity}", res.Create())
		r.Get("/{entity}/{id}", res.Get())
		r.Put("/{entity}/{id}", res.Update())
		r.Delete("/{entity}/{id}", res.Delete())
	})
	r.Get(local.RoutePrefix+"/{bucket}/{assetID}", MediaServe(store, logg))

	return &harness{router: r, store: store, docs: docs, res: res}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
