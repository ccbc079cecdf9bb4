package records

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/studyabroad-backend/internal/docstore"
	"github.com/angelmondragon/studyabroad-backend/internal/media"
	"github.com/angelmondragon/studyabroad-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/studyabroad-backend/pkg/db/types"
	"github.com/angelmondragon/studyabroad-backend/pkg/logger"
	"github.com/angelmondragon/studyabroad-backend/pkg/storage"
)

type stubDocs struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]models.Document
	createErr error
	updateErr error
	deleteErr error

	createCalls, getCalls, listCalls, updateCalls, deleteCalls int
	lastQuery                                                  docstore.Query
}

func newStubDocs() *stubDocs {
	return &stubDocs{docs: map[uuid.UUID]models.Document{}}
}

func (s *stubDocs) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls + s.getCalls + s.listCalls + s.updateCalls + s.deleteCalls
}

func cloneDoc(doc models.Document) models.Document {
	fields := make(dbtypes.JSONMap, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	doc.Fields = fields
	if doc.MediaRef != nil {
		ref := *doc.MediaRef
		doc.MediaRef = &ref
	}
	return doc
}

func (s *stubDocs) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	s.docs[doc.ID] = cloneDoc(*doc)
	return nil
}

func (s *stubDocs) Get(_ context.Context, collection string, id uuid.UUID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	doc, ok := s.docs[id]
	if !ok || doc.Collection != collection {
		return nil, docstore.ErrNotFound
	}
	out := cloneDoc(doc)
	return &out, nil
}

func (s *stubDocs) List(_ context.Context, collection string, q docstore.Query) ([]models.Document, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	s.lastQuery = q
	var out []models.Document
	for _, doc := range s.docs {
		if doc.Collection == collection {
			out = append(out, cloneDoc(doc))
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubDocs) Update(_ context.Context, doc *models.Document, expected *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	current, ok := s.docs[doc.ID]
	if !ok {
		return docstore.ErrNotFound
	}
	if expected != nil && !current.UpdatedAt.Equal(*expected) {
		return docstore.ErrConflict
	}
	s.docs[doc.ID] = cloneDoc(*doc)
	return nil
}

func (s *stubDocs) Delete(_ context.Context, collection string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.docs[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

type stubMedia struct {
	mu        sync.Mutex
	assets    map[string][]byte
	storeErr  error
	deleteErr error
	failURL   map[string]error
	seq       int

	storeCalls, previewCalls, deleteCalls int
	deleted                               []string
}

func newStubMedia() *stubMedia {
	return &stubMedia{assets: map[string][]byte{}, failURL: map[string]error{}}
}

func (s *stubMedia) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeCalls + s.previewCalls + s.deleteCalls
}

func (s *stubMedia) Store(_ context.Context, bucket string, upload storage.Upload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeCalls++
	if s.storeErr != nil {
		return "", s.storeErr
	}
	data, err := io.ReadAll(upload.Body)
	if err != nil {
		return "", err
	}
	s.seq++
	id := fmt.Sprintf("asset-%d.png", s.seq)
	s.assets[bucket+"/"+id] = data
	return id, nil
}

func (s *stubMedia) PreviewURL(_ context.Context, bucket, assetID string, opts storage.PreviewOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previewCalls++
	if err, ok := s.failURL[assetID]; ok {
		return "", err
	}
	if _, ok := s.assets[bucket+"/"+assetID]; !ok {
		return "", storage.ErrAssetNotFound
	}
	return fmt.Sprintf("https://cdn.test/%s/%s?w=%d&h=%d", bucket, assetID, opts.Width, opts.Height), nil
}

func (s *stubMedia) Delete(_ context.Context, bucket, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	s.deleted = append(s.deleted, assetID)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.assets, bucket+"/"+assetID)
	return nil
}

func (s *stubMedia) Ping(context.Context) error { return nil }

func (s *stubMedia) has(bucket, assetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.assets[bucket+"/"+assetID]
	return ok
}

type stubOrphans struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (s *stubOrphans) Enqueue(_ context.Context, bucket, assetID, reason string, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, bucket+"/"+assetID+":"+reason)
	return nil
}

var errBackend = errors.New("backend unavailable")

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func pngUpload() *media.File {
	body := append(append([]byte{}, pngHeader...), make([]byte, 64)...)
	return &media.File{Filename: "photo.png", Size: int64(len(body)), Body: bytes.NewReader(body)}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func storySchema() *Schema {
	return &Schema{
		Collection: "stories",
		Fields: []Field{
			{Name: "name", Kind: KindString, Required: true, MaxLen: 120},
			{Name: "program", Kind: KindString, Required: true},
			{Name: "university", Kind: KindString, Required: true},
			{Name: "content", Kind: KindText, Required: true},
			{Name: "rating", Kind: KindInt, Required: true, Min: IntPtr(1), Max: IntPtr(5), Filterable: true, Sortable: true},
			{Name: "status", Kind: KindEnum, Options: []string{"pending", "approved", "rejected"}, Default: "pending", Filterable: true},
			{Name: "tags", Kind: KindList},
		},
		Media:        &MediaSpec{Bucket: "stories", Groups: []media.MimeGroup{media.MimeGroupImages}, PreviewWidth: 400, PreviewHeight: 300},
		PublicRead:   true,
		PublicFilter: map[string]string{"status": "approved"},
	}
}

func statisticsSchema() *Schema {
	return &Schema{
		Collection: "statistics",
		Fields: []Field{
			{Name: "label", Kind: KindString, Required: true},
			{Name: "value", Kind: KindString, Required: true},
		},
	}
}

type harness struct {
	docs    *stubDocs
	media   *stubMedia
	orphans *stubOrphans
	mgr     *Manager
	proj    *Projector
	clock   time.Time
}

func newHarness() *harness {
	h := &harness{
		docs:    newStubDocs(),
		media:   newStubMedia(),
		orphans: &stubOrphans{},
		clock:   time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
	}
	codec := NewCodec()
	mgr, err := NewManager(ManagerParams{
		Documents:      h.docs,
		Media:          h.media,
		Codec:          codec,
		Orphans:        h.orphans,
		Logger:         testLogger(),
		MaxUploadBytes: 1 << 20,
		Now: func() time.Time {
			h.clock = h.clock.Add(time.Second)
			return h.clock
		},
	})
	if err != nil {
		panic(err)
	}
	proj, err := NewProjector(ProjectorParams{
		Store:       h.media,
		Codec:       codec,
		URLTTL:      time.Hour,
		Concurrency: 2,
		Logger:      testLogger(),
	})
	if err != nil {
		panic(err)
	}
	h.mgr = mgr
	h.proj = proj
	return h
}
