package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"cortex-rag/internal/app"
	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/secretbox"
	"cortex-rag/internal/pkg/textsplit"
	"cortex-rag/internal/pkg/webpage"
	"cortex-rag/internal/transport/http/middleware"
	"cortex-rag/internal/vectorindex"
)

type stubNotebookStore struct {
	notebooks map[string]*model.Notebook
}

func (s *stubNotebookStore) Create(nb *model.Notebook) error {
	s.notebooks[nb.ID] = nb
	return nil
}

func (s *stubNotebookStore) ListByUserID(string) ([]model.Notebook, error) { return nil, nil }

func (s *stubNotebookStore) GetByIDAndUserID(id, userID string) (*model.Notebook, error) {
	nb, ok := s.notebooks[id]
	if !ok || nb.UserID != userID {
		return nil, nil
	}
	return nb, nil
}

func (s *stubNotebookStore) Rename(string, string, string) error { return nil }

func (s *stubNotebookStore) DeleteByIDAndUserID(string, string) error { return nil }

type stubFileStore struct{ names []string }

func (s *stubFileStore) Add(file *model.File) error {
	s.names = append(s.names, file.Name)
	return nil
}

func (s *stubFileStore) ListNamesByNotebookID(string) ([]string, error) { return s.names, nil }

func (s *stubFileStore) DeleteByNotebookIDAndName(string, string) error { return nil }

func (s *stubFileStore) DeleteByNotebookID(string) error { return nil }

type stubMessageStore struct{}

func (stubMessageStore) Create(*model.Message) error { return nil }

func (stubMessageStore) ListByNotebookID(string) ([]model.Message, error) { return nil, nil }

func (stubMessageStore) DeleteByNotebookID(string) error { return nil }

type stubKeyStore struct{}

func (stubKeyStore) Upsert(*model.UserKey) error { return nil }

func (stubKeyStore) GetByUserID(string) (*model.UserKey, error) { return nil, nil }

func (stubKeyStore) DeleteByUserID(string) error { return nil }

type stubIndex struct {
	upserts int
}

func (s *stubIndex) Upsert(_ context.Context, _ string, docs []vectorindex.Document) error {
	s.upserts += len(docs)
	return nil
}

func (s *stubIndex) Query(context.Context, string, []float32, int) ([]vectorindex.Match, error) {
	return nil, nil
}

func (s *stubIndex) DropNamespace(context.Context, string) error { return nil }

type stubModel struct{}

func (stubModel) EmbedTexts(_ context.Context, _ string, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1}
	}
	return vectors, nil
}

func (stubModel) DescribeImage(context.Context, string, []byte, string) (string, error) {
	return "", nil
}

type stubFetcher struct {
	page *webpage.Page
	err  error
}

func (s *stubFetcher) Fetch(context.Context, string) (*webpage.Page, error) {
	return s.page, s.err
}

type stubPublisher struct {
	jobs []model.IngestJob
	err  error
}

func (s *stubPublisher) Publish(_ context.Context, job model.IngestJob) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

type ingestHandlerFixture struct {
	handler   *IngestHandler
	publisher *stubPublisher
	fetcher   *stubFetcher
	index     *stubIndex
	uploadDir string
	router    *gin.Engine
}

func newIngestHandlerFixture(t *testing.T) *ingestHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	notebooks := &stubNotebookStore{notebooks: map[string]*model.Notebook{
		"nb1": {ID: "nb1", UserID: "u1", Name: "notebook"},
	}}
	files := &stubFileStore{}
	index := &stubIndex{}
	fetcher := &stubFetcher{}
	publisher := &stubPublisher{}

	box, err := secretbox.New("")
	if err != nil {
		t.Fatalf("new box: %v", err)
	}
	keyring := app.NewKeyringService(stubKeyStore{}, box, "admin@example.com", "server-key", nil)
	notebookSvc := app.NewNotebookService(notebooks, files, stubMessageStore{}, stubKeyStore{}, index, nil)
	ingestSvc := app.NewIngestService(
		notebooks,
		files,
		textsplit.New(textsplit.DefaultChunkSize, textsplit.DefaultOverlap),
		stubModel{},
		stubModel{},
		fetcher,
		index,
		nil,
	)

	uploadDir := t.TempDir()
	handler := NewIngestHandler(notebookSvc, ingestSvc, keyring, publisher, 10<<20, uploadDir, nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "u1")
		c.Set(middleware.ContextEmailKey, "admin@example.com")
	})
	router.POST("/upload", handler.Upload)
	router.POST("/ingest-url", handler.IngestURL)

	return &ingestHandlerFixture{
		handler:   handler,
		publisher: publisher,
		fetcher:   fetcher,
		index:     index,
		uploadDir: uploadDir,
		router:    router,
	}
}

func uploadRequest(t *testing.T, notebookID, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("notebookId", notebookID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadQueuesJob(t *testing.T) {
	fx := newIngestHandlerFixture(t)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, uploadRequest(t, "nb1", "notes.txt", "content"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(fx.publisher.jobs) != 1 {
		t.Fatalf("published %d jobs, want 1", len(fx.publisher.jobs))
	}
	job := fx.publisher.jobs[0]
	if job.NotebookID != "nb1" || job.FileName != "notes.txt" {
		t.Fatalf("job = %+v", job)
	}
	if _, err := os.Stat(job.Path); err != nil {
		t.Fatalf("queued upload missing at %s: %v", job.Path, err)
	}
}

func TestUploadRemovesTempFileWhenQueueFails(t *testing.T) {
	fx := newIngestHandlerFixture(t)
	fx.publisher.err = errors.New("broker unreachable")

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, uploadRequest(t, "nb1", "notes.txt", "content"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	entries, err := os.ReadDir(fx.uploadDir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp file left behind after failed enqueue: %v", entries)
	}
}

func TestIngestURLReturnsLabel(t *testing.T) {
	fx := newIngestHandlerFixture(t)
	fx.fetcher.page = &webpage.Page{Title: "Docs", Text: "Body text worth indexing."}

	body := strings.NewReader(`{"notebookId":"nb1","url":"https://example.com/docs"}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest-url", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "WEB: Docs...") {
		t.Fatalf("label missing from response: %s", rec.Body.String())
	}
	if fx.index.upserts == 0 {
		t.Fatal("page content never reached the index")
	}
}

func TestIngestURLRejectsRelativeURL(t *testing.T) {
	fx := newIngestHandlerFixture(t)

	body := strings.NewReader(`{"notebookId":"nb1","url":"/relative/path"}`)
	req := httptest.NewRequest(http.MethodPost, "/ingest-url", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
