package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cortex-rag/internal/pkg/pdfdoc"
	"cortex-rag/internal/pkg/textsplit"
	"cortex-rag/internal/pkg/webpage"
)

type fakeFetcher struct {
	page *webpage.Page
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*webpage.Page, error) {
	return f.page, f.err
}

type ingestFixture struct {
	notebooks *fakeNotebookStore
	files     *fakeFileStore
	index     *fakeIndex
	model     *fakeModel
	fetcher   *fakeFetcher
	svc       *IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	fx := &ingestFixture{
		notebooks: newFakeNotebookStore(),
		files:     newFakeFileStore(),
		index:     newFakeIndex(),
		model:     &fakeModel{},
		fetcher:   &fakeFetcher{},
	}
	fx.svc = NewIngestService(
		fx.notebooks,
		fx.files,
		textsplit.New(textsplit.DefaultChunkSize, textsplit.DefaultOverlap),
		fx.model,
		fx.model,
		fx.fetcher,
		fx.index,
		nil,
	)
	fx.notebooks.Create(notebookFor("nb1", "u1"))
	return fx
}

func writeUpload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func TestIngestTextFile(t *testing.T) {
	fx := newIngestFixture(t)
	path := writeUpload(t, "notes.txt", "First paragraph.\n\nSecond paragraph.")

	if err := fx.svc.IngestFile(context.Background(), "key", "u1", "nb1", "notes.txt", path); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	docs := fx.index.docs["nb1"]
	if len(docs) == 0 {
		t.Fatal("no vectors stored")
	}
	for _, doc := range docs {
		if doc.Meta["source"] != "notes.txt" {
			t.Fatalf("source = %v", doc.Meta["source"])
		}
		if doc.Meta["page"] != 1 {
			t.Fatalf("page = %v", doc.Meta["page"])
		}
		if doc.Meta["kind"] != "text" {
			t.Fatalf("kind = %v", doc.Meta["kind"])
		}
		if doc.Meta["text"] == "" {
			t.Fatal("chunk text missing from payload")
		}
	}

	names, _ := fx.files.ListNamesByNotebookID("nb1")
	if len(names) != 1 || names[0] != "notes.txt" {
		t.Fatalf("file list = %v", names)
	}
}

func TestIngestFileIdempotentIDs(t *testing.T) {
	fx := newIngestFixture(t)
	path := writeUpload(t, "notes.txt", "Stable content.")

	for i := 0; i < 2; i++ {
		if err := fx.svc.IngestFile(context.Background(), "key", "u1", "nb1", "notes.txt", path); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	docs := fx.index.docs["nb1"]
	if len(docs) != 2 {
		t.Fatalf("expected 2 upserted docs, got %d", len(docs))
	}
	if docs[0].ID != docs[1].ID {
		t.Fatalf("re-ingest produced different ids: %s vs %s", docs[0].ID, docs[1].ID)
	}

	names, _ := fx.files.ListNamesByNotebookID("nb1")
	if len(names) != 1 {
		t.Fatalf("duplicate file entries: %v", names)
	}
}

func TestIngestFileRejectsUnsupportedType(t *testing.T) {
	fx := newIngestFixture(t)
	path := writeUpload(t, "img.png", "binary")

	err := fx.svc.IngestFile(context.Background(), "key", "u1", "nb1", "img.png", path)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestIngestFileRejectsEmptyContent(t *testing.T) {
	fx := newIngestFixture(t)
	path := writeUpload(t, "empty.txt", "   \n  ")

	err := fx.svc.IngestFile(context.Background(), "key", "u1", "nb1", "empty.txt", path)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if len(fx.index.docs["nb1"]) != 0 {
		t.Fatal("vectors stored for empty document")
	}
}

func TestIngestFileChecksOwnership(t *testing.T) {
	fx := newIngestFixture(t)
	path := writeUpload(t, "notes.txt", "content")

	err := fx.svc.IngestFile(context.Background(), "key", "u2", "nb1", "notes.txt", path)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIngestFileEmbedFailureKeepsFileUnlisted(t *testing.T) {
	fx := newIngestFixture(t)
	fx.model.embedErr = errors.New("quota blown")
	path := writeUpload(t, "notes.txt", "content")

	if err := fx.svc.IngestFile(context.Background(), "key", "u1", "nb1", "notes.txt", path); err == nil {
		t.Fatal("expected error")
	}
	if names, _ := fx.files.ListNamesByNotebookID("nb1"); len(names) != 0 {
		t.Fatalf("file listed despite failed ingest: %v", names)
	}
}

func TestPDFChunksSkipsSmallImages(t *testing.T) {
	fx := newIngestFixture(t)
	pages := []pdfdoc.Page{{
		Number: 1,
		Text:   "Page text.",
		Images: []pdfdoc.Image{{Data: make([]byte, minImageBytes-1), MIME: "image/png"}},
	}}

	chunks := fx.svc.pdfChunks(context.Background(), "key", pages)

	if fx.model.describeCalls != 0 {
		t.Fatalf("vision model called %d times for a sub-threshold image", fx.model.describeCalls)
	}
	for _, c := range chunks {
		if c.kind == "image" {
			t.Fatalf("image chunk produced: %q", c.text)
		}
	}
}

func TestPDFChunksDropsDecorativeImages(t *testing.T) {
	fx := newIngestFixture(t)
	pages := []pdfdoc.Page{{
		Number: 1,
		Text:   "Page text.",
		Images: []pdfdoc.Image{{Data: make([]byte, minImageBytes), MIME: "image/png"}},
	}}

	chunks := fx.svc.pdfChunks(context.Background(), "key", pages)

	if fx.model.describeCalls != 1 {
		t.Fatalf("describeCalls = %d, want 1", fx.model.describeCalls)
	}
	for _, c := range chunks {
		if c.kind == "image" {
			t.Fatalf("decorative image kept: %q", c.text)
		}
	}
}

func TestPDFChunksDescribesImages(t *testing.T) {
	fx := newIngestFixture(t)
	data := make([]byte, minImageBytes)
	fx.model.descriptions = map[string]string{
		fmt.Sprintf("%d", len(data)): "Bar chart of revenue by quarter.",
	}
	pages := []pdfdoc.Page{{
		Number: 3,
		Text:   "Quarterly results.",
		Images: []pdfdoc.Image{{Data: data, MIME: "image/jpeg"}},
	}}

	chunks := fx.svc.pdfChunks(context.Background(), "key", pages)

	var image *chunk
	for i := range chunks {
		if chunks[i].kind == "image" {
			image = &chunks[i]
		}
	}
	if image == nil {
		t.Fatal("no image chunk produced")
	}
	if image.page != 3 {
		t.Fatalf("page = %d, want 3", image.page)
	}
	want := "[IMAGE DESCRIPTION] (Page 3)\nBar chart of revenue by quarter."
	if image.text != want {
		t.Fatalf("text = %q, want %q", image.text, want)
	}
}

func TestPDFChunksSplitsLongImageDescriptions(t *testing.T) {
	fx := newIngestFixture(t)
	data := make([]byte, minImageBytes)
	fx.model.descriptions = map[string]string{
		fmt.Sprintf("%d", len(data)): strings.Repeat("The chart plots revenue against quarter. ", 85),
	}
	pages := []pdfdoc.Page{{
		Number: 4,
		Images: []pdfdoc.Image{{Data: data, MIME: "image/png"}},
	}}

	chunks := fx.svc.pdfChunks(context.Background(), "key", pages)

	if len(chunks) < 2 {
		t.Fatalf("long description not split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if c.kind != "image" {
			t.Fatalf("chunk kind = %q, want image", c.kind)
		}
		if n := len([]rune(c.text)); n > textsplit.DefaultChunkSize {
			t.Fatalf("chunk has %d runes, exceeds %d", n, textsplit.DefaultChunkSize)
		}
	}
	if !strings.Contains(chunks[0].text, "[IMAGE DESCRIPTION] (Page 4)") {
		t.Fatal("description prefix lost in splitting")
	}
}

func TestPDFChunksDescribeFailureSkipsImageOnly(t *testing.T) {
	fx := newIngestFixture(t)
	fx.model.describeErr = errors.New("vision unavailable")
	pages := []pdfdoc.Page{{
		Number: 2,
		Text:   "Surviving text.",
		Images: []pdfdoc.Image{{Data: make([]byte, minImageBytes), MIME: "image/png"}},
	}}

	chunks := fx.svc.pdfChunks(context.Background(), "key", pages)

	if len(chunks) == 0 {
		t.Fatal("page text lost when one image failed")
	}
	for _, c := range chunks {
		if c.kind != "text" {
			t.Fatalf("unexpected chunk kind %q", c.kind)
		}
	}
}

func TestIngestURL(t *testing.T) {
	fx := newIngestFixture(t)
	fx.fetcher.page = &webpage.Page{
		Title: "A Very Long Page Title That Keeps Going",
		Text:  "Body text worth indexing.",
	}

	label, err := fx.svc.IngestURL(context.Background(), "key", "u1", "nb1", "https://example.com/post")
	if err != nil {
		t.Fatalf("ingest url: %v", err)
	}
	if label != "WEB: A Very Long Page Tit..." {
		t.Fatalf("label = %q", label)
	}

	docs := fx.index.docs["nb1"]
	if len(docs) == 0 {
		t.Fatal("no vectors stored")
	}
	if docs[0].Meta["kind"] != "web" {
		t.Fatalf("kind = %v", docs[0].Meta["kind"])
	}
	if docs[0].Meta["source"] != label {
		t.Fatalf("source = %v, want label", docs[0].Meta["source"])
	}

	names, _ := fx.files.ListNamesByNotebookID("nb1")
	if len(names) != 1 || names[0] != label {
		t.Fatalf("file list = %v", names)
	}
}

func TestIngestURLFetchFailure(t *testing.T) {
	fx := newIngestFixture(t)
	fx.fetcher.err = errors.New("connection refused")

	_, err := fx.svc.IngestURL(context.Background(), "key", "u1", "nb1", "https://example.com")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestWebLabelShortTitle(t *testing.T) {
	if got := webLabel("Short"); got != "WEB: Short..." {
		t.Fatalf("label = %q", got)
	}
}

func TestChunkIDStableAndScoped(t *testing.T) {
	a := chunkID("nb1", "doc.pdf", "same text")
	b := chunkID("nb1", "doc.pdf", "same text")
	if a != b {
		t.Fatalf("ids differ for identical chunks: %s vs %s", a, b)
	}
	if chunkID("nb2", "doc.pdf", "same text") == a {
		t.Fatal("id not scoped by notebook")
	}
	if chunkID("nb1", "other.pdf", "same text") == a {
		t.Fatal("id not scoped by source")
	}
	if !strings.Contains(a, "-") {
		t.Fatalf("id %q is not a uuid", a)
	}
}
