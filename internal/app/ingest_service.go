package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/logger"
	"cortex-rag/internal/pkg/pdfdoc"
	"cortex-rag/internal/pkg/textsplit"
	"cortex-rag/internal/pkg/webpage"
	"cortex-rag/internal/vectorindex"
)

// minImageBytes filters out icons, bullets, and other decoration before an
// image is sent to the vision model.
const minImageBytes = 5000

// webLabelTitleLen caps how much of a page title goes into the stored label.
const webLabelTitleLen = 20

// Embedder turns texts into vectors under the caller's credential.
type Embedder interface {
	EmbedTexts(ctx context.Context, credential string, texts []string) ([][]float32, error)
}

// ImageDescriber produces a text description of one image. An empty result
// means the image carries no information worth indexing.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, credential string, data []byte, mimeType string) (string, error)
}

// PageFetcher downloads and extracts a web page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*webpage.Page, error)
}

// chunk is one piece of source text headed for the vector index.
type chunk struct {
	text string
	page int
	kind string
}

// IngestService turns uploads and URLs into embedded chunks inside the
// notebook's vector namespace. It runs inside the ingest worker, after the
// HTTP layer has already validated the request and resolved the credential.
type IngestService struct {
	notebooks NotebookStore
	files     FileStore
	splitter  *textsplit.Splitter
	embedder  Embedder
	describer ImageDescriber
	fetcher   PageFetcher
	index     vectorindex.Index
	log       *logger.Logger
}

func NewIngestService(
	notebooks NotebookStore,
	files FileStore,
	splitter *textsplit.Splitter,
	embedder Embedder,
	describer ImageDescriber,
	fetcher PageFetcher,
	index vectorindex.Index,
	log *logger.Logger,
) *IngestService {
	if log == nil {
		log = logger.NewNop()
	}
	return &IngestService{
		notebooks: notebooks,
		files:     files,
		splitter:  splitter,
		embedder:  embedder,
		describer: describer,
		fetcher:   fetcher,
		index:     index,
		log:       log,
	}
}

// IngestFile processes an uploaded file sitting at path. The file record is
// written only after the vectors land, so a notebook never lists a file whose
// content is not retrievable.
func (s *IngestService) IngestFile(ctx context.Context, credential, userID, notebookID, fileName, path string) error {
	if _, err := requireOwned(s.notebooks, userID, notebookID); err != nil {
		return err
	}

	var chunks []chunk
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open upload failed: %w", err)
		}
		pages, err := pdfdoc.Read(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%w: parse pdf: %v", ErrInvalidInput, err)
		}
		chunks = s.pdfChunks(ctx, credential, pages)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read upload failed: %w", err)
		}
		chunks = s.textChunks(string(data), 1, "text")
	default:
		return fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, filepath.Ext(fileName))
	}

	if err := s.store(ctx, credential, notebookID, fileName, chunks); err != nil {
		return err
	}
	return s.recordFile(notebookID, fileName)
}

// IngestURL fetches a web page into the notebook. Returns the label the page
// is filed under, derived from its title.
func (s *IngestService) IngestURL(ctx context.Context, credential, userID, notebookID, rawURL string) (string, error) {
	if _, err := requireOwned(s.notebooks, userID, notebookID); err != nil {
		return "", err
	}

	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", ErrInvalidInput, rawURL, err)
	}

	label := webLabel(page.Title)
	chunks := s.textChunks(page.Text, 1, "web")
	if err := s.store(ctx, credential, notebookID, label, chunks); err != nil {
		return "", err
	}
	if err := s.recordFile(notebookID, label); err != nil {
		return "", err
	}
	return label, nil
}

// pdfChunks turns extracted pages into text and image-description chunks.
// Images below the size floor and images the vision model calls decorative
// are dropped; a failed description skips that image rather than the whole
// document. Descriptions pass through the same splitter as page text so
// every stored chunk honors the size bound.
func (s *IngestService) pdfChunks(ctx context.Context, credential string, pages []pdfdoc.Page) []chunk {
	var chunks []chunk
	for _, page := range pages {
		chunks = append(chunks, s.textChunks(page.Text, page.Number, "text")...)

		for _, image := range page.Images {
			if len(image.Data) < minImageBytes {
				continue
			}
			description, err := s.describer.DescribeImage(ctx, credential, image.Data, image.MIME)
			if err != nil {
				s.log.Warn("image description failed, skipping image", "page", page.Number, "error", err)
				continue
			}
			if description == "" {
				continue
			}
			text := fmt.Sprintf("[IMAGE DESCRIPTION] (Page %d)\n%s", page.Number, description)
			chunks = append(chunks, s.textChunks(text, page.Number, "image")...)
		}
	}
	return chunks
}

func (s *IngestService) textChunks(text string, page int, kind string) []chunk {
	var chunks []chunk
	for _, piece := range s.splitter.Split(text) {
		chunks = append(chunks, chunk{text: piece, page: page, kind: kind})
	}
	return chunks
}

// store embeds the chunks and upserts them into the notebook's namespace.
// Point ids are derived from the content, so re-ingesting the same document
// overwrites its points instead of duplicating them.
func (s *IngestService) store(ctx context.Context, credential, notebookID, origin string, chunks []chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: document has no extractable content", ErrInvalidInput)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, credential, texts)
	if err != nil {
		return fmt.Errorf("embed chunks failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	docs := make([]vectorindex.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorindex.Document{
			ID:     chunkID(notebookID, origin, c.text),
			Vector: vectors[i],
			Meta: map[string]any{
				"source": origin,
				"page":   c.page,
				"kind":   c.kind,
				"text":   c.text,
			},
		}
	}
	if err := s.index.Upsert(ctx, notebookID, docs); err != nil {
		return fmt.Errorf("store vectors failed: %w", err)
	}
	s.log.Info("document ingested", "notebook_id", notebookID, "source", origin, "chunks", len(docs))
	return nil
}

func (s *IngestService) recordFile(notebookID, name string) error {
	return s.files.Add(&model.File{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Name:       name,
		CreatedAt:  time.Now(),
	})
}

// chunkID builds a stable point id from the chunk's identity.
func chunkID(notebookID, origin, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(notebookID+"|"+origin+"|"+text)).String()
}

// webLabel builds the display name for an ingested page, "WEB: " plus the
// start of the title.
func webLabel(title string) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) > webLabelTitleLen {
		title = string(runes[:webLabelTitleLen])
	}
	return "WEB: " + title + "..."
}
