package handler

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cortex-rag/internal/app"
	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/logger"
	"cortex-rag/internal/transport/http/middleware"
	"cortex-rag/internal/transport/http/response"
)

// JobPublisher hands an ingest job to the queue.
type JobPublisher interface {
	Publish(ctx context.Context, job model.IngestJob) error
}

// IngestHandler accepts uploads and URLs. File uploads are queued for the
// background worker; URLs are processed inline because a single page fetch is
// fast enough to answer within the request. The credential is resolved before
// queueing so a user without a key learns immediately instead of from a
// silently failed background job.
type IngestHandler struct {
	notebooks *app.NotebookService
	ingest    *app.IngestService
	keyring   *app.KeyringService
	publisher JobPublisher
	maxUpload int64
	uploadDir string
	log       *logger.Logger
}

func NewIngestHandler(
	notebooks *app.NotebookService,
	ingest *app.IngestService,
	keyring *app.KeyringService,
	publisher JobPublisher,
	maxUpload int64,
	uploadDir string,
	log *logger.Logger,
) *IngestHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &IngestHandler{
		notebooks: notebooks,
		ingest:    ingest,
		keyring:   keyring,
		publisher: publisher,
		maxUpload: maxUpload,
		uploadDir: uploadDir,
		log:       log,
	}
}

var allowedUploadExts = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Upload takes a multipart file plus a notebookId form field and queues it.
func (h *IngestHandler) Upload(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)
	email := c.GetString(middleware.ContextEmailKey)

	notebookID := c.PostForm("notebookId")
	if notebookID == "" {
		response.Error(c, 400, response.CodeBadRequest, "notebookId is required")
		return
	}
	if _, err := h.notebooks.Get(c.Request.Context(), userID, notebookID); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.keyring.Resolve(userID, email); err != nil {
		writeError(c, err)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, 400, response.CodeBadRequest, "file is required")
		return
	}
	if file.Size > h.maxUpload {
		response.Error(c, 400, response.CodeBadRequest, "file exceeds the upload size limit")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExts[ext] {
		response.Error(c, 400, response.CodeBadRequest, "only pdf, txt, and md files are supported")
		return
	}

	tempPath := filepath.Join(h.tempDir(), uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		h.log.Error("save upload failed", "error", err)
		response.Error(c, 500, response.CodeInternalServer, "store upload failed")
		return
	}

	job := model.IngestJob{
		UserID:     userID,
		Email:      email,
		NotebookID: notebookID,
		FileName:   filepath.Base(file.Filename),
		Path:       tempPath,
	}
	if err := h.publisher.Publish(c.Request.Context(), job); err != nil {
		h.log.Error("queue ingest job failed", "error", err)
		// No job exists to own the temp file, so it is removed here.
		if rmErr := os.Remove(tempPath); rmErr != nil && !os.IsNotExist(rmErr) {
			h.log.Warn("remove unqueued upload failed", "path", tempPath, "error", rmErr)
		}
		response.Error(c, 500, response.CodeInternalServer, "queue ingest failed")
		return
	}

	response.OK(c, gin.H{
		"status":    "queued",
		"file_name": job.FileName,
	})
}

type ingestURLRequest struct {
	NotebookID string `json:"notebookId" binding:"required"`
	URL        string `json:"url" binding:"required"`
}

// IngestURL fetches and indexes a web page within the request and returns
// the label the page was filed under.
func (h *IngestHandler) IngestURL(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)
	email := c.GetString(middleware.ContextEmailKey)

	var req ingestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "notebookId and url are required")
		return
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		response.Error(c, 400, response.CodeBadRequest, "url must be absolute http or https")
		return
	}

	credential, err := h.keyring.Resolve(userID, email)
	if err != nil {
		writeError(c, err)
		return
	}

	label, err := h.ingest.IngestURL(c.Request.Context(), credential, userID, req.NotebookID, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	response.OK(c, gin.H{"file_name": label})
}

func (h *IngestHandler) tempDir() string {
	if h.uploadDir != "" {
		return h.uploadDir
	}
	return os.TempDir()
}
