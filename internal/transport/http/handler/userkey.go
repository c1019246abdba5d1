package handler

import (
	"github.com/gin-gonic/gin"

	"cortex-rag/internal/app"
	"cortex-rag/internal/transport/http/middleware"
	"cortex-rag/internal/transport/http/response"
)

// UserKeyHandler manages the caller's stored Gemini credential and account
// purge.
type UserKeyHandler struct {
	keyring   *app.KeyringService
	notebooks *app.NotebookService
}

func NewUserKeyHandler(keyring *app.KeyringService, notebooks *app.NotebookService) *UserKeyHandler {
	return &UserKeyHandler{keyring: keyring, notebooks: notebooks}
}

type saveKeyRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

func (h *UserKeyHandler) SaveKey(c *gin.Context) {
	var req saveKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "apiKey is required")
		return
	}

	if err := h.keyring.SaveKey(c.GetString(middleware.ContextUserIDKey), req.APIKey); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *UserKeyHandler) DeleteKey(c *gin.Context) {
	if err := h.keyring.DeleteKey(c.GetString(middleware.ContextUserIDKey)); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, nil)
}

// PurgeAccount deletes every notebook, vector namespace, message, file
// record, and the stored credential for the caller.
func (h *UserKeyHandler) PurgeAccount(c *gin.Context) {
	if err := h.notebooks.PurgeAccount(c.Request.Context(), c.GetString(middleware.ContextUserIDKey)); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, nil)
}
