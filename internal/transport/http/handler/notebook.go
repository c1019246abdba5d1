package handler

import (
	"github.com/gin-gonic/gin"

	"cortex-rag/internal/app"
	"cortex-rag/internal/transport/http/middleware"
	"cortex-rag/internal/transport/http/response"
)

type NotebookHandler struct {
	notebooks *app.NotebookService
}

func NewNotebookHandler(notebooks *app.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks}
}

type createNotebookRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *NotebookHandler) Create(c *gin.Context) {
	var req createNotebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "name is required")
		return
	}

	notebook, err := h.notebooks.Create(c.Request.Context(), c.GetString(middleware.ContextUserIDKey), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, notebook)
}

func (h *NotebookHandler) List(c *gin.Context) {
	notebooks, err := h.notebooks.List(c.Request.Context(), c.GetString(middleware.ContextUserIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, notebooks)
}

func (h *NotebookHandler) Get(c *gin.Context) {
	notebook, err := h.notebooks.Get(c.Request.Context(), c.GetString(middleware.ContextUserIDKey), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, notebook)
}

type renameNotebookRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *NotebookHandler) Rename(c *gin.Context) {
	var req renameNotebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "name is required")
		return
	}

	if err := h.notebooks.Rename(c.Request.Context(), c.GetString(middleware.ContextUserIDKey), c.Param("id"), req.Name); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *NotebookHandler) Delete(c *gin.Context) {
	if err := h.notebooks.Delete(c.Request.Context(), c.GetString(middleware.ContextUserIDKey), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *NotebookHandler) DeleteFile(c *gin.Context) {
	err := h.notebooks.DeleteFile(
		c.Request.Context(),
		c.GetString(middleware.ContextUserIDKey),
		c.Param("id"),
		c.Param("filename"),
	)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, nil)
}
