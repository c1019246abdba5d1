package handler

import (
	"github.com/gin-gonic/gin"

	"cortex-rag/internal/app"
	"cortex-rag/internal/transport/http/middleware"
	"cortex-rag/internal/transport/http/response"
)

type ChatHandler struct {
	chat    *app.ChatService
	keyring *app.KeyringService
}

func NewChatHandler(chat *app.ChatService, keyring *app.KeyringService) *ChatHandler {
	return &ChatHandler{chat: chat, keyring: keyring}
}

type chatRequest struct {
	NotebookID   string `json:"notebookId" binding:"required"`
	Message      string `json:"message" binding:"required"`
	UseWebSearch bool   `json:"useWebSearch"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)
	email := c.GetString(middleware.ContextEmailKey)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, 400, response.CodeBadRequest, "notebookId and message are required")
		return
	}

	credential, err := h.keyring.Resolve(userID, email)
	if err != nil {
		writeError(c, err)
		return
	}

	reply, err := h.chat.Chat(c.Request.Context(), credential, userID, req.NotebookID, req.Message, req.UseWebSearch)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, reply)
}
