// Package handler contains the gin handlers behind /api/v1.
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"cortex-rag/internal/ai"
	"cortex-rag/internal/app"
	"cortex-rag/internal/transport/http/response"
)

// writeError maps service errors onto the wire. 428 tells the client to
// collect a Gemini key before retrying; 401 with a credential code means the
// stored key was rejected upstream.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, 400, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, 404, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrCredentialRequired):
		response.Error(c, 428, response.CodeCredentialRequired, "a Gemini API key is required; submit one first")
	case errors.Is(err, app.ErrCredentialCorrupt):
		response.Error(c, 500, response.CodeCredentialCorrupt, "stored Gemini API key is unreadable; submit it again")
	case errors.Is(err, ai.ErrCredential):
		response.Error(c, 401, response.CodeCredentialInvalid, "Gemini rejected the API key or its quota is exhausted")
	case errors.Is(err, app.ErrServerKeyMissing):
		response.Error(c, 500, response.CodeInternalServer, "server credential is not configured")
	case errors.Is(err, app.ErrUpstream):
		response.Error(c, 500, response.CodeUpstreamFailure, "model provider is unavailable, try again")
	default:
		response.Error(c, 500, response.CodeInternalServer, "internal error")
	}
}
