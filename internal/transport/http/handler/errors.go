package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/transport/http/response"
)

// writeError maps domain errors onto the response envelope. Unknown errors
// are reported with fallback so internals do not leak.
func writeError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrDuplicateFilename):
		response.Error(c, http.StatusConflict, response.CodeDuplicateFilename, err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		response.Error(c, http.StatusConflict, response.CodeInvalidTransition, err.Error())
	case errors.Is(err, app.ErrDocumentNotReady):
		response.Error(c, http.StatusConflict, response.CodeDocumentNotReady, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, model.ErrExtraction):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeExtractionFailed, "failed to extract text from PDF")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
