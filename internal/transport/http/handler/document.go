package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/transport/http/response"
)

type DocumentHandler struct {
	documents     *app.DocumentService
	threads       *app.ThreadService
	conversations *app.ConversationRegistry
	maxBytes      int64
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func NewDocumentHandler(documents *app.DocumentService, threads *app.ThreadService, conversations *app.ConversationRegistry, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{documents: documents, threads: threads, conversations: conversations, maxBytes: maxBytes}
}

// Upload accepts a multipart form with a "file" field holding the PDF.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		writeError(c, app.ErrFileTooLarge, "")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	doc, err := h.documents.Upload(c.Request.Context(), file.Filename, data)
	if err != nil {
		writeError(c, err, "upload failed")
		return
	}
	response.OK(c, app.NewDocumentView(*doc, time.Now()))
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context())
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, app.NewDocumentViews(docs, time.Now()))
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	location, err := h.documents.PathFor(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	response.OK(c, gin.H{
		"document": app.NewDocumentView(*doc, time.Now()),
		"location": location,
	})
}

func (h *DocumentHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	doc, err := h.documents.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err, "update status failed")
		return
	}
	response.OK(c, app.NewDocumentView(*doc, time.Now()))
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	removed, err := h.documents.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	h.conversations.Detach(model.Event{Type: model.EventDocumentDeleted, DocumentID: id})
	response.OK(c, gin.H{"deleted_file_id": id, "threads_removed": removed})
}

func (h *DocumentHandler) Threads(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.documents.Get(c.Request.Context(), id); err != nil {
		writeError(c, err, "list threads failed")
		return
	}
	threads, err := h.threads.ForDocument(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "list threads failed")
		return
	}
	response.OK(c, app.NewThreadViews(threads, time.Now()))
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.documents.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, "document stats failed")
		return
	}
	response.OK(c, stats)
}
