package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/transport/http/response"
)

type ThreadHandler struct {
	threads       *app.ThreadService
	documents     *app.DocumentService
	conversations *app.ConversationRegistry
}

type RenameThreadRequest struct {
	Title string `json:"title" binding:"required,max=256"`
}

func NewThreadHandler(threads *app.ThreadService, documents *app.DocumentService, conversations *app.ConversationRegistry) *ThreadHandler {
	return &ThreadHandler{threads: threads, documents: documents, conversations: conversations}
}

// List returns every thread, or the matches of ?q= when present.
func (h *ThreadHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if query, ok := c.GetQuery("q"); ok {
		threads, err := h.threads.Search(ctx, query)
		if err != nil {
			writeError(c, err, "search threads failed")
			return
		}
		response.OK(c, app.NewThreadViews(threads, time.Now()))
		return
	}

	threads, err := h.threads.List(ctx)
	if err != nil {
		writeError(c, err, "list threads failed")
		return
	}
	response.OK(c, app.NewThreadViews(threads, time.Now()))
}

func (h *ThreadHandler) Get(c *gin.Context) {
	thread, err := h.threads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "get thread failed")
		return
	}
	response.OK(c, thread)
}

func (h *ThreadHandler) Messages(c *gin.Context) {
	messages, err := h.threads.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "load messages failed")
		return
	}
	response.OK(c, messages)
}

func (h *ThreadHandler) Rename(c *gin.Context) {
	var req RenameThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	thread, err := h.threads.Rename(c.Request.Context(), c.Param("id"), req.Title)
	if err != nil {
		writeError(c, err, "rename thread failed")
		return
	}
	response.OK(c, thread)
}

func (h *ThreadHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.threads.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err, "delete thread failed")
		return
	}
	h.conversations.Detach(model.Event{Type: model.EventThreadDeleted, ThreadID: id})
	response.OK(c, gin.H{"deleted_thread_id": id})
}

// Cleanup removes threads whose document no longer exists.
func (h *ThreadHandler) Cleanup(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := h.documents.IDs(ctx)
	if err != nil {
		writeError(c, err, "cleanup threads failed")
		return
	}
	removed, err := h.threads.CleanupOrphans(ctx, ids)
	if err != nil {
		writeError(c, err, "cleanup threads failed")
		return
	}
	response.OK(c, gin.H{"removed": removed})
}

func (h *ThreadHandler) Stats(c *gin.Context) {
	stats, err := h.threads.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, "thread stats failed")
		return
	}
	response.OK(c, stats)
}
