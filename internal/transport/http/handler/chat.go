package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/transport/http/response"
)

type ChatHandler struct {
	chat          *app.ChatService
	conversations *app.ConversationRegistry
}

type AskRequest struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id" binding:"required"`
	Question   string `json:"question" binding:"required"`
}

type NewChatRequest struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
}

type ResumeRequest struct {
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id" binding:"required"`
}

type AskResponse struct {
	SessionID string `json:"session_id"`
	*app.AskResult
}

func NewChatHandler(chat *app.ChatService, conversations *app.ConversationRegistry) *ChatHandler {
	return &ChatHandler{chat: chat, conversations: conversations}
}

// Ask answers a question. Omitting session_id starts a new session whose id
// is returned for follow-up questions.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	conv := h.conversations.Session(req.SessionID)
	result, err := h.chat.Ask(c.Request.Context(), conv, req.DocumentID, req.Question)
	if err != nil {
		writeError(c, err, "ask failed")
		return
	}
	response.OK(c, AskResponse{SessionID: conv.SessionID, AskResult: result})
}

func (h *ChatHandler) New(c *gin.Context) {
	var req NewChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	conv := h.conversations.Session(req.SessionID)
	if err := h.chat.StartNewConversation(c.Request.Context(), conv, req.DocumentID); err != nil {
		writeError(c, err, "start conversation failed")
		return
	}
	response.OK(c, conv.Snapshot())
}

func (h *ChatHandler) Resume(c *gin.Context) {
	var req ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	conv := h.conversations.Session(req.SessionID)
	if err := h.chat.ResumeThread(c.Request.Context(), conv, req.ThreadID); err != nil {
		writeError(c, err, "resume thread failed")
		return
	}
	response.OK(c, conv.Snapshot())
}

func (h *ChatHandler) History(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "session_id is required")
		return
	}
	conv, ok := h.conversations.Lookup(sessionID)
	if !ok {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "session not found")
		return
	}
	response.OK(c, conv.Snapshot())
}
