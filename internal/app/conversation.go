package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"docchat/internal/model"
)

// Conversation is the per-session chat state. An empty ThreadID means no
// thread exists yet; the first answered question creates one.
type Conversation struct {
	SessionID    string
	DocumentID   string
	DocumentName string
	ThreadID     string
	// History is the running display history. It is not persisted.
	History []model.Message

	mu     sync.Mutex
	chunks []model.Chunk
}

func NewConversation(sessionID string) *Conversation {
	return &Conversation{SessionID: sessionID}
}

func (c *Conversation) HasThread() bool {
	return c.ThreadID != ""
}

// IsNewConversation reports whether asking about documentID means leaving
// the current document.
func (c *Conversation) IsNewConversation(documentID string) bool {
	return c.DocumentID != documentID
}

func (c *Conversation) reset() {
	c.ThreadID = ""
	c.History = nil
}

// close forgets the current document along with its thread.
func (c *Conversation) close() {
	c.DocumentID = ""
	c.DocumentName = ""
	c.chunks = nil
	c.reset()
}

// ConversationState is a copy of the exported conversation fields.
type ConversationState struct {
	SessionID    string          `json:"session_id"`
	DocumentID   string          `json:"document_id"`
	DocumentName string          `json:"document_name"`
	ThreadID     string          `json:"thread_id"`
	History      []model.Message `json:"history"`
}

func (c *Conversation) Snapshot() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]model.Message, len(c.History))
	copy(history, c.History)
	return ConversationState{
		SessionID:    c.SessionID,
		DocumentID:   c.DocumentID,
		DocumentName: c.DocumentName,
		ThreadID:     c.ThreadID,
		History:      history,
	}
}

const (
	DefaultConversationTTL = 2 * time.Hour
	conversationSweep      = 10 * time.Minute
)

// ConversationRegistry keeps conversations by session id and forgets the
// ones that stay idle longer than the TTL.
type ConversationRegistry struct {
	mu    sync.Mutex
	items *gocache.Cache
}

func NewConversationRegistry(ttl time.Duration) *ConversationRegistry {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	return &ConversationRegistry{items: gocache.New(ttl, conversationSweep)}
}

// Session returns the conversation for sessionID, creating it when absent.
// An empty sessionID starts a fresh session with a generated id.
func (r *ConversationRegistry) Session(sessionID string) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if v, ok := r.items.Get(sessionID); ok {
		conv := v.(*Conversation)
		r.items.SetDefault(sessionID, conv)
		return conv
	}
	conv := NewConversation(sessionID)
	r.items.SetDefault(sessionID, conv)
	return conv
}

func (r *ConversationRegistry) Lookup(sessionID string) (*Conversation, bool) {
	v, ok := r.items.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Conversation), true
}

func (r *ConversationRegistry) Len() int {
	return r.items.ItemCount()
}

// Detach clears references to a deleted thread or document from every live
// conversation and reports how many were changed. Other events are ignored.
func (r *ConversationRegistry) Detach(event model.Event) int {
	if event.Type != model.EventThreadDeleted && event.Type != model.EventDocumentDeleted {
		return 0
	}

	detached := 0
	for _, item := range r.items.Items() {
		conv := item.Object.(*Conversation)
		conv.mu.Lock()
		switch {
		case event.Type == model.EventThreadDeleted && event.ThreadID != "" && conv.ThreadID == event.ThreadID:
			conv.reset()
			detached++
		case event.Type == model.EventDocumentDeleted && event.DocumentID != "" && conv.DocumentID == event.DocumentID:
			conv.close()
			detached++
		}
		conv.mu.Unlock()
	}
	return detached
}
