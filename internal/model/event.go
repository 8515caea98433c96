package model

import "time"

type EventType string

const (
	EventThreadCreated    EventType = "thread.created"
	EventMessageAppended  EventType = "thread.message_appended"
	EventThreadRenamed    EventType = "thread.renamed"
	EventThreadDeleted    EventType = "thread.deleted"
	EventDocumentUploaded EventType = "document.uploaded"
	EventDocumentDeleted  EventType = "document.deleted"
)

// Event is published after a mutation has been persisted.
type Event struct {
	Type       EventType `json:"type"`
	ThreadID   string    `json:"thread_id,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
