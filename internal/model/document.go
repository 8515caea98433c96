package model

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusSuccess    DocumentStatus = "success"
	StatusError      DocumentStatus = "error"
)

var statusTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploading:  {StatusProcessing, StatusError},
	StatusProcessing: {StatusSuccess, StatusError},
	StatusError:      {StatusProcessing},
}

// ParseDocumentStatus rejects anything outside the closed status set.
func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	switch s := DocumentStatus(raw); s {
	case StatusUploading, StatusProcessing, StatusSuccess, StatusError:
		return s, nil
	}
	return "", fmt.Errorf("unknown document status %q: %w", raw, ErrInvalidTransition)
}

// CanTransitionTo reports whether a document may move from s to next.
// Re-applying the current status is always allowed.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Document struct {
	FileID     string         `json:"file_id"`
	Filename   string         `json:"filename"`
	Filesize   int64          `json:"filesize"`
	CreatedAt  time.Time      `json:"created_at"`
	Status     DocumentStatus `json:"status"`
	StorageKey string         `json:"storage_key"`
}

type DocumentStats struct {
	TotalFiles int   `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
}
