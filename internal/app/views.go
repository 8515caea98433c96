package app

import (
	"time"

	"docchat/internal/model"
	"docchat/internal/pkg/display"
)

// DocumentView adds human-readable labels for API and CLI output.
type DocumentView struct {
	model.Document
	SizeLabel    string `json:"size_label"`
	CreatedLabel string `json:"created_label"`
}

type ThreadView struct {
	model.Thread
	UpdatedLabel string `json:"updated_label"`
}

func NewDocumentView(doc model.Document, now time.Time) DocumentView {
	return DocumentView{
		Document:     doc,
		SizeLabel:    display.FileSize(doc.Filesize),
		CreatedLabel: display.RelativeTime(doc.CreatedAt, now),
	}
}

func NewDocumentViews(docs []model.Document, now time.Time) []DocumentView {
	views := make([]DocumentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, NewDocumentView(doc, now))
	}
	return views
}

func NewThreadViews(threads []model.Thread, now time.Time) []ThreadView {
	views := make([]ThreadView, 0, len(threads))
	for _, thread := range threads {
		views = append(views, ThreadView{Thread: thread, UpdatedLabel: display.RelativeTime(thread.UpdatedAt, now)})
	}
	return views
}
