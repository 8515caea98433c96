package app

import (
	"context"
	"errors"
	"io"

	"docchat/internal/model"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrFileTooLarge      = errors.New("file exceeds upload size limit")
	ErrDuplicateFilename = model.ErrDuplicateFilename
	ErrDocumentNotReady  = errors.New("document is not ready for chat")
)

type ThreadStore interface {
	CreateThread(ctx context.Context, pdfFileID, pdfFilename, firstQuestion string) (*model.Thread, error)
	AppendMessage(ctx context.Context, threadID, question, answer string, sources []model.Source) error
	GetThread(ctx context.Context, threadID string) (*model.Thread, error)
	LoadMessages(ctx context.Context, threadID string) ([]model.Message, error)
	RenameThread(ctx context.Context, threadID, title string) error
	DeleteThread(ctx context.Context, threadID string) error
	ListThreads(ctx context.Context) ([]model.Thread, error)
	Search(ctx context.Context, query string) ([]model.Thread, error)
	ThreadsForDocument(ctx context.Context, pdfFileID string) ([]model.Thread, error)
	CleanupOrphans(ctx context.Context, validPDFIDs []string) (int, error)
	Stats(ctx context.Context) (model.ThreadStats, error)
}

type DocumentStore interface {
	// RegisterUnique fails with model.ErrDuplicateFilename for a taken name.
	RegisterUnique(ctx context.Context, filename string, filesize int64) (*model.Document, error)
	SetStatus(ctx context.Context, fileID string, status model.DocumentStatus) (*model.Document, error)
	WriteContent(ctx context.Context, fileID string, data []byte) error
	ReadContent(ctx context.Context, fileID string) ([]byte, error)
	Delete(ctx context.Context, fileID string) error
	PathFor(ctx context.Context, fileID string) (string, error)
	Get(ctx context.Context, fileID string) (*model.Document, error)
	List(ctx context.Context) (map[string]model.Document, error)
	Stats(ctx context.Context) (model.DocumentStats, error)
}

type PageExtractor interface {
	ExtractPages(r io.Reader) ([]model.Page, error)
}

// Generator produces answer text for a prompt. Failures wrap model.ErrGeneration.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type HistoryCache interface {
	GetMessages(ctx context.Context, threadID string) ([]model.Message, bool, error)
	SetMessages(ctx context.Context, threadID string, messages []model.Message) error
	Invalidate(ctx context.Context, threadIDs ...string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.Event) error
}
