package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
	"docchat/internal/repository"
	"docchat/internal/retrieval"
)

const DefaultMaxUploadBytes int64 = 5 * 1024 * 1024

type DocumentService struct {
	docs      DocumentStore
	threads   *ThreadService
	extractor PageExtractor
	chunker   *retrieval.Chunker
	maxBytes  int64
	publisher EventPublisher
	log       logger.Logger
	now       func() time.Time
}

type DocumentServiceConfig struct {
	MaxUploadBytes int64
	ChunkSize      int
}

func NewDocumentService(
	docs DocumentStore,
	threads *ThreadService,
	extractor PageExtractor,
	publisher EventPublisher,
	log logger.Logger,
	cfg DocumentServiceConfig,
) *DocumentService {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DocumentService{
		docs:      docs,
		threads:   threads,
		extractor: extractor,
		chunker:   retrieval.NewChunker(cfg.ChunkSize),
		maxBytes:  cfg.MaxUploadBytes,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Upload registers the document, stores its bytes and validates that text can
// be extracted. The document ends in success, or in error when extraction fails.
func (s *DocumentService) Upload(ctx context.Context, filename string, data []byte) (*model.Document, error) {
	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." || !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("only .pdf files are accepted: %w", ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file: %w", ErrInvalidInput)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	doc, err := s.docs.RegisterUnique(ctx, filename, int64(len(data)))
	if err != nil {
		if !errors.Is(err, ErrDuplicateFilename) {
			logFailure(s.log, "document", "register document failed", err, nil)
		}
		return nil, err
	}

	if err := s.docs.WriteContent(ctx, doc.FileID, data); err != nil {
		logFailure(s.log, "document", "store document failed", err, map[string]interface{}{"file_id": doc.FileID})
		if delErr := s.docs.Delete(ctx, doc.FileID); delErr != nil {
			logFailure(s.log, "document", "remove failed upload", delErr, map[string]interface{}{"file_id": doc.FileID})
		}
		return nil, err
	}

	if doc, err = s.docs.SetStatus(ctx, doc.FileID, model.StatusProcessing); err != nil {
		return nil, err
	}

	pages, err := s.extractor.ExtractPages(bytes.NewReader(data))
	if err == nil && len(pages) == 0 {
		err = fmt.Errorf("document has no pages: %w", model.ErrExtraction)
	}
	if err != nil {
		s.log.Warn("document", "extraction failed", map[string]interface{}{"file_id": doc.FileID, "error": err})
		if _, statusErr := s.docs.SetStatus(ctx, doc.FileID, model.StatusError); statusErr != nil {
			logFailure(s.log, "document", "mark document failed", statusErr, map[string]interface{}{"file_id": doc.FileID})
		}
		return nil, err
	}

	if doc, err = s.docs.SetStatus(ctx, doc.FileID, model.StatusSuccess); err != nil {
		return nil, err
	}

	s.log.Info("document", "document uploaded", map[string]interface{}{
		"file_id":  doc.FileID,
		"filename": doc.Filename,
		"pages":    len(pages),
		"bytes":    doc.Filesize,
	})
	publishEvent(ctx, s.publisher, s.log, model.Event{Type: model.EventDocumentUploaded, DocumentID: doc.FileID, OccurredAt: s.now()})
	return doc, nil
}

// Delete removes the document and then every thread that pointed at it.
func (s *DocumentService) Delete(ctx context.Context, fileID string) (int, error) {
	if err := s.docs.Delete(ctx, fileID); err != nil {
		logFailure(s.log, "document", "delete document failed", err, map[string]interface{}{"file_id": fileID})
		return 0, err
	}
	publishEvent(ctx, s.publisher, s.log, model.Event{Type: model.EventDocumentDeleted, DocumentID: fileID, OccurredAt: s.now()})

	docs, err := s.docs.List(ctx)
	if err != nil {
		return 0, err
	}
	valid := make([]string, 0, len(docs))
	for id := range docs {
		valid = append(valid, id)
	}
	removed, err := s.threads.CleanupOrphans(ctx, valid)
	if err != nil {
		return removed, err
	}
	s.log.Info("document", "document deleted", map[string]interface{}{"file_id": fileID, "threads_removed": removed})
	return removed, nil
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context) ([]model.Document, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		logFailure(s.log, "document", "list documents failed", err, nil)
		return nil, err
	}
	return repository.SortDocuments(docs), nil
}

func (s *DocumentService) IDs(ctx context.Context) ([]string, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *DocumentService) Get(ctx context.Context, fileID string) (*model.Document, error) {
	return s.docs.Get(ctx, fileID)
}

func (s *DocumentService) PathFor(ctx context.Context, fileID string) (string, error) {
	return s.docs.PathFor(ctx, fileID)
}

func (s *DocumentService) SetStatus(ctx context.Context, fileID, status string) (*model.Document, error) {
	next, err := model.ParseDocumentStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	doc, err := s.docs.SetStatus(ctx, fileID, next)
	if err != nil {
		logFailure(s.log, "document", "set status failed", err, map[string]interface{}{"file_id": fileID, "status": status})
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Stats(ctx context.Context) (model.DocumentStats, error) {
	return s.docs.Stats(ctx)
}

// LoadChunks extracts and chunks a document that finished uploading.
func (s *DocumentService) LoadChunks(ctx context.Context, fileID string) (*model.Document, []model.Chunk, error) {
	doc, err := s.docs.Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status != model.StatusSuccess {
		return nil, nil, fmt.Errorf("document %s is %s: %w", fileID, doc.Status, ErrDocumentNotReady)
	}

	data, err := s.docs.ReadContent(ctx, fileID)
	if err != nil {
		logFailure(s.log, "document", "read document failed", err, map[string]interface{}{"file_id": fileID})
		return nil, nil, err
	}
	pages, err := s.extractor.ExtractPages(bytes.NewReader(data))
	if err != nil {
		s.log.Warn("document", "extraction failed", map[string]interface{}{"file_id": fileID, "error": err})
		return nil, nil, err
	}
	chunks := s.chunker.Chunk(pages)
	s.log.Debug("document", "document chunked", map[string]interface{}{"file_id": fileID, "pages": len(pages), "chunks": len(chunks)})
	return doc, chunks, nil
}
