package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/model"
	"docchat/internal/storage"
)

const fileMetadataFile = "file_data.json"

// FileRepository keeps document metadata in one JSON map keyed by file id and
// the document bytes in a blob store.
type FileRepository struct {
	path  string
	blobs storage.BlobStore
	mu    sync.Mutex

	now   func() time.Time
	newID func() string
}

func NewFileRepository(dir string, blobs storage.BlobStore) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create metadata dir failed: %w: %w", model.ErrStorage, err)
	}
	return &FileRepository{
		path:  filepath.Join(dir, fileMetadataFile),
		blobs: blobs,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// Register records a new document in the uploading state.
func (r *FileRepository) Register(_ context.Context, filename string, filesize int64) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	return r.insert(docs, filename, filesize)
}

// RegisterUnique is Register that fails with model.ErrDuplicateFilename when a
// document with the same name (case-insensitive) exists. Lookup and insert
// happen under one lock.
func (r *FileRepository) RegisterUnique(_ context.Context, filename string, filesize int64) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	if _, ok := findByFilename(docs, filename); ok {
		return nil, fmt.Errorf("document %q: %w", filename, model.ErrDuplicateFilename)
	}
	return r.insert(docs, filename, filesize)
}

func (r *FileRepository) insert(docs map[string]model.Document, filename string, filesize int64) (*model.Document, error) {
	id := r.newID()
	doc := model.Document{
		FileID:     id,
		Filename:   filename,
		Filesize:   filesize,
		CreatedAt:  r.now(),
		Status:     model.StatusUploading,
		StorageKey: id + "/" + filepath.Base(filename),
	}
	docs[id] = doc
	if err := r.save(docs); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SetStatus moves a document to status, rejecting transitions outside the
// status graph with model.ErrInvalidTransition.
func (r *FileRepository) SetStatus(_ context.Context, fileID string, status model.DocumentStatus) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	doc, ok := docs[fileID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", fileID, model.ErrNotFound)
	}
	if !doc.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%s -> %s: %w", doc.Status, status, model.ErrInvalidTransition)
	}
	doc.Status = status
	docs[fileID] = doc
	if err := r.save(docs); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *FileRepository) WriteContent(ctx context.Context, fileID string, data []byte) error {
	doc, err := r.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if err := r.blobs.Put(ctx, doc.StorageKey, data, "application/pdf"); err != nil {
		return fmt.Errorf("store document %s failed: %w: %w", fileID, model.ErrStorage, err)
	}
	return nil
}

func (r *FileRepository) ReadContent(ctx context.Context, fileID string) ([]byte, error) {
	doc, err := r.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	data, err := r.blobs.Get(ctx, doc.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("content of document %s: %w", fileID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s failed: %w: %w", fileID, model.ErrStorage, err)
	}
	return data, nil
}

// Delete removes the backing file and then the metadata entry.
func (r *FileRepository) Delete(ctx context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return err
	}
	doc, ok := docs[fileID]
	if !ok {
		return fmt.Errorf("document %s: %w", fileID, model.ErrNotFound)
	}
	if err := r.blobs.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete document %s failed: %w: %w", fileID, model.ErrStorage, err)
	}
	delete(docs, fileID)
	return r.save(docs)
}

// PathFor returns where the document bytes live.
func (r *FileRepository) PathFor(ctx context.Context, fileID string) (string, error) {
	doc, err := r.Get(ctx, fileID)
	if err != nil {
		return "", err
	}
	return r.blobs.Locator(doc.StorageKey), nil
}

func (r *FileRepository) Get(_ context.Context, fileID string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	doc, ok := docs[fileID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", fileID, model.ErrNotFound)
	}
	return &doc, nil
}

func (r *FileRepository) List(_ context.Context) (map[string]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// FindByFilename matches case-insensitively.
func (r *FileRepository) FindByFilename(_ context.Context, filename string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return nil, err
	}
	if doc, ok := findByFilename(docs, filename); ok {
		return &doc, nil
	}
	return nil, fmt.Errorf("document %q: %w", filename, model.ErrNotFound)
}

func findByFilename(docs map[string]model.Document, filename string) (model.Document, bool) {
	for _, doc := range docs {
		if strings.EqualFold(doc.Filename, filename) {
			return doc, true
		}
	}
	return model.Document{}, false
}

func (r *FileRepository) Stats(_ context.Context) (model.DocumentStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs, err := r.load()
	if err != nil {
		return model.DocumentStats{}, err
	}
	stats := model.DocumentStats{TotalFiles: len(docs)}
	for _, doc := range docs {
		stats.TotalBytes += doc.Filesize
	}
	return stats, nil
}

func (r *FileRepository) load() (map[string]model.Document, error) {
	docs := map[string]model.Document{}
	if _, err := readJSON(r.path, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = map[string]model.Document{}
	}
	return docs, nil
}

func (r *FileRepository) save(docs map[string]model.Document) error {
	return writeJSON(r.path, docs)
}

// SortDocuments orders documents newest first.
func SortDocuments(docs map[string]model.Document) []model.Document {
	list := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		list = append(list, doc)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].FileID < list[j].FileID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}
