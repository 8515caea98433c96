package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
)

const (
	threadIndexFile = "threads_index.json"
	threadLogDir    = "messages"
)

// JSONThreadRepository keeps the thread index in one JSON file and each
// thread's message log in its own file. Every operation rewrites whole files.
// The mutex serializes callers inside one process only.
type JSONThreadRepository struct {
	dir string
	mu  sync.Mutex

	now    func() time.Time
	newID  func() string
	write  func(path string, v any) error
	remove func(path string) error
	log    logger.Logger
}

func NewJSONThreadRepository(dir string) (*JSONThreadRepository, error) {
	if err := os.MkdirAll(filepath.Join(dir, threadLogDir), 0o755); err != nil {
		return nil, fmt.Errorf("create thread dir failed: %w: %w", model.ErrStorage, err)
	}
	return &JSONThreadRepository{
		dir:   dir,
		now:   time.Now,
		newID:  uuid.NewString,
		write:  writeJSON,
		remove: removeFile,
		log:    logger.NewNop(),
	}, nil
}

// WithLogger reports leftover files that the next cleanup will sweep.
func (r *JSONThreadRepository) WithLogger(log logger.Logger) *JSONThreadRepository {
	if log != nil {
		r.log = log
	}
	return r
}

func (r *JSONThreadRepository) CreateThread(_ context.Context, pdfFileID, pdfFilename, firstQuestion string) (*model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}

	now := r.now()
	thread := model.Thread{
		ThreadID:    r.newID(),
		Title:       model.ThreadTitle(firstQuestion),
		PDFFileID:   pdfFileID,
		PDFFilename: pdfFilename,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	logPath := r.logPath(thread.ThreadID)
	if err := r.write(logPath, []model.Message{}); err != nil {
		return nil, err
	}
	index = append([]model.Thread{thread}, index...)
	if err := r.saveIndex(index); err != nil {
		_ = removeFile(logPath)
		return nil, err
	}
	return &thread, nil
}

// AppendMessage writes the log first and then the index. If the index write
// fails the previous log is restored, so message_count never drifts from the log.
func (r *JSONThreadRepository) AppendMessage(_ context.Context, threadID, question, answer string, sources []model.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return err
	}
	pos := indexOf(index, threadID)
	if pos < 0 {
		return fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}

	logPath := r.logPath(threadID)
	var previous []model.Message
	existed, err := readJSON(logPath, &previous)
	if err != nil {
		return err
	}

	now := r.now()
	if sources == nil {
		sources = []model.Source{}
	}
	messages := make([]model.Message, 0, len(previous)+1)
	messages = append(messages, previous...)
	messages = append(messages, model.Message{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Timestamp: now,
	})
	if err := r.write(logPath, messages); err != nil {
		return err
	}

	index[pos].MessageCount = len(messages)
	index[pos].UpdatedAt = now
	if err := r.saveIndex(index); err != nil {
		r.restoreLog(logPath, previous, existed)
		return err
	}
	return nil
}

func (r *JSONThreadRepository) restoreLog(path string, previous []model.Message, existed bool) {
	if !existed {
		_ = removeFile(path)
		return
	}
	if previous == nil {
		previous = []model.Message{}
	}
	_ = r.write(path, previous)
}

func (r *JSONThreadRepository) GetThread(_ context.Context, threadID string) (*model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	pos := indexOf(index, threadID)
	if pos < 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}
	thread := index[pos]
	return &thread, nil
}

// LoadMessages returns the log of an indexed thread in append order.
// A log without an index entry is treated as garbage and reported as not found.
func (r *JSONThreadRepository) LoadMessages(_ context.Context, threadID string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	if indexOf(index, threadID) < 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}
	return r.loadLog(threadID)
}

func (r *JSONThreadRepository) RenameThread(_ context.Context, threadID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return err
	}
	pos := indexOf(index, threadID)
	if pos < 0 {
		return fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}
	index[pos].Title = strings.TrimSpace(title)
	index[pos].UpdatedAt = r.now()
	return r.saveIndex(index)
}

// DeleteThread removes the index entry and the log. A stray log is removed
// even when the thread is not indexed, which is still reported as not found.
func (r *JSONThreadRepository) DeleteThread(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return err
	}
	pos := indexOf(index, threadID)
	if pos < 0 {
		if err := r.remove(r.logPath(threadID)); err != nil {
			return err
		}
		return fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}

	index = append(index[:pos], index[pos+1:]...)
	if err := r.saveIndex(index); err != nil {
		return err
	}
	// the thread is gone once the index is saved; CleanupOrphans sweeps a leftover log
	if err := r.remove(r.logPath(threadID)); err != nil {
		r.log.Warn("thread", "thread log left behind", map[string]interface{}{"thread_id": threadID, "error": err})
	}
	return nil
}

func (r *JSONThreadRepository) ListThreads(_ context.Context) ([]model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	sortThreads(index)
	return index, nil
}

// Search matches titles first and falls back to the message log of each
// thread. Matching is a case-insensitive substring test.
func (r *JSONThreadRepository) Search(_ context.Context, query string) ([]model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	sortThreads(index)

	if query == "" {
		return index, nil
	}
	needle := strings.ToLower(query)

	result := make([]model.Thread, 0)
	for _, thread := range index {
		if strings.Contains(strings.ToLower(thread.Title), needle) {
			result = append(result, thread)
			continue
		}
		messages, err := r.loadLog(thread.ThreadID)
		if err != nil {
			return nil, err
		}
		if messagesContain(messages, needle) {
			result = append(result, thread)
		}
	}
	return result, nil
}

func (r *JSONThreadRepository) ThreadsForDocument(_ context.Context, pdfFileID string) ([]model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	sortThreads(index)

	result := make([]model.Thread, 0)
	for _, thread := range index {
		if thread.PDFFileID == pdfFileID {
			result = append(result, thread)
		}
	}
	return result, nil
}

// CleanupOrphans drops every thread whose document is not in validPDFIDs and
// returns how many were dropped. Logs without an index entry are swept as
// well but are not counted.
func (r *JSONThreadRepository) CleanupOrphans(_ context.Context, validPDFIDs []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return 0, err
	}

	valid := make(map[string]struct{}, len(validPDFIDs))
	for _, id := range validPDFIDs {
		valid[id] = struct{}{}
	}

	kept := make([]model.Thread, 0, len(index))
	var removed []string
	for _, thread := range index {
		if _, ok := valid[thread.PDFFileID]; ok {
			kept = append(kept, thread)
			continue
		}
		removed = append(removed, thread.ThreadID)
	}

	if len(removed) > 0 {
		if err := r.saveIndex(kept); err != nil {
			return 0, err
		}
	}
	if err := r.sweepLogs(kept); err != nil {
		return len(removed), err
	}
	return len(removed), nil
}

func (r *JSONThreadRepository) sweepLogs(index []model.Thread) error {
	entries, err := os.ReadDir(filepath.Join(r.dir, threadLogDir))
	if err != nil {
		return fmt.Errorf("scan thread logs failed: %w: %w", model.ErrStorage, err)
	}
	indexed := make(map[string]struct{}, len(index))
	for _, thread := range index {
		indexed[thread.ThreadID] = struct{}{}
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		if _, ok := indexed[strings.TrimSuffix(name, ".json")]; ok {
			continue
		}
		if err := removeFile(filepath.Join(r.dir, threadLogDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Stats trusts the cached message_count of each index entry.
func (r *JSONThreadRepository) Stats(_ context.Context) (model.ThreadStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.loadIndex()
	if err != nil {
		return model.ThreadStats{}, err
	}
	return computeStats(index), nil
}

func (r *JSONThreadRepository) loadIndex() ([]model.Thread, error) {
	var index []model.Thread
	if _, err := readJSON(filepath.Join(r.dir, threadIndexFile), &index); err != nil {
		return nil, err
	}
	if index == nil {
		index = []model.Thread{}
	}
	return index, nil
}

func (r *JSONThreadRepository) saveIndex(index []model.Thread) error {
	sortThreads(index)
	return r.write(filepath.Join(r.dir, threadIndexFile), index)
}

func (r *JSONThreadRepository) loadLog(threadID string) ([]model.Message, error) {
	var messages []model.Message
	if _, err := readJSON(r.logPath(threadID), &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

func (r *JSONThreadRepository) logPath(threadID string) string {
	return filepath.Join(r.dir, threadLogDir, filepath.Base(threadID)+".json")
}

func indexOf(index []model.Thread, threadID string) int {
	for i := range index {
		if index[i].ThreadID == threadID {
			return i
		}
	}
	return -1
}

func sortThreads(threads []model.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}

func messagesContain(messages []model.Message, needle string) bool {
	for _, msg := range messages {
		if strings.Contains(strings.ToLower(msg.Question), needle) ||
			strings.Contains(strings.ToLower(msg.Answer), needle) {
			return true
		}
	}
	return false
}

func computeStats(threads []model.Thread) model.ThreadStats {
	stats := model.ThreadStats{TotalThreads: len(threads)}
	for i := range threads {
		stats.TotalMessages += threads[i].MessageCount
		created := threads[i].CreatedAt
		if stats.OldestCreatedAt == nil || created.Before(*stats.OldestCreatedAt) {
			stats.OldestCreatedAt = &created
		}
		if stats.NewestCreatedAt == nil || created.After(*stats.NewestCreatedAt) {
			stats.NewestCreatedAt = &created
		}
	}
	return stats
}
