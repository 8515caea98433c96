package app

import (
	"context"
	"strings"
	"time"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
)

// ThreadService fronts the thread store with the message cache, domain
// events and logging. Cache and publisher are optional.
type ThreadService struct {
	store     ThreadStore
	cache     HistoryCache
	publisher EventPublisher
	log       logger.Logger
	now       func() time.Time
}

func NewThreadService(store ThreadStore, cache HistoryCache, publisher EventPublisher, log logger.Logger) *ThreadService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ThreadService{store: store, cache: cache, publisher: publisher, log: log, now: time.Now}
}

func (s *ThreadService) Create(ctx context.Context, pdfFileID, pdfFilename, firstQuestion string) (*model.Thread, error) {
	thread, err := s.store.CreateThread(ctx, pdfFileID, pdfFilename, firstQuestion)
	if err != nil {
		s.logFailure("create thread failed", err, map[string]interface{}{"pdf_file_id": pdfFileID})
		return nil, err
	}
	s.log.Info("thread", "thread created", map[string]interface{}{"thread_id": thread.ThreadID, "pdf_file_id": pdfFileID})
	s.publish(ctx, model.EventThreadCreated, thread.ThreadID, pdfFileID)
	return thread, nil
}

func (s *ThreadService) Append(ctx context.Context, threadID, question, answer string, sources []model.Source) error {
	if err := s.store.AppendMessage(ctx, threadID, question, answer, sources); err != nil {
		s.logFailure("append message failed", err, map[string]interface{}{"thread_id": threadID})
		return err
	}
	s.invalidate(ctx, threadID)
	s.publish(ctx, model.EventMessageAppended, threadID, "")
	return nil
}

func (s *ThreadService) Get(ctx context.Context, threadID string) (*model.Thread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		s.logFailure("get thread failed", err, map[string]interface{}{"thread_id": threadID})
		return nil, err
	}
	return thread, nil
}

// Messages reads through the cache when one is configured.
func (s *ThreadService) Messages(ctx context.Context, threadID string) ([]model.Message, error) {
	if s.cache != nil {
		cached, hit, err := s.cache.GetMessages(ctx, threadID)
		if err != nil {
			s.log.Warn("thread", "message cache read failed", map[string]interface{}{"thread_id": threadID, "error": err})
		} else if hit {
			return cached, nil
		}
	}

	messages, err := s.store.LoadMessages(ctx, threadID)
	if err != nil {
		s.logFailure("load messages failed", err, map[string]interface{}{"thread_id": threadID})
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetMessages(ctx, threadID, messages); err != nil {
			s.log.Warn("thread", "message cache write failed", map[string]interface{}{"thread_id": threadID, "error": err})
		}
	}
	return messages, nil
}

func (s *ThreadService) Rename(ctx context.Context, threadID, title string) (*model.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidInput
	}
	if err := s.store.RenameThread(ctx, threadID, title); err != nil {
		s.logFailure("rename thread failed", err, map[string]interface{}{"thread_id": threadID})
		return nil, err
	}
	s.publish(ctx, model.EventThreadRenamed, threadID, "")
	return s.store.GetThread(ctx, threadID)
}

func (s *ThreadService) Delete(ctx context.Context, threadID string) error {
	err := s.store.DeleteThread(ctx, threadID)
	s.invalidate(ctx, threadID)
	if err != nil {
		s.logFailure("delete thread failed", err, map[string]interface{}{"thread_id": threadID})
		return err
	}
	s.log.Info("thread", "thread deleted", map[string]interface{}{"thread_id": threadID})
	s.publish(ctx, model.EventThreadDeleted, threadID, "")
	return nil
}

func (s *ThreadService) List(ctx context.Context) ([]model.Thread, error) {
	threads, err := s.store.ListThreads(ctx)
	if err != nil {
		s.logFailure("list threads failed", err, nil)
		return nil, err
	}
	return threads, nil
}

func (s *ThreadService) Search(ctx context.Context, query string) ([]model.Thread, error) {
	threads, err := s.store.Search(ctx, query)
	if err != nil {
		s.logFailure("search threads failed", err, map[string]interface{}{"query": query})
		return nil, err
	}
	return threads, nil
}

func (s *ThreadService) ForDocument(ctx context.Context, pdfFileID string) ([]model.Thread, error) {
	threads, err := s.store.ThreadsForDocument(ctx, pdfFileID)
	if err != nil {
		s.logFailure("list document threads failed", err, map[string]interface{}{"pdf_file_id": pdfFileID})
		return nil, err
	}
	return threads, nil
}

// CleanupOrphans removes the threads of documents outside validPDFIDs.
func (s *ThreadService) CleanupOrphans(ctx context.Context, validPDFIDs []string) (int, error) {
	before, err := s.store.ListThreads(ctx)
	if err != nil {
		s.logFailure("list threads failed", err, nil)
		return 0, err
	}

	removed, err := s.store.CleanupOrphans(ctx, validPDFIDs)
	if err != nil {
		s.logFailure("cleanup orphan threads failed", err, nil)
		return removed, err
	}

	valid := make(map[string]struct{}, len(validPDFIDs))
	for _, id := range validPDFIDs {
		valid[id] = struct{}{}
	}
	for _, thread := range before {
		if _, ok := valid[thread.PDFFileID]; ok {
			continue
		}
		s.invalidate(ctx, thread.ThreadID)
		s.publish(ctx, model.EventThreadDeleted, thread.ThreadID, thread.PDFFileID)
	}
	if removed > 0 {
		s.log.Info("thread", "orphan threads removed", map[string]interface{}{"count": removed})
	}
	return removed, nil
}

func (s *ThreadService) Stats(ctx context.Context) (model.ThreadStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logFailure("thread stats failed", err, nil)
		return model.ThreadStats{}, err
	}
	return stats, nil
}

func (s *ThreadService) invalidate(ctx context.Context, threadID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, threadID); err != nil {
		s.log.Warn("thread", "message cache invalidate failed", map[string]interface{}{"thread_id": threadID, "error": err})
	}
}

func (s *ThreadService) publish(ctx context.Context, eventType model.EventType, threadID, documentID string) {
	publishEvent(ctx, s.publisher, s.log, model.Event{
		Type:       eventType,
		ThreadID:   threadID,
		DocumentID: documentID,
		OccurredAt: s.now(),
	})
}

func (s *ThreadService) logFailure(message string, err error, details map[string]interface{}) {
	logFailure(s.log, "thread", message, err, details)
}
