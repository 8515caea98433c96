package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"docchat/internal/model"
)

type threadRecord struct {
	ThreadID     string    `gorm:"primaryKey;size:36"`
	Title        string    `gorm:"size:256;not null"`
	PDFFileID    string    `gorm:"column:pdf_file_id;size:36;not null;index"`
	PDFFilename  string    `gorm:"column:pdf_filename;size:255;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false;not null"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false;not null;index"`
	MessageCount int       `gorm:"not null;default:0"`
}

func (threadRecord) TableName() string { return "threads" }

type messageRecord struct {
	ID        uint      `gorm:"primaryKey"`
	ThreadID  string    `gorm:"size:36;not null;index"`
	Question  string    `gorm:"type:text;not null"`
	Answer    string    `gorm:"type:text;not null"`
	Sources   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
}

func (messageRecord) TableName() string { return "thread_messages" }

// GormThreadRepository stores the index as rows of threads and the logs as
// rows of thread_messages. Appends run in one transaction.
type GormThreadRepository struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string
}

func NewGormThreadRepository(db *gorm.DB) *GormThreadRepository {
	return &GormThreadRepository{db: db, now: time.Now, newID: uuid.NewString}
}

func (r *GormThreadRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&threadRecord{}, &messageRecord{}); err != nil {
		return fmt.Errorf("migrate thread tables failed: %w: %w", model.ErrStorage, err)
	}
	return nil
}

func (r *GormThreadRepository) CreateThread(ctx context.Context, pdfFileID, pdfFilename, firstQuestion string) (*model.Thread, error) {
	now := r.now()
	record := threadRecord{
		ThreadID:    r.newID(),
		Title:       model.ThreadTitle(firstQuestion),
		PDFFileID:   pdfFileID,
		PDFFilename: pdfFilename,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create thread failed: %w: %w", model.ErrStorage, err)
	}
	thread := record.toModel()
	return &thread, nil
}

func (r *GormThreadRepository) AppendMessage(ctx context.Context, threadID, question, answer string, sources []model.Source) error {
	if sources == nil {
		sources = []model.Source{}
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encode sources failed: %w: %w", model.ErrStorage, err)
	}

	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var thread threadRecord
		if err := tx.Where("thread_id = ?", threadID).First(&thread).Error; err != nil {
			return wrapLookup(threadID, err)
		}

		message := messageRecord{
			ThreadID:  threadID,
			Question:  question,
			Answer:    answer,
			Sources:   string(encoded),
			Timestamp: now,
		}
		if err := tx.Create(&message).Error; err != nil {
			return fmt.Errorf("append message failed: %w: %w", model.ErrStorage, err)
		}

		var count int64
		if err := tx.Model(&messageRecord{}).Where("thread_id = ?", threadID).Count(&count).Error; err != nil {
			return fmt.Errorf("count messages failed: %w: %w", model.ErrStorage, err)
		}
		if err := tx.Model(&threadRecord{}).Where("thread_id = ?", threadID).
			Updates(map[string]any{"message_count": count, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update thread failed: %w: %w", model.ErrStorage, err)
		}
		return nil
	})
}

func (r *GormThreadRepository) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	var record threadRecord
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&record).Error; err != nil {
		return nil, wrapLookup(threadID, err)
	}
	thread := record.toModel()
	return &thread, nil
}

func (r *GormThreadRepository) LoadMessages(ctx context.Context, threadID string) ([]model.Message, error) {
	if _, err := r.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	var records []messageRecord
	if err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w: %w", model.ErrStorage, err)
	}

	messages := make([]model.Message, 0, len(records))
	for _, record := range records {
		msg, err := record.toModel()
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *GormThreadRepository) RenameThread(ctx context.Context, threadID, title string) error {
	result := r.db.WithContext(ctx).Model(&threadRecord{}).Where("thread_id = ?", threadID).
		Updates(map[string]any{"title": strings.TrimSpace(title), "updated_at": r.now()})
	if result.Error != nil {
		return fmt.Errorf("rename thread failed: %w: %w", model.ErrStorage, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}
	return nil
}

func (r *GormThreadRepository) DeleteThread(ctx context.Context, threadID string) error {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&messageRecord{}).Error; err != nil {
			return fmt.Errorf("delete messages failed: %w: %w", model.ErrStorage, err)
		}
		result := tx.Where("thread_id = ?", threadID).Delete(&threadRecord{})
		if result.Error != nil {
			return fmt.Errorf("delete thread failed: %w: %w", model.ErrStorage, result.Error)
		}
		affected = result.RowsAffected
		return nil
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}
	return nil
}

func (r *GormThreadRepository) ListThreads(ctx context.Context) ([]model.Thread, error) {
	return r.findThreads(r.db.WithContext(ctx))
}

func (r *GormThreadRepository) Search(ctx context.Context, query string) ([]model.Thread, error) {
	if query == "" {
		return r.ListThreads(ctx)
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	db := r.db.WithContext(ctx)
	matched := db.Model(&messageRecord{}).Select("thread_id").
		Where("LOWER(question) LIKE ? ESCAPE '!' OR LOWER(answer) LIKE ? ESCAPE '!'", pattern, pattern)
	return r.findThreads(db.Where("LOWER(title) LIKE ? ESCAPE '!'", pattern).Or("thread_id IN (?)", matched))
}

func (r *GormThreadRepository) ThreadsForDocument(ctx context.Context, pdfFileID string) ([]model.Thread, error) {
	return r.findThreads(r.db.WithContext(ctx).Where("pdf_file_id = ?", pdfFileID))
}

// CleanupOrphans removes threads of unknown documents and any message rows
// that no longer belong to a thread. Only threads are counted.
func (r *GormThreadRepository) CleanupOrphans(ctx context.Context, validPDFIDs []string) (int, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orphans := tx.Model(&threadRecord{})
		if len(validPDFIDs) > 0 {
			orphans = orphans.Where("pdf_file_id NOT IN ?", validPDFIDs)
		} else {
			orphans = orphans.Where("1 = 1")
		}
		result := orphans.Delete(&threadRecord{})
		if result.Error != nil {
			return fmt.Errorf("delete orphan threads failed: %w: %w", model.ErrStorage, result.Error)
		}
		removed = result.RowsAffected

		live := tx.Model(&threadRecord{}).Select("thread_id")
		if err := tx.Where("thread_id NOT IN (?)", live).Delete(&messageRecord{}).Error; err != nil {
			return fmt.Errorf("delete orphan messages failed: %w: %w", model.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

func (r *GormThreadRepository) Stats(ctx context.Context) (model.ThreadStats, error) {
	threads, err := r.ListThreads(ctx)
	if err != nil {
		return model.ThreadStats{}, err
	}
	return computeStats(threads), nil
}

func (r *GormThreadRepository) findThreads(query *gorm.DB) ([]model.Thread, error) {
	var records []threadRecord
	if err := query.Order("updated_at DESC").Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list threads failed: %w: %w", model.ErrStorage, err)
	}
	threads := make([]model.Thread, 0, len(records))
	for _, record := range records {
		threads = append(threads, record.toModel())
	}
	return threads, nil
}

func (r threadRecord) toModel() model.Thread {
	return model.Thread{
		ThreadID:     r.ThreadID,
		Title:        r.Title,
		PDFFileID:    r.PDFFileID,
		PDFFilename:  r.PDFFilename,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		MessageCount: r.MessageCount,
	}
}

func (r messageRecord) toModel() (model.Message, error) {
	sources := []model.Source{}
	if r.Sources != "" {
		if err := json.Unmarshal([]byte(r.Sources), &sources); err != nil {
			return model.Message{}, fmt.Errorf("decode sources failed: %w: %w", model.ErrStorage, err)
		}
	}
	return model.Message{
		Question:  r.Question,
		Answer:    r.Answer,
		Sources:   sources,
		Timestamp: r.Timestamp,
	}, nil
}

func wrapLookup(threadID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("thread %s: %w", threadID, model.ErrNotFound)
	}
	return fmt.Errorf("get thread failed: %w: %w", model.ErrStorage, err)
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
