package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
	"docchat/internal/retrieval"
)

const NoRelevantContentAnswer = "I couldn't find relevant information in the PDF to answer your question."

type AskResult struct {
	Answer    string         `json:"answer"`
	Sources   []model.Source `json:"sources"`
	ThreadID  string         `json:"thread_id"`
	NewThread bool           `json:"new_thread"`
}

// ChatService answers questions about one document at a time and records
// every exchange in a thread.
type ChatService struct {
	documents *DocumentService
	threads   *ThreadService
	ranker    *retrieval.Ranker
	generator Generator
	log       logger.Logger
	now       func() time.Time
}

func NewChatService(documents *DocumentService, threads *ThreadService, generator Generator, log logger.Logger, topK int) *ChatService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatService{
		documents: documents,
		threads:   threads,
		ranker:    retrieval.NewRanker(topK),
		generator: generator,
		log:       log,
		now:       time.Now,
	}
}

// Ask answers question from documentID. Switching to another document starts
// a new conversation first. Generation failures become the answer text.
func (s *ChatService) Ask(ctx context.Context, conv *Conversation, documentID, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" || documentID == "" {
		return nil, ErrInvalidInput
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) && conv.DocumentID == documentID {
			conv.close()
		}
		return nil, err
	}
	if conv.IsNewConversation(documentID) || conv.chunks == nil {
		if err := s.openDocument(ctx, conv, documentID); err != nil {
			return nil, err
		}
	}

	answer, sources := s.answer(ctx, doc.Filename, conv.chunks, question)

	newThread, err := s.record(ctx, conv, doc, question, answer, sources)
	if err != nil {
		return nil, err
	}
	result := &AskResult{Answer: answer, Sources: sources, ThreadID: conv.ThreadID, NewThread: newThread}

	conv.History = append(conv.History, model.Message{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Timestamp: s.now(),
	})
	return result, nil
}

// record appends the exchange to the conversation's thread. A thread that was
// deleted behind the conversation's back is replaced by a new one. A thread
// created here that cannot take its first message is removed again, leaving
// the conversation without a thread.
func (s *ChatService) record(ctx context.Context, conv *Conversation, doc *model.Document, question, answer string, sources []model.Source) (bool, error) {
	if conv.HasThread() {
		err := s.threads.Append(ctx, conv.ThreadID, question, answer, sources)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return false, err
		}
		s.log.Info("chat", "thread no longer exists, starting a new one", map[string]interface{}{
			"session_id": conv.SessionID,
			"thread_id":  conv.ThreadID,
		})
		conv.reset()
	}

	thread, err := s.threads.Create(ctx, doc.FileID, doc.Filename, question)
	if err != nil {
		return false, err
	}
	if err := s.threads.Append(ctx, thread.ThreadID, question, answer, sources); err != nil {
		if delErr := s.threads.Delete(ctx, thread.ThreadID); delErr != nil {
			s.log.Warn("chat", "remove empty thread failed", map[string]interface{}{"thread_id": thread.ThreadID, "error": delErr})
		}
		return false, err
	}
	conv.ThreadID = thread.ThreadID
	return true, nil
}

// StartNewConversation drops the current thread and display history. The
// next question creates a new thread.
func (s *ChatService) StartNewConversation(ctx context.Context, conv *Conversation, documentID string) error {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if documentID != "" && conv.IsNewConversation(documentID) {
		return s.openDocument(ctx, conv, documentID)
	}
	conv.reset()
	return nil
}

// ResumeThread continues a stored thread: its document becomes current and
// its log becomes the display history.
func (s *ChatService) ResumeThread(ctx context.Context, conv *Conversation, threadID string) error {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	thread, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	messages, err := s.threads.Messages(ctx, threadID)
	if err != nil {
		return err
	}
	if err := s.openDocument(ctx, conv, thread.PDFFileID); err != nil {
		return err
	}
	conv.ThreadID = thread.ThreadID
	conv.History = messages
	s.log.Debug("chat", "thread resumed", map[string]interface{}{"session_id": conv.SessionID, "thread_id": threadID})
	return nil
}

func (s *ChatService) openDocument(ctx context.Context, conv *Conversation, documentID string) error {
	doc, chunks, err := s.documents.LoadChunks(ctx, documentID)
	if err != nil {
		return err
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	conv.DocumentID = doc.FileID
	conv.DocumentName = doc.Filename
	conv.chunks = chunks
	conv.reset()
	return nil
}

func (s *ChatService) answer(ctx context.Context, filename string, chunks []model.Chunk, question string) (string, []model.Source) {
	ranked := s.ranker.Rank(question, chunks)
	if len(ranked) == 0 {
		return NoRelevantContentAnswer, []model.Source{}
	}

	sources := make([]model.Source, 0, len(ranked))
	contents := make([]string, 0, len(ranked))
	for _, chunk := range ranked {
		contents = append(contents, chunk.Content)
		sources = append(sources, model.Source{
			Filename:   filename,
			PageNumber: chunk.PageNumber,
			Content:    chunk.Content,
		})
	}

	answer, err := s.generator.Generate(ctx, buildPrompt(question, contents))
	if err != nil {
		s.log.Warn("chat", "answer generation failed", map[string]interface{}{"error": err})
		return fmt.Sprintf("Error generating answer: %v", err), sources
	}
	return strings.TrimSpace(answer), sources
}

func buildPrompt(question string, contents []string) string {
	var b strings.Builder
	b.WriteString("Based on the following PDF content, please answer the user's question.\n")
	b.WriteString("If the answer is not available in the provided content, please say so.\n\n")
	b.WriteString("Context from PDF:\n")
	b.WriteString(strings.Join(contents, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nPlease provide a comprehensive answer based only on the information provided in the context.")
	return b.String()
}
