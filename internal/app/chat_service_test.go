package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
)

func TestAskCreatesThreadThenAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "report.pdf", "Revenue grew to 10M in 2023\fHeadcount stayed flat")
	conv := NewConversation("session-1")

	first, err := f.chat.Ask(ctx, conv, doc.FileID, "What was the revenue in 2023?")
	require.NoError(t, err)
	assert.True(t, first.NewThread)
	assert.NotEmpty(t, first.ThreadID)
	assert.Equal(t, "The revenue was 10M.", first.Answer)
	require.Len(t, first.Sources, 1)
	assert.Equal(t, model.Source{Filename: "report.pdf", PageNumber: 1, Content: "Revenue grew to 10M in 2023"}, first.Sources[0])

	second, err := f.chat.Ask(ctx, conv, doc.FileID, "And the headcount?")
	require.NoError(t, err)
	assert.False(t, second.NewThread)
	assert.Equal(t, first.ThreadID, second.ThreadID)

	thread, err := f.threads.Get(ctx, first.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, 2, thread.MessageCount)
	assert.Equal(t, "What was the revenue in 2023?", thread.Title)
	assert.Equal(t, doc.FileID, thread.PDFFileID)

	messages, err := f.threads.Messages(ctx, first.ThreadID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "And the headcount?", messages[1].Question)

	state := conv.Snapshot()
	assert.Equal(t, first.ThreadID, state.ThreadID)
	assert.Len(t, state.History, 2)
	assert.Equal(t, []model.EventType{
		model.EventDocumentUploaded,
		model.EventThreadCreated,
		model.EventMessageAppended,
		model.EventMessageAppended,
	}, f.publisher.types())
}

func TestAskPromptCarriesChunksAndQuestion(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "report.pdf", "alpha beta\fgamma alpha")

	_, err := f.chat.Ask(context.Background(), NewConversation("s"), doc.FileID, "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls())

	prompt := f.generator.prompts[0]
	assert.Contains(t, prompt, "Context from PDF:\nalpha beta\n\ngamma alpha")
	assert.Contains(t, prompt, "Question: alpha")
}

func TestAskWithoutRelevantContent(t *testing.T) {
	f := newFixture(t)
	doc := f.upload(t, "report.pdf", "Revenue grew")
	conv := NewConversation("s")

	result, err := f.chat.Ask(context.Background(), conv, doc.FileID, "weather forecast")
	require.NoError(t, err)
	assert.Equal(t, NoRelevantContentAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.True(t, result.NewThread)
	assert.Equal(t, 0, f.generator.calls())
}

func TestAskAbsorbsGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.generator.err = fmt.Errorf("quota exceeded: %w", model.ErrGeneration)
	doc := f.upload(t, "report.pdf", "Revenue grew")

	result, err := f.chat.Ask(context.Background(), NewConversation("s"), doc.FileID, "revenue")
	require.NoError(t, err)
	assert.Equal(t, "Error generating answer: quota exceeded: answer generation failed", result.Answer)
	assert.Len(t, result.Sources, 1)

	messages, err := f.threads.Messages(context.Background(), result.ThreadID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, result.Answer, messages[0].Answer)
}

func TestAskRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "report.pdf", "text")

	_, err := f.chat.Ask(ctx, NewConversation("s"), doc.FileID, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.chat.Ask(ctx, NewConversation("s"), "missing", "text")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.docs.SetStatus(ctx, doc.FileID, string(model.StatusSuccess))
	require.NoError(t, err)
	broken, err := f.docs.Upload(ctx, "broken.pdf", []byte("broken"))
	assert.Nil(t, broken)
	require.True(t, errors.Is(err, model.ErrExtraction))

	docs, err := f.docs.List(ctx)
	require.NoError(t, err)
	var errored string
	for _, d := range docs {
		if d.Status == model.StatusError {
			errored = d.FileID
		}
	}
	require.NotEmpty(t, errored)
	_, err = f.chat.Ask(ctx, NewConversation("s"), errored, "text")
	assert.ErrorIs(t, err, ErrDocumentNotReady)
}

func TestSwitchingDocumentStartsNewThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.upload(t, "a.pdf", "alpha")
	second := f.upload(t, "b.pdf", "alpha")
	conv := NewConversation("s")

	r1, err := f.chat.Ask(ctx, conv, first.FileID, "alpha")
	require.NoError(t, err)
	assert.True(t, conv.IsNewConversation(second.FileID))
	assert.False(t, conv.IsNewConversation(first.FileID))

	r2, err := f.chat.Ask(ctx, conv, second.FileID, "alpha")
	require.NoError(t, err)
	assert.True(t, r2.NewThread)
	assert.NotEqual(t, r1.ThreadID, r2.ThreadID)

	state := conv.Snapshot()
	assert.Equal(t, second.FileID, state.DocumentID)
	assert.Equal(t, "b.pdf", state.DocumentName)
	assert.Len(t, state.History, 1)
}

func TestStartNewConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "a.pdf", "alpha")
	conv := NewConversation("s")

	r1, err := f.chat.Ask(ctx, conv, doc.FileID, "alpha")
	require.NoError(t, err)

	require.NoError(t, f.chat.StartNewConversation(ctx, conv, doc.FileID))
	state := conv.Snapshot()
	assert.Empty(t, state.ThreadID)
	assert.Empty(t, state.History)
	assert.Equal(t, doc.FileID, state.DocumentID)

	r2, err := f.chat.Ask(ctx, conv, doc.FileID, "alpha again")
	require.NoError(t, err)
	assert.True(t, r2.NewThread)
	assert.NotEqual(t, r1.ThreadID, r2.ThreadID)

	threads, err := f.threads.ForDocument(ctx, doc.FileID)
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}

func TestResumeThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "a.pdf", "alpha beta")

	original := NewConversation("s1")
	r1, err := f.chat.Ask(ctx, original, doc.FileID, "alpha")
	require.NoError(t, err)

	resumed := NewConversation("s2")
	require.NoError(t, f.chat.ResumeThread(ctx, resumed, r1.ThreadID))
	state := resumed.Snapshot()
	assert.Equal(t, r1.ThreadID, state.ThreadID)
	assert.Equal(t, doc.FileID, state.DocumentID)
	require.Len(t, state.History, 1)

	r2, err := f.chat.Ask(ctx, resumed, doc.FileID, "beta")
	require.NoError(t, err)
	assert.False(t, r2.NewThread)
	assert.Equal(t, r1.ThreadID, r2.ThreadID)

	assert.ErrorIs(t, f.chat.ResumeThread(ctx, resumed, "missing"), model.ErrNotFound)
}

func TestAskAfterDocumentDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "a.pdf", "alpha")
	conv := NewConversation("s")

	_, err := f.chat.Ask(ctx, conv, doc.FileID, "alpha")
	require.NoError(t, err)
	_, err = f.docs.Delete(ctx, doc.FileID)
	require.NoError(t, err)

	_, err = f.chat.Ask(ctx, conv, doc.FileID, "alpha")
	assert.ErrorIs(t, err, model.ErrNotFound)
	state := conv.Snapshot()
	assert.Empty(t, state.DocumentID)
	assert.Empty(t, state.ThreadID)
}

func TestAskRecoversWhenThreadDeletedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "report.pdf", "Revenue grew to 10M in 2023")
	conv := NewConversation("session-1")

	first, err := f.chat.Ask(ctx, conv, doc.FileID, "What was the revenue?")
	require.NoError(t, err)
	require.NoError(t, f.threads.Delete(ctx, first.ThreadID))

	again, err := f.chat.Ask(ctx, conv, doc.FileID, "Revenue once more?")
	require.NoError(t, err)
	assert.True(t, again.NewThread)
	assert.NotEqual(t, first.ThreadID, again.ThreadID)
	assert.Equal(t, 2, f.generator.calls())

	third, err := f.chat.Ask(ctx, conv, doc.FileID, "And the revenue trend?")
	require.NoError(t, err)
	assert.False(t, third.NewThread)
	assert.Equal(t, again.ThreadID, third.ThreadID)

	thread, err := f.threads.Get(ctx, again.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue once more?", thread.Title)
	assert.Equal(t, 2, thread.MessageCount)

	_, err = f.threads.Get(ctx, first.ThreadID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Len(t, conv.Snapshot().History, 2)
}

// appendFailingStore refuses every append.
type appendFailingStore struct {
	ThreadStore
}

func (appendFailingStore) AppendMessage(context.Context, string, string, string, []model.Source) error {
	return fmt.Errorf("disk full: %w", model.ErrStorage)
}

func TestAskRemovesThreadWhenFirstAppendFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.upload(t, "report.pdf", "Revenue grew to 10M in 2023")
	conv := NewConversation("session-1")
	f.threads.store = appendFailingStore{ThreadStore: f.threads.store}

	_, err := f.chat.Ask(ctx, conv, doc.FileID, "What was the revenue?")
	assert.ErrorIs(t, err, model.ErrStorage)

	assert.False(t, conv.HasThread())
	assert.Empty(t, conv.Snapshot().History)
	threads, err := f.threads.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads)
}
