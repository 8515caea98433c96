package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsvc "docchat/internal/app"
	"docchat/internal/config"
	"docchat/internal/model"
	"docchat/internal/pkg/jwtutil"
	"docchat/internal/pkg/logger"
	"docchat/internal/repository"
	"docchat/internal/storage"
)

type textExtractor struct{}

func (textExtractor) ExtractPages(r io.Reader) ([]model.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return []model.Page{{PageNumber: 1, Content: string(data)}}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(context.Context, string) (string, error) {
	return "answer", nil
}

// setupTestServices wires file-backed services under a temp dir and returns
// the chat service for seeding threads.
func setupTestServices(t *testing.T) *appsvc.ChatService {
	t.Helper()
	dir := t.TempDir()

	blobs, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	files, err := repository.NewFileRepository(filepath.Join(dir, "data"), blobs)
	require.NoError(t, err)
	threads, err := repository.NewJSONThreadRepository(filepath.Join(dir, "data", "threads"))
	require.NoError(t, err)

	log := logger.NewNop()
	threadService = appsvc.NewThreadService(threads, nil, nil, log)
	documentService = appsvc.NewDocumentService(files, threadService, textExtractor{}, nil, log, appsvc.DocumentServiceConfig{MaxUploadBytes: 1 << 20, ChunkSize: 1000})
	appConfig = &config.Config{Auth: config.AuthConfig{JWTSecret: "cli-secret", JWTExpireMinute: 30}}
	documentFilter = ""
	tokenTTL = 0

	t.Cleanup(func() {
		documentService, threadService, appConfig = nil, nil, nil
		rootCmd.SetArgs(nil)
	})
	return appsvc.NewChatService(documentService, threadService, echoGenerator{}, log, 5)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func seedThread(t *testing.T, chat *appsvc.ChatService, filename, question string) (*model.Document, string) {
	t.Helper()
	ctx := context.Background()
	doc, err := documentService.Upload(ctx, filename, []byte("Quarterly revenue grew strongly."))
	require.NoError(t, err)
	result, err := chat.Ask(ctx, appsvc.NewConversation("s-"+filename), doc.FileID, question)
	require.NoError(t, err)
	return doc, result.ThreadID
}

func TestRootCmdHasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "threads")
	assert.Contains(t, names, "documents")
	assert.Contains(t, names, "token")
}

func TestThreadsSearchRequiresQuery(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "threads", "search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestThreadsListAndSearch(t *testing.T) {
	chat := setupTestServices(t)
	seedThread(t, chat, "report.pdf", "How did revenue develop?")

	out, err := execute(t, "threads", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "How did revenue develop?")
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "Total: 1 threads")

	out, err = execute(t, "threads", "search", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No threads found")
}

func TestThreadsRenameShowDelete(t *testing.T) {
	chat := setupTestServices(t)
	_, threadID := seedThread(t, chat, "report.pdf", "How did revenue develop?")

	out, err := execute(t, "threads", "rename", threadID, "Revenue", "review")
	require.NoError(t, err)
	assert.Contains(t, out, `"Revenue review"`)

	out, err = execute(t, "threads", "show", threadID)
	require.NoError(t, err)
	assert.Contains(t, out, "Thread: Revenue review (report.pdf)")
	assert.Contains(t, out, "A: answer")
	assert.Contains(t, out, "- page 1")

	_, err = execute(t, "threads", "delete", threadID)
	require.NoError(t, err)

	_, err = execute(t, "threads", "show", threadID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDocumentsDeleteRemovesThreads(t *testing.T) {
	chat := setupTestServices(t)
	doc, _ := seedThread(t, chat, "report.pdf", "How did revenue develop?")
	seedThread(t, chat, "other.pdf", "Any revenue notes?")

	out, err := execute(t, "documents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 2 documents")

	out, err = execute(t, "documents", "delete", doc.FileID)
	require.NoError(t, err)
	assert.Contains(t, out, "and 1 threads")

	out, err = execute(t, "threads", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Threads:  1")

	out, err = execute(t, "threads", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 orphaned threads")
}

func TestThreadsListFiltersByDocument(t *testing.T) {
	chat := setupTestServices(t)
	doc, _ := seedThread(t, chat, "report.pdf", "First question")
	seedThread(t, chat, "other.pdf", "Second question")

	out, err := execute(t, "threads", "list", "--document", doc.FileID)
	require.NoError(t, err)
	assert.Contains(t, out, "First question")
	assert.NotContains(t, out, "Second question")
}

func TestTokenIssuesParseableToken(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "token", "ops", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := jwtutil.ParseToken("cli-secret", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt.Time, time.Minute)
}
