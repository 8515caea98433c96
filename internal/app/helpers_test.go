package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"docchat/internal/model"
	"docchat/internal/pkg/logger"
	"docchat/internal/repository"
	"docchat/internal/storage"
)

// fakeExtractor splits the document body on form feeds, one page per part.
// A body starting with "broken" fails extraction.
type fakeExtractor struct{}

func (fakeExtractor) ExtractPages(r io.Reader) ([]model.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	body := string(data)
	if strings.HasPrefix(body, "broken") {
		return nil, errors.Join(model.ErrExtraction, errors.New("malformed xref"))
	}
	parts := strings.Split(body, "\f")
	pages := make([]model.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, model.Page{PageNumber: i + 1, Content: strings.TrimSpace(part)})
	}
	return pages, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mapCache struct {
	mu    sync.Mutex
	items map[string][]model.Message
	hits  int
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string][]model.Message{}}
}

func (c *mapCache) GetMessages(_ context.Context, threadID string) ([]model.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, ok := c.items[threadID]
	if ok {
		c.hits++
	}
	return msgs, ok, nil
}

func (c *mapCache) SetMessages(_ context.Context, threadID string, messages []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[threadID] = messages
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, threadIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range threadIDs {
		delete(c.items, id)
	}
	return nil
}

type fixture struct {
	docs      *DocumentService
	threads   *ThreadService
	chat      *ChatService
	generator *fakeGenerator
	publisher *recordingPublisher
	cache     *mapCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	blobs, err := storage.NewLocalStore(dir + "/uploads")
	require.NoError(t, err)
	fileRepo, err := repository.NewFileRepository(dir+"/data", blobs)
	require.NoError(t, err)
	threadRepo, err := repository.NewJSONThreadRepository(dir + "/data/threads")
	require.NoError(t, err)

	log := logger.NewNop()
	f := &fixture{
		generator: &fakeGenerator{answer: "  The revenue was 10M.  "},
		publisher: &recordingPublisher{},
		cache:     newMapCache(),
	}
	f.threads = NewThreadService(threadRepo, f.cache, f.publisher, log)
	f.docs = NewDocumentService(fileRepo, f.threads, fakeExtractor{}, f.publisher, log, DocumentServiceConfig{MaxUploadBytes: 1024, ChunkSize: 1000})
	f.chat = NewChatService(f.docs, f.threads, f.generator, log, 5)
	return f
}

func (f *fixture) upload(t *testing.T, name, body string) *model.Document {
	t.Helper()
	doc, err := f.docs.Upload(context.Background(), name, []byte(body))
	require.NoError(t, err)
	return doc
}
