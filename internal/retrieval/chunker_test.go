package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
)

// wordsOfLength builds text of exactly n characters from 9-letter words.
func wordsOfLength(n int) string {
	var b strings.Builder
	for b.Len() < n {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("lorem1234")
	}
	return b.String()[:n]
}

func TestChunkReportExample(t *testing.T) {
	pages := []model.Page{
		{PageNumber: 1, Content: wordsOfLength(1200)},
		{PageNumber: 2, Content: wordsOfLength(300)},
	}

	chunks := NewChunker(1000).Chunk(pages)

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{chunks[0].ChunkID, chunks[1].ChunkID, chunks[2].ChunkID})
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 1, chunks[1].PageNumber)
	assert.Equal(t, 2, chunks[2].PageNumber)
	assert.LessOrEqual(t, len(chunks[0].Content), 1000)
	assert.Greater(t, len(chunks[0].Content), 990)
	assert.Equal(t, pages[1].Content, chunks[2].Content)
}

func TestChunkRespectsBudgetAndKeepsWords(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau upsilon"
	pages := []model.Page{{PageNumber: 3, Content: text}}

	for _, size := range []int{11, 12, 20, 33} {
		chunks := NewChunker(size).Chunk(pages)
		var words []string
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), size, "chunk %q exceeds %d", c.Content, size)
			assert.Equal(t, 3, c.PageNumber)
			words = append(words, strings.Fields(c.Content)...)
		}
		assert.Equal(t, strings.Fields(text), words)
	}
}

func TestChunkOversizedWordStandsAlone(t *testing.T) {
	long := strings.Repeat("x", 30)
	pages := []model.Page{{PageNumber: 1, Content: "tiny " + long + " end"}}

	chunks := NewChunker(10).Chunk(pages)

	require.Len(t, chunks, 3)
	assert.Equal(t, "tiny", chunks[0].Content)
	assert.Equal(t, long, chunks[1].Content)
	assert.Equal(t, "end", chunks[2].Content)
}

func TestChunkSkipsEmptyPagesAndNeverMergesPages(t *testing.T) {
	pages := []model.Page{
		{PageNumber: 1, Content: "first page"},
		{PageNumber: 2, Content: "   \n\t"},
		{PageNumber: 3, Content: ""},
		{PageNumber: 4, Content: "last page"},
	}

	chunks := NewChunker(1000).Chunk(pages)

	require.Len(t, chunks, 2)
	assert.Equal(t, model.Chunk{ChunkID: 0, PageNumber: 1, Content: "first page"}, chunks[0])
	assert.Equal(t, model.Chunk{ChunkID: 1, PageNumber: 4, Content: "last page"}, chunks[1])
}

func TestNewChunkerDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, NewChunker(0).Size)
}
