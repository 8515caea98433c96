// Package retrieval turns extracted pages into chunks and ranks them
// against a question by keyword overlap.
package retrieval

import (
	"strings"
	"unicode/utf8"

	"docchat/internal/model"
)

const DefaultChunkSize = 1000

// Chunker splits page text into chunks of at most Size characters.
type Chunker struct {
	Size int
}

func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{Size: size}
}

// Chunk never merges text across pages. Chunk ids run across the whole
// document. A page that fits the budget is kept verbatim; longer pages are
// rebuilt from their whitespace-delimited words. A single word longer than
// the budget becomes a chunk of its own.
func (c *Chunker) Chunk(pages []model.Page) []model.Chunk {
	var chunks []model.Chunk
	nextID := 0
	emit := func(page int, content string) {
		chunks = append(chunks, model.Chunk{ChunkID: nextID, PageNumber: page, Content: content})
		nextID++
	}

	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			continue
		}
		if utf8.RuneCountInString(page.Content) <= c.Size {
			emit(page.PageNumber, page.Content)
			continue
		}

		var current []string
		length := 0
		for _, word := range strings.Fields(page.Content) {
			wordLen := utf8.RuneCountInString(word)
			if len(current) > 0 && length+wordLen > c.Size {
				emit(page.PageNumber, strings.Join(current, " "))
				current = []string{word}
				length = wordLen + 1
				continue
			}
			current = append(current, word)
			length += wordLen + 1
		}
		if len(current) > 0 {
			emit(page.PageNumber, strings.Join(current, " "))
		}
	}
	return chunks
}
