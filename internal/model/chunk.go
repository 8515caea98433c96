package model

// Page is the extracted text of one PDF page; PageNumber is 1-based.
type Page struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

// Chunk is derived from a document on load and never persisted on its own.
type Chunk struct {
	ChunkID    int    `json:"chunk_id"`
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

type RankedChunk struct {
	Chunk
	Score float64 `json:"score"`
}
