package retrieval

import (
	"sort"
	"strings"

	"docchat/internal/model"
)

const DefaultTopK = 5

// Ranker scores chunks by the share of distinct query tokens they contain.
type Ranker struct {
	TopK int
}

func NewRanker(topK int) *Ranker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Ranker{TopK: topK}
}

// Rank returns at most TopK chunks ordered by score, highest first. Chunks
// that share no token with the query are left out; equal scores keep chunk
// order. An empty result means nothing relevant was found.
func (r *Ranker) Rank(query string, chunks []model.Chunk) []model.RankedChunk {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}

	var scored []model.RankedChunk
	for _, chunk := range chunks {
		overlap := 0
		for token := range tokenSet(chunk.Content) {
			if _, ok := queryTokens[token]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		scored = append(scored, model.RankedChunk{
			Chunk: chunk,
			Score: float64(overlap) / float64(len(queryTokens)),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > r.TopK {
		scored = scored[:r.TopK]
	}
	return scored
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
