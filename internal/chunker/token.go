package chunker

import (
	"strings"

	"github.com/dgallion1/regingest/internal/doctree"
)

// EstimateTokens gives a rough token count from the word count. Indexer
// limits are expressed in tokens, so batching uses this rather than
// character length.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// ChunkTokens estimates the tokens a chunk costs once indexed, context
// prefix included.
func ChunkTokens(c doctree.Chunk) int {
	return EstimateTokens(c.Content())
}
