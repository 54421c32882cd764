package ingestion_engine

import (
	"fmt"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

// ChunkText splits text into overlapping windows of size code points.
//
// size:     window length in characters, must be > 0.
// overlap:  characters shared with the previous window, 0 <= overlap < size.
//
// Each window spans [start, min(start+size, len)); the next window starts at end-overlap.
// Dropping the first overlap characters of every window but the first and
// concatenating the rest gives back text exactly.
func ChunkText(text string, size, overlap int) ([]models.Chunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", core.ErrInvalidChunking, size, overlap)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	chunks := make([]models.Chunk, 0, ChunkCount(n, size, overlap))
	start := 0
	for pos := 0; ; pos++ {
		end := min(start+size, n)
		s := string(runes[start:end])
		chunks = append(chunks, models.Chunk{
			Position:   pos,
			Start:      start,
			End:        end,
			Text:       s,
			TokenCount: approxTokens(s),
		})
		if end == n {
			break
		}
		start = end - overlap
	}
	return chunks, nil
}

// ChunkCount is the number of windows ChunkText produces for a text of n characters.
func ChunkCount(n, size, overlap int) int {
	if n <= 0 {
		return 0
	}
	step := size - overlap
	rest := max(n-overlap, 0)
	return max((rest+step-1)/step, 1)
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
