package db

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

const defaultSearchLimit = 20

// cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// floatsToBytes encodes a vector as little-endian float32s.
func floatsToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloats(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// checkRecords validates a chunk batch before it touches a store: all vectors
// present and of one dimension. It returns that dimension.
func checkRecords(paperID string, records []models.IndexRecord) (int, error) {
	dim := len(records[0].Embedding)
	if dim == 0 {
		return 0, fmt.Errorf("%w: record %d of %s has no embedding", core.ErrStoreWrite, records[0].Position, paperID)
	}
	for _, r := range records {
		if r.PaperID != paperID {
			return 0, fmt.Errorf("%w: record %s belongs to %s, not %s", core.ErrStoreWrite, r.ID, r.PaperID, paperID)
		}
		if len(r.Embedding) != dim {
			return 0, fmt.Errorf("%w: dimension %d at position %d, want %d", core.ErrMixedEmbeddings, len(r.Embedding), r.Position, dim)
		}
	}
	return dim, nil
}

// checkModel rejects vectors that do not match the collection's model and dimension.
// An empty storedModel means the collection has no vectors yet.
func checkModel(storedModel string, storedDim int, model string, dim int) error {
	if storedModel == "" {
		return nil
	}
	if storedModel != model || storedDim != dim {
		return fmt.Errorf("%w: collection uses %s/%d, got %s/%d", core.ErrMixedEmbeddings, storedModel, storedDim, model, dim)
	}
	return nil
}

func encodeAuthors(authors []string) (string, error) {
	if authors == nil {
		authors = []string{}
	}
	b, err := json.Marshal(authors)
	if err != nil {
		return "", fmt.Errorf("encode authors: %w", err)
	}
	return string(b), nil
}

func decodeAuthors(s string) []string {
	var out []string
	if s == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
