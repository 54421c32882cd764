package models

import (
	"time"
)

// Paper is a scholarly work as returned by the metadata provider.
// Only LocalPath changes after creation, once the artifact is on disk.
type Paper struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Year      int       `db:"year" json:"year"`
	Authors   []string  `db:"authors" json:"authors"` // display names, in byline order
	Abstract  string    `db:"abstract" json:"abstract,omitempty"`
	DOI       string    `db:"doi" json:"doi,omitempty"`
	PDFURL    string    `db:"-" json:"pdf_url,omitempty"`
	LocalPath string    `db:"local_path" json:"local_path,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DownloadedArtifact is a Paper whose PDF has been written to disk.
type DownloadedArtifact struct {
	Paper  Paper  `json:"paper"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Chunk is one overlapping window of a document's extracted text.
// Start and End are code point offsets into that text.
type Chunk struct {
	Position   int    `json:"position"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// IndexRecord is the persisted (paper, chunk text, embedding) tuple.
type IndexRecord struct {
	ID         string    `db:"id" json:"id"`
	PaperID    string    `db:"paper_id" json:"paper_id"`
	Position   int       `db:"position" json:"position"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"embedding,omitempty"`
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SearchHit is an IndexRecord scored against a query vector.
type SearchHit struct {
	Record IndexRecord `json:"record"`
	Title  string      `json:"title"`
	Score  float64     `json:"score"`
}

// IndexStats aggregates the contents of an index store.
type IndexStats struct {
	PaperCount     int    `json:"paper_count"`
	ChunkCount     int    `json:"chunk_count"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	Dimension      int    `json:"dimension,omitempty"`
}
