package core

import (
	"context"
	"io"
	"path/filepath"

	"github.com/markdave123-py/paperdex/internal/models"
)

// IndexStore persists papers and chunk embeddings.
// It abstracts Postgres/pgvector, sqlite and memory so higher layers never depend on a specific DB.
// When no store is configured every method returns ErrStoreUnavailable.
type IndexStore interface {
	InsertPaper(ctx context.Context, paper *models.Paper) error
	// InsertChunks writes all records or none. model names the embedding model of the vectors.
	InsertChunks(ctx context.Context, paperID string, model string, records []models.IndexRecord) error

	// KeywordSearch is a case-insensitive substring match on the title.
	KeywordSearch(ctx context.Context, query string, limit int) ([]models.Paper, error)
	// VectorSearch returns the k most cosine-similar records, best first, ties by insertion order.
	// An empty paperID searches every paper.
	VectorSearch(ctx context.Context, query []float32, k int, paperID string) ([]models.SearchHit, error)

	GetPaper(ctx context.Context, id string) (*models.Paper, error)
	// DeletePaper removes the paper and all of its chunks, or nothing.
	DeletePaper(ctx context.Context, id string) error
	Stats(ctx context.Context) (models.IndexStats, error)

	Close() error
}

// MetadataProvider resolves an external identifier into a Paper with its PDF URL.
type MetadataProvider interface {
	GetPaper(ctx context.Context, id string) (*models.Paper, error)
}

// ObjectClient defines interactions with S3 or any object storage.
// Used to archive downloaded PDFs; abstract so AWS can be swapped for MinIO, GCS, etc.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// StoreConfigured reports whether s has a real backend behind it.
// Placeholder stores implement Configured() bool and return false.
func StoreConfigured(s IndexStore) bool {
	if s == nil {
		return false
	}
	if c, ok := s.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

// ArchiveKey is the object key under which a downloaded artifact is archived.
func ArchiveKey(localPath string) string {
	return "papers/" + filepath.Base(localPath)
}

// PaperSearcher finds candidate papers in an external catalogue.
type PaperSearcher interface {
	Search(ctx context.Context, query string, year, limit int) ([]models.Paper, error)
}
