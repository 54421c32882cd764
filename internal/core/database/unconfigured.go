package db

import (
	"context"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

var _ core.IndexStore = UnconfiguredStore{}

// UnconfiguredStore stands in when no index backend is configured.
// Every operation returns core.ErrStoreUnavailable.
type UnconfiguredStore struct{}

func (UnconfiguredStore) Configured() bool { return false }

func (UnconfiguredStore) InsertPaper(context.Context, *models.Paper) error {
	return core.ErrStoreUnavailable
}

func (UnconfiguredStore) InsertChunks(context.Context, string, string, []models.IndexRecord) error {
	return core.ErrStoreUnavailable
}

func (UnconfiguredStore) KeywordSearch(context.Context, string, int) ([]models.Paper, error) {
	return nil, core.ErrStoreUnavailable
}

func (UnconfiguredStore) VectorSearch(context.Context, []float32, int, string) ([]models.SearchHit, error) {
	return nil, core.ErrStoreUnavailable
}

func (UnconfiguredStore) GetPaper(context.Context, string) (*models.Paper, error) {
	return nil, core.ErrStoreUnavailable
}

func (UnconfiguredStore) DeletePaper(context.Context, string) error {
	return core.ErrStoreUnavailable
}

func (UnconfiguredStore) Stats(context.Context) (models.IndexStats, error) {
	return models.IndexStats{}, core.ErrStoreUnavailable
}

func (UnconfiguredStore) Close() error { return nil }
