package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

// LibraryService is the read/delete side of the index plus catalogue discovery.
type LibraryService struct {
	store    core.IndexStore
	searcher core.PaperSearcher
	storage  core.ObjectClient
	bucket   string
}

// NewLibraryService wires the service. searcher and storage may be nil.
func NewLibraryService(store core.IndexStore, searcher core.PaperSearcher, storage core.ObjectClient, bucket string) *LibraryService {
	return &LibraryService{store: store, searcher: searcher, storage: storage, bucket: bucket}
}

// Discover searches the external catalogue and remembers the results in sess
// so a later selection can refer to them by number.
func (s *LibraryService) Discover(ctx context.Context, sess *Session, query string, year, limit int) ([]models.Paper, error) {
	if s.searcher == nil {
		return nil, errors.New("no paper catalogue configured")
	}
	papers, err := s.searcher.Search(ctx, query, year, limit)
	if err != nil {
		return nil, err
	}
	sess.SetResults(papers)
	return papers, nil
}

// Find is a case-insensitive title search over indexed papers.
func (s *LibraryService) Find(ctx context.Context, query string, limit int) ([]models.Paper, error) {
	return s.store.KeywordSearch(ctx, query, limit)
}

func (s *LibraryService) Get(ctx context.Context, id string) (*models.Paper, error) {
	return s.store.GetPaper(ctx, id)
}

func (s *LibraryService) Stats(ctx context.Context) (models.IndexStats, error) {
	return s.store.Stats(ctx)
}

// Delete removes the paper and its chunks from the index, then its local file
// and archived copy. Cleanup of the file and archive is best effort.
func (s *LibraryService) Delete(ctx context.Context, id string) error {
	paper, err := s.store.GetPaper(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePaper(ctx, id); err != nil {
		return err
	}
	if paper.LocalPath == "" {
		return nil
	}
	if err := os.Remove(paper.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("LibraryService: remove %s: %v", paper.LocalPath, err)
	}
	if s.storage != nil && s.bucket != "" {
		if err := s.storage.DeleteFile(ctx, s.bucket, core.ArchiveKey(paper.LocalPath)); err != nil {
			log.Printf("LibraryService: %v", fmt.Errorf("delete archived %s: %w", id, err))
		}
	}
	return nil
}
