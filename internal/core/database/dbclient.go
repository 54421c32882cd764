package db

import (
	"context"
	"fmt"
	"log"

	"github.com/markdave123-py/paperdex/internal/config"
	"github.com/markdave123-py/paperdex/internal/core"
)

// NewIndexStore builds the store selected by cfg.IndexBackend.
// "none" yields an UnconfiguredStore so the pipeline can degrade instead of failing.
func NewIndexStore(ctx context.Context, cfg *config.Config) (core.IndexStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("index store configuration is nil")
	}
	switch cfg.IndexBackend {
	case config.IndexPostgres:
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, cfg.SslCertPath)
		if err != nil {
			return nil, err
		}
		log.Println("IndexStore: postgres ready")
		return s, nil
	case config.IndexSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("IndexStore: sqlite ready at %s", s.Path())
		return s, nil
	case config.IndexMemory:
		log.Println("IndexStore: in-memory index, contents are lost on exit")
		return NewMemoryStore(), nil
	case config.IndexNone, "":
		log.Println("IndexStore: no index backend configured, indexing will be skipped")
		return UnconfiguredStore{}, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}
