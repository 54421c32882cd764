// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/markdave123-py/paperdex/internal/config"
	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/core/artifact"
	db "github.com/markdave123-py/paperdex/internal/core/database"
	"github.com/markdave123-py/paperdex/internal/core/ingestion_engine"
	"github.com/markdave123-py/paperdex/internal/core/llm"
	"github.com/markdave123-py/paperdex/internal/core/metadata"
	objectclient "github.com/markdave123-py/paperdex/internal/core/object-client"
	"github.com/markdave123-py/paperdex/internal/services"
)

type App struct {
	Config       *config.Config
	Store        core.IndexStore
	ObjectClient core.ObjectClient
	Embedder     core.EmbeddingProvider
	LLM          core.LLMProvider
	Catalogue    *metadata.OpenAlexClient
	DocProcessor *ingestion_engine.DocumentIngestor
	Library      *services.LibraryService
	Retrieval    *services.RetrievalService
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewIndexStore(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Index store initialized and ready.")

	objClient, err := objectclient.NewArchive(appCtx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	embedder, err := llm.NewEmbeddingProvider(appCtx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var llmProvider core.LLMProvider = llm.NoLLM{}
	if cfg.AIAPIKey != "" {
		g, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
		}
		llmProvider = g
	}

	fetcher, err := artifact.NewFetcher(artifact.Config{
		Dir:          cfg.DownloadDir,
		Timeout:      cfg.FetchTimeout,
		Disambiguate: cfg.DownloadDisambiguate,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	useReadability := false
	extractor := ingestion_engine.ChainExtractor{
		ingestion_engine.NewPDFExtractor(),
		ingestion_engine.NewDocconvExtractor(useReadability),
	}

	catalogue := metadata.NewOpenAlexClient("", cfg.OpenAlexEmail)

	ingCfg := ingestion_engine.DefaultIngestConfig()
	ingCfg.ChunkSize = cfg.ChunkSize
	ingCfg.ChunkOverlap = cfg.ChunkOverlap
	ingCfg.Workers = cfg.IngestWorkers
	ingCfg.ArchiveBucket = cfg.BucketName
	ingCfg.ResolveTimeout = cfg.FetchTimeout

	docIngestor := ingestion_engine.NewDocumentIngestor(store, fetcher, extractor, embedder, objClient, catalogue, ingCfg)

	library := services.NewLibraryService(store, catalogue, objClient, cfg.BucketName)
	retrieval := services.NewRetrievalService(store, embedder, llmProvider)

	server := NewServer(cfg, docIngestor, catalogue, library, retrieval)

	return &App{
		Config:       cfg,
		Store:        store,
		ObjectClient: objClient,
		Embedder:     embedder,
		LLM:          llmProvider,
		Catalogue:    catalogue,
		DocProcessor: docIngestor,
		Library:      library,
		Retrieval:    retrieval,
		Server:       server,
	}, nil
}

func (a *App) Close() {
	for _, c := range []any{a.Embedder, a.LLM} {
		if closer, ok := c.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
