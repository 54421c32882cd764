package ingestion_engine

import (
	"context"
	"time"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/core/artifact"
	"github.com/markdave123-py/paperdex/internal/models"
)

// IngestConfig tunes the pipeline.
//
// ChunkSize:      characters per chunk (e.g., 1000).
// ChunkOverlap:   characters shared between consecutive chunks (e.g., 200).
// Workers:        documents processed concurrently in a batch.
// ArchiveBucket:  S3 bucket that receives a copy of every fetched PDF; empty disables archival.
// *Timeout:       per-stage upper bounds. Fetch timeouts live on the fetcher.
type IngestConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	Workers        int
	ArchiveBucket  string
	ResolveTimeout time.Duration
	ExtractTimeout time.Duration
	EmbedTimeout   time.Duration
	StoreTimeout   time.Duration
}

// DefaultIngestConfig mirrors the defaults of the environment config.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		Workers:        3,
		ResolveTimeout: 30 * time.Second,
		ExtractTimeout: 2 * time.Minute,
		EmbedTimeout:   5 * time.Minute,
		StoreTimeout:   time.Minute,
	}
}

// Fetcher downloads an artifact for a paper. Implemented by *artifact.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string, paper models.Paper, progress artifact.Progress) (*models.DownloadedArtifact, error)
}

// job is one queued paper for the background workers.
type job struct {
	paper models.Paper
	opts  Options
}

// DocumentIngestor orchestrates the ingestion pipeline:
//
// store:     persistence for papers and chunk vectors (may be unconfigured).
// fetcher:   downloads PDFs to the download directory.
// extractor: PDF to plain text.
// embedder:  embedding provider (Gemini/Ollama/unavailable).
// obj:       optional object storage for archiving fetched PDFs.
// meta:      resolves identifiers for batch ingestion.
// cfg:       runtime tuning knobs for the pipeline.
// jobs:      in-memory queue of papers to process (easy to swap with Kafka later).
type DocumentIngestor struct {
	store     core.IndexStore
	fetcher   Fetcher
	extractor core.TextExtractor
	embedder  core.EmbeddingProvider
	obj       core.ObjectClient
	meta      core.MetadataProvider
	cfg       *IngestConfig
	jobs      chan job
}
