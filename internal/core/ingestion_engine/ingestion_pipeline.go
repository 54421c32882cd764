package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/core/artifact"
	"github.com/markdave123-py/paperdex/internal/models"
)

// Stage is a step of the per-document state machine.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageExtracting Stage = "extracting"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageStoring    Stage = "storing"
	StageDone       Stage = "done"
)

// Status is the terminal state of one document.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

var (
	errIndexingDisabled = errors.New("indexing disabled")
	errNoText           = errors.New("no extractable text")
)

// Options controls one pipeline run.
type Options struct {
	// Index runs extraction, embedding and storage after the fetch.
	Index bool
	// Progress receives download progress. May be nil.
	Progress artifact.Progress
}

// Outcome is the per-document result reported to the caller.
// Stage is the last stage entered; Reason is set for skipped and failed documents.
type Outcome struct {
	PaperID   string
	Title     string
	Status    Status
	Stage     Stage
	Reason    error
	Retryable bool
	Artifact  *models.DownloadedArtifact
	Chunks    int
}

func (o Outcome) String() string {
	if o.Reason == nil {
		return fmt.Sprintf("%s: %s", o.PaperID, o.Status)
	}
	return fmt.Sprintf("%s: %s (%s: %v)", o.PaperID, o.Status, o.Stage, o.Reason)
}

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
// obj and meta are optional.
func NewDocumentIngestor(
	store core.IndexStore,
	fetcher Fetcher,
	extractor core.TextExtractor,
	emb core.EmbeddingProvider,
	obj core.ObjectClient,
	meta core.MetadataProvider,
	cfg *IngestConfig,
) *DocumentIngestor {
	if cfg == nil {
		cfg = DefaultIngestConfig()
	}
	return &DocumentIngestor{
		store: store, fetcher: fetcher, extractor: extractor, embedder: emb,
		obj: obj, meta: meta, cfg: cfg,
		jobs: make(chan job, 64),
	}
}

// Start runs numWorkers goroutines reading from the jobs channel.
// It orchestrates the pipeline that fetches, extracts, chunks, embeds and persists papers.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Println("DocumentIngestor: Worker shutting down.")
					return
				case j := <-i.jobs:
					log.Printf("DocumentIngestor: Processing paper %s by worker with ID %d", j.paper.ID, w)
					out := i.ProcessPaper(ctx, &j.paper, j.opts)
					log.Printf("DocumentIngestor: %s", out)
				}
			}
		}(w)
	}
}

// Enqueue schedules a paper for background ingestion.
// If the queue is full, this call will block until space frees up.
func (i *DocumentIngestor) Enqueue(paper models.Paper, opts Options) {
	i.jobs <- job{paper: paper, opts: opts}
}

// ProcessPaper runs Fetching → Extracting → Chunking → Embedding → Storing for one paper.
//
// Stages run on a context detached from ctx so an interrupt never lands mid-write;
// ctx is consulted between stages; a cancelled ctx ends the run as failed with ErrCancelled,
// Stage naming the last stage that completed.
// The downloaded file stays on disk whatever the indexing outcome.
func (i *DocumentIngestor) ProcessPaper(ctx context.Context, paper *models.Paper, opts Options) Outcome {
	out := Outcome{PaperID: paper.ID, Title: paper.Title}
	work := context.WithoutCancel(ctx)

	// Fetching
	out.Stage = StageFetching
	if paper.PDFURL == "" {
		return out.fail(core.ErrNoPDF)
	}
	art, err := i.fetcher.Fetch(work, paper.PDFURL, *paper, opts.Progress)
	if err != nil {
		return out.fail(err)
	}
	out.Artifact = art
	paper.LocalPath = art.Path
	i.archive(work, art)

	if !opts.Index {
		return out.skip(errIndexingDisabled)
	}
	if !core.StoreConfigured(i.store) {
		return out.skip(core.ErrStoreUnavailable)
	}
	if ctx.Err() != nil {
		return out.cancelled()
	}

	// Extracting
	out.Stage = StageExtracting
	text, err := i.extract(work, art.Path)
	if err != nil {
		return out.fail(err)
	}
	if ctx.Err() != nil {
		return out.cancelled()
	}

	// Chunking
	out.Stage = StageChunking
	chunks, err := ChunkText(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	if err != nil {
		return out.fail(err)
	}
	if len(chunks) == 0 {
		// keep the paper findable by title
		if err := i.storePaper(work, paper); err != nil {
			out.Stage = StageStoring
			return out.storeFailure(err)
		}
		return out.skip(errNoText)
	}
	if ctx.Err() != nil {
		return out.cancelled()
	}

	// Embedding
	out.Stage = StageEmbedding
	vectors, err := i.embed(work, chunks)
	if errors.Is(err, core.ErrEmbeddingUnavailable) {
		log.Printf("DocumentIngestor: %s indexed keyword-only: %v", paper.ID, err)
		if serr := i.storePaper(work, paper); serr != nil {
			out.Stage = StageStoring
			return out.storeFailure(serr)
		}
		return out.skip(err)
	}
	if err != nil {
		return out.fail(err)
	}
	if ctx.Err() != nil {
		return out.cancelled()
	}

	// Storing
	out.Stage = StageStoring
	if err := i.storePaper(work, paper); err != nil {
		return out.storeFailure(err)
	}
	if err := i.storeChunks(work, paper.ID, chunks, vectors); err != nil {
		return out.storeFailure(err)
	}

	out.Stage = StageDone
	out.Status = StatusDone
	out.Chunks = len(chunks)
	return out
}

func (i *DocumentIngestor) extract(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.ExtractTimeout)
	defer cancel()
	return i.extractor.Extract(ctx, path)
}

func (i *DocumentIngestor) embed(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.EmbedTimeout)
	defer cancel()

	texts := make([]string, len(chunks))
	for k, c := range chunks {
		texts[k] = c.Text
	}
	vectors, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d chunks", i.embedder.Name(), len(vectors), len(chunks))
	}
	return vectors, nil
}

func (i *DocumentIngestor) storePaper(ctx context.Context, paper *models.Paper) error {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.StoreTimeout)
	defer cancel()
	return i.store.InsertPaper(ctx, paper)
}

func (i *DocumentIngestor) storeChunks(ctx context.Context, paperID string, chunks []models.Chunk, vectors [][]float32) error {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.StoreTimeout)
	defer cancel()

	now := time.Now().UTC()
	records := make([]models.IndexRecord, len(chunks))
	for k, c := range chunks {
		records[k] = models.IndexRecord{
			ID:         uuid.NewString(),
			PaperID:    paperID,
			Position:   c.Position,
			Text:       c.Text,
			Embedding:  vectors[k],
			TokenCount: c.TokenCount,
			CreatedAt:  now,
		}
	}
	return i.store.InsertChunks(ctx, paperID, i.embedder.Name(), records)
}

// archive copies the fetched PDF to object storage. Failures are only logged.
func (i *DocumentIngestor) archive(ctx context.Context, art *models.DownloadedArtifact) {
	if i.obj == nil || i.cfg.ArchiveBucket == "" {
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		log.Printf("DocumentIngestor: archive %s: %v", art.Path, err)
		return
	}
	defer f.Close()

	url, err := i.obj.UploadFile(ctx, i.cfg.ArchiveBucket, core.ArchiveKey(art.Path), f, "application/pdf")
	if err != nil {
		log.Printf("DocumentIngestor: archive %s: %v", art.Path, err)
		return
	}
	log.Printf("DocumentIngestor: archived %s to %s", art.Paper.ID, url)
}

func (o Outcome) fail(err error) Outcome {
	o.Status = StatusFailed
	o.Reason = err
	o.Retryable = core.IsRetryable(err)
	return o
}

// cancelled ends the run after o.Stage completed successfully.
func (o Outcome) cancelled() Outcome {
	return o.fail(fmt.Errorf("%w after %s", core.ErrCancelled, o.Stage))
}

func (o Outcome) skip(reason error) Outcome {
	o.Status = StatusSkipped
	o.Reason = reason
	return o
}

// storeFailure maps a store error: an unconfigured store degrades, anything else fails.
func (o Outcome) storeFailure(err error) Outcome {
	if errors.Is(err, core.ErrStoreUnavailable) {
		return o.skip(err)
	}
	if !errors.Is(err, core.ErrStoreWrite) && !errors.Is(err, core.ErrMixedEmbeddings) {
		err = fmt.Errorf("%w: %w", core.ErrStoreWrite, err)
	}
	return o.fail(err)
}
