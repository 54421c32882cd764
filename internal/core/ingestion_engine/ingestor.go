package ingestion_engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/markdave123-py/paperdex/internal/models"
)

type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(paper models.Paper, opts Options)
	ProcessPaper(ctx context.Context, paper *models.Paper, opts Options) Outcome
	IngestIDs(ctx context.Context, ids []string, opts Options, report func(Outcome)) Summary
}

var _ Ingestor = (*DocumentIngestor)(nil)

// PaperFromURL describes a paper known only by its PDF URL.
// The ID is a name-based UUID of the URL, so the same URL always maps to the same paper.
func PaperFromURL(url, title string, year int, authors []string) models.Paper {
	return models.Paper{
		ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String(),
		Title:   title,
		Year:    year,
		Authors: authors,
		PDFURL:  url,
	}
}
