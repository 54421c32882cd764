package ingestion_engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/paperdex/internal/models"
)

// Summary tallies a batch run. NotStarted counts identifiers never picked up
// because the batch was cancelled.
type Summary struct {
	Succeeded  int
	Skipped    int
	Failed     int
	NotStarted int
	Cancelled  bool
}

func (s Summary) String() string {
	line := fmt.Sprintf("succeeded=%d skipped=%d failed=%d", s.Succeeded, s.Skipped, s.Failed)
	if s.NotStarted > 0 {
		line += fmt.Sprintf(" not_started=%d", s.NotStarted)
	}
	return line
}

func (s *Summary) Add(o Outcome) {
	switch o.Status {
	case StatusDone:
		s.Succeeded++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// ReadIDs parses the batch input format: one identifier per line, blank lines ignored.
func ReadIDs(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ids: %w", err)
	}
	return ids, nil
}

// IngestIDs resolves every identifier through the metadata provider and runs the
// pipeline for each on a pool of cfg.Workers goroutines.
// One document failing never aborts the batch. report is called once per finished
// document, never concurrently, and may be nil.
func (i *DocumentIngestor) IngestIDs(ctx context.Context, ids []string, opts Options, report func(Outcome)) Summary {
	var (
		mu  sync.Mutex
		sum Summary
	)
	finish := func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		sum.Add(o)
		if report != nil {
			report(o)
		}
	}
	notStarted := func(n int) {
		mu.Lock()
		defer mu.Unlock()
		sum.NotStarted += n
	}

	var g errgroup.Group
	g.SetLimit(max(i.cfg.Workers, 1))

	for n, id := range ids {
		if ctx.Err() != nil {
			notStarted(len(ids) - n)
			break
		}
		// g.Go blocks for a free slot; the batch may be cancelled meanwhile
		g.Go(func() error {
			if ctx.Err() != nil {
				notStarted(1)
				return nil
			}
			finish(i.ingestID(ctx, id, opts))
			return nil
		})
	}
	_ = g.Wait()

	sum.Cancelled = ctx.Err() != nil
	log.Printf("DocumentIngestor: batch of %d finished: %s", len(ids), sum)
	return sum
}

func (i *DocumentIngestor) ingestID(ctx context.Context, id string, opts Options) Outcome {
	paper, err := i.resolve(ctx, id)
	if err != nil {
		out := Outcome{PaperID: id, Stage: StageFetching}
		return out.fail(err)
	}
	log.Printf("DocumentIngestor: Processing paper %s (%s)", paper.ID, paper.Title)
	return i.ProcessPaper(ctx, paper, opts)
}

func (i *DocumentIngestor) resolve(ctx context.Context, id string) (*models.Paper, error) {
	if i.meta == nil {
		return nil, fmt.Errorf("resolve %s: no metadata provider configured", id)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.cfg.ResolveTimeout)
	defer cancel()

	paper, err := i.meta.GetPaper(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	return paper, nil
}
