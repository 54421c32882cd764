// Package cli implements the paperdex command line.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/paperdex/internal/core/ingestion_engine"
	"github.com/markdave123-py/paperdex/internal/services"
)

// Deps are the services the commands run against.
type Deps struct {
	Ingestor  ingestion_engine.Ingestor
	Library   *services.LibraryService
	Retrieval *services.RetrievalService
}

// NewRootCmd builds the command tree. Each invocation gets its own search session.
func NewRootCmd(d Deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "paperdex",
		Short: "Download and index scholarly papers",
		Long: `paperdex downloads paper PDFs, extracts their text, and indexes
overlapping chunks with embeddings for keyword and semantic search.`,
		SilenceUsage: true,
	}

	sess := services.NewSession()

	root.AddCommand(
		newIngestCmd(d),
		newBatchCmd(d),
		newURLCmd(d),
		newSearchCmd(d, sess),
		newLibraryCmd(d),
		newDeleteCmd(d),
		newStatsCmd(d),
		newAskCmd(d),
	)
	return root
}

// printOutcome writes one line per finished document.
func printOutcome(cmd *cobra.Command, o ingestion_engine.Outcome) {
	label := o.PaperID
	if o.Title != "" {
		label = fmt.Sprintf("%s %q", o.PaperID, o.Title)
	}
	switch o.Status {
	case ingestion_engine.StatusDone:
		cmd.Printf("[done]    %s: %d chunks indexed, saved to %s\n", label, o.Chunks, o.Artifact.Path)
	case ingestion_engine.StatusSkipped:
		where := ""
		if o.Artifact != nil {
			where = ", saved to " + o.Artifact.Path
		}
		cmd.Printf("[skipped] %s: %v%s\n", label, o.Reason, where)
	default:
		retry := ""
		if o.Retryable {
			retry = " (retryable)"
		}
		cmd.Printf("[failed]  %s at %s: %v%s\n", label, o.Stage, o.Reason, retry)
	}
}

func summaryErr(s ingestion_engine.Summary) error {
	if s.Cancelled {
		return fmt.Errorf("interrupted, %d documents not started", s.NotStarted)
	}
	if s.Failed > 0 {
		return fmt.Errorf("%d documents failed", s.Failed)
	}
	return nil
}

// parseSelection turns "1,3, 5" into positions.
func parseSelection(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("empty selection")
	}
	return out, nil
}
