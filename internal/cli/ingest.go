package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/paperdex/internal/core/ingestion_engine"
)

func newIngestCmd(d Deps) *cobra.Command {
	var noIndex bool
	cmd := &cobra.Command{
		Use:   "ingest [id...]",
		Short: "Download and index papers by catalogue ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIDs(cmd, d, args, noIndex)
		},
	}
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "download only, skip indexing")
	return cmd
}

func newBatchCmd(d Deps) *cobra.Command {
	var noIndex bool
	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Ingest every ID listed in a file, one per line",
		Long: `Reads newline-delimited paper IDs (blank lines ignored) and ingests
them on a bounded worker pool. Ctrl-C stops after the current stage of
each running document; documents not yet started are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open batch file: %w", err)
			}
			defer f.Close()

			ids, err := ingestion_engine.ReadIDs(f)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				cmd.Println("No IDs found.")
				return nil
			}
			return runIDs(cmd, d, ids, noIndex)
		},
	}
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "download only, skip indexing")
	return cmd
}

func runIDs(cmd *cobra.Command, d Deps, ids []string, noIndex bool) error {
	report := func(o ingestion_engine.Outcome) { printOutcome(cmd, o) }
	sum := d.Ingestor.IngestIDs(cmd.Context(), ids, ingestion_engine.Options{Index: !noIndex}, report)
	cmd.Println(sum.String())
	return summaryErr(sum)
}

func newURLCmd(d Deps) *cobra.Command {
	var (
		title   string
		year    int
		authors []string
		noIndex bool
	)
	cmd := &cobra.Command{
		Use:   "url [pdf-url]",
		Short: "Download and index a PDF from a direct URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paper := ingestion_engine.PaperFromURL(args[0], title, year, authors)
			progress := func(done, total int64) {
				if total > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r  %d/%d bytes", done, total)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r  %d bytes", done)
				}
			}
			out := d.Ingestor.ProcessPaper(cmd.Context(), &paper, ingestion_engine.Options{Index: !noIndex, Progress: progress})
			fmt.Fprintln(cmd.ErrOrStderr())
			printOutcome(cmd, out)
			if out.Status == ingestion_engine.StatusFailed {
				return fmt.Errorf("ingest failed: %w", out.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "paper title, used for the file name")
	cmd.Flags().IntVar(&year, "year", 0, "publication year")
	cmd.Flags().StringSliceVar(&authors, "author", nil, "author display name, repeatable, first author first")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "download only, skip indexing")
	return cmd
}
