package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/paperdex/internal/core/ingestion_engine"
	"github.com/markdave123-py/paperdex/internal/models"
	"github.com/markdave123-py/paperdex/internal/services"
)

func newSearchCmd(d Deps, sess *services.Session) *cobra.Command {
	var (
		year    int
		limit   int
		pick    string
		noIndex bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the OpenAlex catalogue",
		Long: `Searches OpenAlex for articles. Pass --ingest with result numbers
(e.g. --ingest 1,3) to download and index some of them right away.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			papers, err := d.Library.Discover(cmd.Context(), sess, args[0], year, limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			printPapers(cmd, papers)
			if pick == "" {
				return nil
			}

			positions, err := parseSelection(pick)
			if err != nil {
				return err
			}
			selected, err := sess.Select(positions)
			if err != nil {
				return err
			}
			var sum ingestion_engine.Summary
			for n, p := range selected {
				if cmd.Context().Err() != nil {
					sum.NotStarted = len(selected) - n
					break
				}
				out := d.Ingestor.ProcessPaper(cmd.Context(), &p, ingestion_engine.Options{Index: !noIndex})
				printOutcome(cmd, out)
				sum.Add(out)
			}
			sum.Cancelled = cmd.Context().Err() != nil
			cmd.Println(sum.String())
			return summaryErr(sum)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only papers published in this year")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVar(&pick, "ingest", "", "comma-separated result numbers to ingest")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "download only, skip indexing")
	return cmd
}

func newLibraryCmd(d Deps) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "library [query]",
		Short: "Find indexed papers by title",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := ""
			if len(args) == 1 {
				q = args[0]
			}
			papers, err := d.Library.Find(cmd.Context(), q, limit)
			if err != nil {
				return err
			}
			printPapers(cmd, papers)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results")
	return cmd
}

func newDeleteCmd(d Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Remove a paper, its chunks and its downloaded file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.Library.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func newStatsCmd(d Deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := d.Library.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Printf("papers:    %d\n", st.PaperCount)
			cmd.Printf("chunks:    %d\n", st.ChunkCount)
			if st.EmbeddingModel != "" {
				cmd.Printf("embedding: %s (%d dims)\n", st.EmbeddingModel, st.Dimension)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newAskCmd(d Deps) *cobra.Command {
	var paperID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answer, err := d.Retrieval.Ask(cmd.Context(), strings.Join(args, " "), paperID)
			if err != nil {
				return err
			}
			cmd.Println(answer.Text)
			if len(answer.Sources) > 0 {
				cmd.Println()
				cmd.Println("Sources:")
				for _, h := range answer.Sources {
					cmd.Printf("  %s, chunk %d (%.2f)\n", h.Title, h.Record.Position, h.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&paperID, "paper", "", "restrict retrieval to one paper ID")
	return cmd
}

func printPapers(cmd *cobra.Command, papers []models.Paper) {
	if len(papers) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, p := range papers {
		author := "unknown"
		if len(p.Authors) > 0 {
			author = p.Authors[0]
			if len(p.Authors) > 1 {
				author += " et al."
			}
		}
		pdf := ""
		if p.PDFURL == "" && p.LocalPath == "" {
			pdf = " [no pdf]"
		}
		cmd.Printf("  [%d] %s (%d) %s, %s%s\n", i+1, p.Title, p.Year, author, p.ID, pdf)
	}
}
