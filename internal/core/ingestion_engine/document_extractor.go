package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/markdave123-py/paperdex/internal/core"
)

var (
	_ core.TextExtractor = (*PDFExtractor)(nil)
	_ core.TextExtractor = (*DocconvExtractor)(nil)
	_ core.TextExtractor = (ChainExtractor)(nil)
)

// pageSeparator joins the text of consecutive pages.
const pageSeparator = "\n\n"

// PDFExtractor reads a PDF page by page with ledongthuc/pdf.
// Pages that fail to extract are skipped; only an unreadable file is fatal.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	// the parser panics on some malformed xref tables instead of returning an error
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s: %v", core.ErrExtraction, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", core.ErrExtraction, path, err)
	}
	defer f.Close()

	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pageText, ok := extractPage(r, i)
		if !ok {
			log.Printf("PDFExtractor: skipping page %d of %s", i, path)
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		parts = append(parts, pageText)
	}
	return strings.Join(parts, pageSeparator), nil
}

// extractPage returns the plain text of page i, reporting false when the page cannot be read.
func extractPage(r *pdf.Reader, i int) (text string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			text, ok = "", false
		}
	}()

	page := r.Page(i)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return text, true
}

// DocconvExtractor extracts text with sajari/docconv (pdftotext under the hood).
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// Extract uses docconv to extract text from the PDF at path.
func (e *DocconvExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", core.ErrExtraction, path, err)
	}
	defer f.Close()

	res, err := docconv.Convert(f, "application/pdf", e.useReadability)
	if err != nil {
		return "", fmt.Errorf("%w: docconv: %v", core.ErrExtraction, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return res.Body, nil
}

// ChainExtractor tries each extractor in order and returns the first non-empty text.
type ChainExtractor []core.TextExtractor

func (c ChainExtractor) Extract(ctx context.Context, path string) (string, error) {
	var errs []error
	for _, ex := range c {
		text, err := ex.Extract(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			errs = append(errs, err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	if len(c) == 0 {
		return "", fmt.Errorf("%w: no extractor configured", core.ErrExtraction)
	}
	// at least one extractor read the file but found no text (e.g. a scanned PDF)
	if len(errs) < len(c) {
		return "", nil
	}
	joined := errors.Join(errs...)
	if !errors.Is(joined, core.ErrExtraction) {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, joined)
	}
	return "", joined
}
