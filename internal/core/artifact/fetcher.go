package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

// BufferSize is the read size used while streaming a body to disk.
const BufferSize = 8 << 10

const DefaultTimeout = 60 * time.Second

// Progress is called after every buffer with the cumulative bytes written.
// total is -1 when the server did not send a content length.
type Progress func(done, total int64)

// Config tunes the fetcher.
//
// Dir:           destination directory, created on demand.
// Timeout:       upper bound for one fetch including the body.
// Disambiguate:  append a short paper ID hash to derived filenames.
type Config struct {
	Dir          string
	Timeout      time.Duration
	Disambiguate bool
	Client       *http.Client
}

// Fetcher streams remote PDFs into the download directory.
type Fetcher struct {
	dir          string
	timeout      time.Duration
	disambiguate bool
	client       *http.Client
}

func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("download directory is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		// the default client follows up to 10 redirects
		client = &http.Client{}
	}
	return &Fetcher{dir: cfg.Dir, timeout: cfg.Timeout, disambiguate: cfg.Disambiguate, client: client}, nil
}

// Dir returns the download directory.
func (f *Fetcher) Dir() string { return f.dir }

// PathFor returns where the artifact for p is written.
func (f *Fetcher) PathFor(p models.Paper) string {
	return filepath.Join(f.dir, DeriveFilename(p, f.disambiguate))
}

// Fetch downloads url into the path derived from paper.
// The body goes to a temporary file that is renamed into place only after the
// whole stream was written, so a failed fetch never leaves a complete-looking file.
func (f *Fetcher) Fetch(ctx context.Context, url string, paper models.Paper, progress Progress) (*models.DownloadedArtifact, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", core.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/pdf,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: %s", core.ErrFetch, url, resp.Status)
	}

	dest := f.PathFor(paper)
	tmp, err := os.CreateTemp(f.dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	total := resp.ContentLength
	if total <= 0 {
		total = -1
	}

	hash := sha256.New()
	written, err := copyWithProgress(io.MultiWriter(tmp, hash), resp.Body, total, progress)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", core.ErrFetch, err)
	}
	if total > 0 && written != total {
		return nil, fmt.Errorf("%w: short body: got %d of %d bytes", core.ErrFetch, written, total)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("rename into place: %w", err)
	}
	committed = true

	log.Printf("Fetcher: wrote %d bytes to %s", written, dest)

	paper.LocalPath = dest
	return &models.DownloadedArtifact{
		Paper:  paper,
		Path:   dest,
		Size:   written,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// copyWithProgress copies src to dst in BufferSize reads, reporting after each write.
func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress Progress) (int64, error) {
	buf := make([]byte, BufferSize)
	var done int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return done, werr
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if rerr == io.EOF {
			return done, nil
		}
		if rerr != nil {
			return done, rerr
		}
	}
}
