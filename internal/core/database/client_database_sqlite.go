package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

var _ core.IndexStore = (*SQLiteStore)(nil)

// SQLiteStore is a single-file index for operators without Postgres.
// Vectors are stored as little-endian float32 blobs and ranked in process.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the index at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection serializes writers from concurrent pipelines
	db.SetMaxOpenConns(1)

	if err := bootstrapSQLite(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertPaper(ctx context.Context, p *models.Paper) error {
	if p == nil {
		return errors.New("nil paper")
	}
	authors, err := encodeAuthors(p.Authors)
	if err != nil {
		return err
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	const q = `
		INSERT INTO papers (id, title, title_fold, year, authors, abstract, doi, local_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			title_fold = excluded.title_fold,
			year = excluded.year,
			authors = excluded.authors,
			abstract = excluded.abstract,
			doi = excluded.doi,
			local_path = excluded.local_path
	`
	if _, err := s.db.ExecContext(ctx, q,
		p.ID, p.Title, strings.ToLower(p.Title), p.Year, authors, p.Abstract, p.DOI, p.LocalPath, created.UnixNano()); err != nil {
		return fmt.Errorf("%w: insert paper %s: %w", core.ErrStoreWrite, p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) InsertChunks(ctx context.Context, paperID, model string, records []models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := checkRecords(paperID, records)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", core.ErrStoreWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		storedModel string
		storedDim   int
	)
	if err := tx.QueryRowContext(ctx,
		`SELECT embedding_model, dimension FROM paperdex_meta WHERE version = 1`,
	).Scan(&storedModel, &storedDim); err != nil {
		return fmt.Errorf("%w: read meta: %w", core.ErrStoreWrite, err)
	}
	if err := checkModel(storedModel, storedDim, model, dim); err != nil {
		return err
	}
	if storedModel == "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE paperdex_meta SET embedding_model = ?, dimension = ?, updated_at = datetime('now') WHERE version = 1`,
			model, dim); err != nil {
			return fmt.Errorf("%w: write meta: %w", core.ErrStoreWrite, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_chunks WHERE paper_id = ?`, paperID); err != nil {
		return fmt.Errorf("%w: clear chunks: %w", core.ErrStoreWrite, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO paper_chunks (id, paper_id, position, text, embedding, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", core.ErrStoreWrite, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		r := &records[i]
		created := r.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.PaperID, r.Position, r.Text, floatsToBytes(r.Embedding), r.TokenCount, created.UnixNano(),
		); err != nil {
			return fmt.Errorf("%w: insert chunk %d: %w", core.ErrStoreWrite, r.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrStoreWrite, err)
	}
	return nil
}

func (s *SQLiteStore) KeywordSearch(ctx context.Context, query string, limit int) ([]models.Paper, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	// sqlite's lower() folds ASCII only, so titles are folded in Go on insert.
	// instr avoids LIKE wildcard escaping.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, year, authors, abstract, doi, local_path, created_at
		FROM papers
		WHERE instr(title_fold, ?) > 0
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, strings.ToLower(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Paper
	for rows.Next() {
		p, err := scanSQLitePaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) VectorSearch(ctx context.Context, query []float32, k int, paperID string) ([]models.SearchHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	var storedDim int
	if err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM paperdex_meta WHERE version = 1`).Scan(&storedDim); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	if storedDim == 0 {
		return nil, nil
	}
	if storedDim != len(query) {
		return nil, fmt.Errorf("%w: query dimension %d, collection %d", core.ErrMixedEmbeddings, len(query), storedDim)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.paper_id, c.position, c.text, c.embedding, c.token_count, c.created_at, p.title
		FROM paper_chunks c
		JOIN papers p ON p.id = c.paper_id
		WHERE ? = '' OR c.paper_id = ?
		ORDER BY c.seq ASC
	`, paperID, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var (
			h       models.SearchHit
			blob    []byte
			created int64
		)
		if err := rows.Scan(&h.Record.ID, &h.Record.PaperID, &h.Record.Position, &h.Record.Text,
			&blob, &h.Record.TokenCount, &created, &h.Title); err != nil {
			return nil, err
		}
		vec := bytesToFloats(blob)
		if len(vec) != len(query) {
			continue
		}
		h.Record.CreatedAt = time.Unix(0, created).UTC()
		h.Score = cosine(query, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *SQLiteStore) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	p, err := scanSQLitePaper(s.db.QueryRowContext(ctx, `
		SELECT id, title, year, authors, abstract, doi, local_path, created_at
		FROM papers WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) DeletePaper(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", core.ErrStoreWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_chunks WHERE paper_id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete chunks: %w", core.ErrStoreWrite, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete paper: %w", core.ErrStoreWrite, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper %s: %w", id, core.ErrNotFound)
	}
	// an emptied collection accepts any embedding model again
	if _, err := tx.ExecContext(ctx, `
		UPDATE paperdex_meta SET embedding_model = '', dimension = 0, updated_at = datetime('now')
		WHERE version = 1 AND NOT EXISTS (SELECT 1 FROM paper_chunks)
	`); err != nil {
		return fmt.Errorf("%w: reset meta: %w", core.ErrStoreWrite, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrStoreWrite, err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (models.IndexStats, error) {
	var st models.IndexStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM papers),
			(SELECT count(*) FROM paper_chunks),
			embedding_model, dimension
		FROM paperdex_meta WHERE version = 1
	`).Scan(&st.PaperCount, &st.ChunkCount, &st.EmbeddingModel, &st.Dimension)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func scanSQLitePaper(row rowScanner) (*models.Paper, error) {
	var (
		p       models.Paper
		authors string
		created int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Year, &authors, &p.Abstract, &p.DOI, &p.LocalPath, &created); err != nil {
		return nil, err
	}
	p.Authors = decodeAuthors(authors)
	p.CreatedAt = time.Unix(0, created).UTC()
	return &p, nil
}
