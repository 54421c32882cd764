package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

var _ core.IndexStore = (*PostgresStore)(nil)

// PostgresStore keeps papers and pgvector embeddings in Postgres.
// database/sql pools connections, so concurrent pipelines never share one handle.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens, pings and bootstraps the database at databaseURL.
// When sslCertPath is set the connection verifies the server against that CA.
func NewPostgresStore(ctx context.Context, databaseURL, sslCertPath string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := databaseURL
	if sslCertPath != "" {
		if _, err := os.Stat(sslCertPath); err != nil {
			return nil, fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
		}
		// Append SSL params to the provided DATABASE_URL safely.
		u, err := url.Parse(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		q := u.Query()
		q.Set("sslmode", "verify-ca")
		q.Set("sslrootcert", sslCertPath)
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(pingCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (c *PostgresStore) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InsertPaper upserts the paper row; re-ingesting refreshes its metadata.
func (c *PostgresStore) InsertPaper(ctx context.Context, p *models.Paper) error {
	if p == nil {
		return errors.New("nil paper")
	}
	authors, err := encodeAuthors(p.Authors)
	if err != nil {
		return err
	}
	var created any
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt
	}
	const q = `
		INSERT INTO papers (id, title, year, authors, abstract, doi, local_path, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, COALESCE($8, now()))
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			year = EXCLUDED.year,
			authors = EXCLUDED.authors,
			abstract = EXCLUDED.abstract,
			doi = EXCLUDED.doi,
			local_path = EXCLUDED.local_path
	`
	if _, err := c.db.ExecContext(ctx, q,
		p.ID, p.Title, p.Year, authors, p.Abstract, p.DOI, p.LocalPath, created); err != nil {
		return fmt.Errorf("%w: insert paper %s: %w", core.ErrStoreWrite, p.ID, err)
	}
	return nil
}

// InsertChunks replaces the paper's chunks in a single transaction.
func (c *PostgresStore) InsertChunks(ctx context.Context, paperID, model string, records []models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := checkRecords(paperID, records)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", core.ErrStoreWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		storedModel string
		storedDim   int
	)
	if err := tx.QueryRowContext(ctx,
		`SELECT embedding_model, dimension FROM paperdex_meta WHERE version = 1 FOR UPDATE`,
	).Scan(&storedModel, &storedDim); err != nil {
		return fmt.Errorf("%w: read meta: %w", core.ErrStoreWrite, err)
	}
	if err := checkModel(storedModel, storedDim, model, dim); err != nil {
		return err
	}
	if storedModel == "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE paperdex_meta SET embedding_model = $1, dimension = $2, updated_at = now() WHERE version = 1`,
			model, dim); err != nil {
			return fmt.Errorf("%w: write meta: %w", core.ErrStoreWrite, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_chunks WHERE paper_id = $1`, paperID); err != nil {
		return fmt.Errorf("%w: clear chunks: %w", core.ErrStoreWrite, err)
	}

	const q = `
		INSERT INTO paper_chunks
			(id, paper_id, position, text, embedding, token_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", core.ErrStoreWrite, err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		var created any
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.PaperID, r.Position, r.Text, pgvector.NewVector(r.Embedding), r.TokenCount, created,
		); err != nil {
			return fmt.Errorf("%w: insert chunk %d: %w", core.ErrStoreWrite, r.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrStoreWrite, err)
	}
	return nil
}

func (c *PostgresStore) KeywordSearch(ctx context.Context, query string, limit int) ([]models.Paper, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	const q = `
		SELECT id, title, year, authors::text, abstract, doi, local_path, created_at
		FROM papers
		WHERE strpos(lower(title), lower($1)) > 0
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// VectorSearch ranks chunks by cosine distance; equal scores keep insertion order.
func (c *PostgresStore) VectorSearch(ctx context.Context, query []float32, k int, paperID string) ([]models.SearchHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	var storedDim int
	if err := c.db.QueryRowContext(ctx,
		`SELECT dimension FROM paperdex_meta WHERE version = 1`).Scan(&storedDim); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	if storedDim == 0 {
		return nil, nil
	}
	if storedDim != len(query) {
		return nil, fmt.Errorf("%w: query dimension %d, collection %d", core.ErrMixedEmbeddings, len(query), storedDim)
	}

	const q = `
		SELECT c.id, c.paper_id, c.position, c.text, c.token_count, c.created_at,
		       p.title, 1 - (c.embedding <=> $1) AS score
		FROM paper_chunks c
		JOIN papers p ON p.id = c.paper_id
		WHERE $3 = '' OR c.paper_id = $3
		ORDER BY c.embedding <=> $1, c.seq ASC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(query), k, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(
			&h.Record.ID, &h.Record.PaperID, &h.Record.Position, &h.Record.Text,
			&h.Record.TokenCount, &h.Record.CreatedAt, &h.Title, &h.Score,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (c *PostgresStore) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	const q = `
		SELECT id, title, year, authors::text, abstract, doi, local_path, created_at
		FROM papers WHERE id = $1
	`
	p, err := scanPaper(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePaper removes the paper and its chunks in one transaction.
func (c *PostgresStore) DeletePaper(ctx context.Context, id string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", core.ErrStoreWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_chunks WHERE paper_id = $1`, id); err != nil {
		return fmt.Errorf("%w: delete chunks: %w", core.ErrStoreWrite, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete paper: %w", core.ErrStoreWrite, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper %s: %w", id, core.ErrNotFound)
	}
	// an emptied collection accepts any embedding model again
	if _, err := tx.ExecContext(ctx, `
		UPDATE paperdex_meta SET embedding_model = '', dimension = 0, updated_at = now()
		WHERE version = 1 AND NOT EXISTS (SELECT 1 FROM paper_chunks)
	`); err != nil {
		return fmt.Errorf("%w: reset meta: %w", core.ErrStoreWrite, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", core.ErrStoreWrite, err)
	}
	return nil
}

func (c *PostgresStore) Stats(ctx context.Context) (models.IndexStats, error) {
	var s models.IndexStats
	const q = `
		SELECT
			(SELECT count(*) FROM papers),
			(SELECT count(*) FROM paper_chunks),
			m.embedding_model, m.dimension
		FROM paperdex_meta m WHERE m.version = 1
	`
	if err := c.db.QueryRowContext(ctx, q).Scan(&s.PaperCount, &s.ChunkCount, &s.EmbeddingModel, &s.Dimension); err != nil {
		return s, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (*models.Paper, error) {
	var (
		p       models.Paper
		authors string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Year, &authors, &p.Abstract, &p.DOI, &p.LocalPath, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Authors = decodeAuthors(authors)
	return &p, nil
}
