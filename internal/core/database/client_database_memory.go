package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/models"
)

var _ core.IndexStore = (*MemoryStore)(nil)

type memChunk struct {
	seq    uint64
	record models.IndexRecord
}

// MemoryStore is a process-local index guarded by a RWMutex.
// Used by tests and by the API when no database is wanted.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    uint64
	papers map[string]models.Paper
	order  []string // paper ids in first-insert order
	chunks map[string][]memChunk
	model  string
	dim    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		papers: make(map[string]models.Paper),
		chunks: make(map[string][]memChunk),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) InsertPaper(_ context.Context, p *models.Paper) error {
	if p == nil {
		return errors.New("nil paper")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	cp.Authors = append([]string(nil), p.Authors...)
	if prev, ok := m.papers[p.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		m.order = append(m.order, p.ID)
	}
	m.papers[p.ID] = cp
	return nil
}

func (m *MemoryStore) InsertChunks(_ context.Context, paperID, model string, records []models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := checkRecords(paperID, records)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.papers[paperID]; !ok {
		return fmt.Errorf("%w: paper %s is not stored", core.ErrStoreWrite, paperID)
	}
	if err := checkModel(m.model, m.dim, model, dim); err != nil {
		return err
	}
	m.model, m.dim = model, dim

	out := make([]memChunk, len(records))
	for i, r := range records {
		m.seq++
		r.Embedding = append([]float32(nil), r.Embedding...)
		out[i] = memChunk{seq: m.seq, record: r}
	}
	m.chunks[paperID] = out
	return nil
}

func (m *MemoryStore) KeywordSearch(_ context.Context, query string, limit int) ([]models.Paper, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Paper
	for _, id := range m.order {
		p := m.papers[id]
		if strings.Contains(strings.ToLower(p.Title), q) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) VectorSearch(_ context.Context, query []float32, k int, paperID string) ([]models.SearchHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dim == 0 {
		return nil, nil
	}
	if m.dim != len(query) {
		return nil, fmt.Errorf("%w: query dimension %d, collection %d", core.ErrMixedEmbeddings, len(query), m.dim)
	}

	type scored struct {
		seq uint64
		hit models.SearchHit
	}
	var all []scored
	for id, cs := range m.chunks {
		if paperID != "" && id != paperID {
			continue
		}
		title := m.papers[id].Title
		for _, c := range cs {
			all = append(all, scored{seq: c.seq, hit: models.SearchHit{
				Record: c.record,
				Title:  title,
				Score:  cosine(query, c.record.Embedding),
			}})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].hit.Score != all[j].hit.Score {
			return all[i].hit.Score > all[j].hit.Score
		}
		return all[i].seq < all[j].seq
	})
	if len(all) > k {
		all = all[:k]
	}
	hits := make([]models.SearchHit, len(all))
	for i, s := range all {
		hits[i] = s.hit
	}
	return hits, nil
}

func (m *MemoryStore) GetPaper(_ context.Context, id string) (*models.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.papers[id]
	if !ok {
		return nil, fmt.Errorf("paper %s: %w", id, core.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryStore) DeletePaper(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.papers[id]; !ok {
		return fmt.Errorf("paper %s: %w", id, core.ErrNotFound)
	}
	delete(m.papers, id)
	delete(m.chunks, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if len(m.chunks) == 0 {
		m.model, m.dim = "", 0
	}
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (models.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, cs := range m.chunks {
		n += len(cs)
	}
	return models.IndexStats{
		PaperCount:     len(m.papers),
		ChunkCount:     n,
		EmbeddingModel: m.model,
		Dimension:      m.dim,
	}, nil
}
