package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appMiddleware "github.com/markdave123-py/paperdex/internal/api/middlewares"
	"github.com/markdave123-py/paperdex/internal/core"
	"github.com/markdave123-py/paperdex/internal/core/ingestion_engine"
	"github.com/markdave123-py/paperdex/internal/models"
	"github.com/markdave123-py/paperdex/internal/services"
)

type PapersHandler struct {
	ingestor ingestion_engine.Ingestor
	meta     core.MetadataProvider
	library  *services.LibraryService
	sessions *services.Sessions
}

func NewPapersHandler(ing ingestion_engine.Ingestor, meta core.MetadataProvider, library *services.LibraryService, sessions *services.Sessions) *PapersHandler {
	return &PapersHandler{ingestor: ing, meta: meta, library: library, sessions: sessions}
}

type IngestRequest struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Year    int      `json:"year"`
	Authors []string `json:"authors"`
	NoIndex bool     `json:"no_index"`
}

type SelectionRequest struct {
	Selection []int `json:"selection"`
	NoIndex   bool  `json:"no_index"`
}

// Ingest resolves the paper (by catalogue ID or direct URL) and queues it for the pipeline.
func (h *PapersHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	var paper models.Paper
	switch {
	case req.URL != "":
		paper = ingestion_engine.PaperFromURL(req.URL, req.Title, req.Year, req.Authors)
	case req.ID != "":
		if h.meta == nil {
			http.Error(w, "no metadata provider configured", http.StatusServiceUnavailable)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		p, err := h.meta.GetPaper(ctx, req.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		paper = *p
	default:
		http.Error(w, "id or url is required", http.StatusBadRequest)
		return
	}
	if paper.PDFURL == "" {
		writeError(w, fmt.Errorf("%s: %w", paper.ID, core.ErrNoPDF))
		return
	}

	h.ingestor.Enqueue(paper, ingestion_engine.Options{Index: !req.NoIndex})
	log.Printf("PapersHandler: queued %s", paper.ID)
	writeJSON(w, http.StatusAccepted, paper)
}

// Search queries the external catalogue and remembers the results for IngestSelection.
func (h *PapersHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sess := h.sessions.For(appMiddleware.UserID(r.Context()))
	papers, err := h.library.Discover(r.Context(), sess, q, year, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

// IngestSelection queues papers picked by 1-based position from the caller's last search.
func (h *PapersHandler) IngestSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Selection) == 0 {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	sess := h.sessions.For(appMiddleware.UserID(r.Context()))
	papers, err := sess.Select(req.Selection)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	queued := make([]models.Paper, 0, len(papers))
	for _, p := range papers {
		if p.PDFURL == "" {
			log.Printf("PapersHandler: %s has no pdf, not queued", p.ID)
			continue
		}
		h.ingestor.Enqueue(p, ingestion_engine.Options{Index: !req.NoIndex})
		queued = append(queued, p)
	}
	writeJSON(w, http.StatusAccepted, queued)
}

// Library lists indexed papers whose title contains q.
func (h *PapersHandler) Library(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	papers, err := h.library.Find(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *PapersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.library.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PapersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.library.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline error kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNoPDF):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, core.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFetch):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}
