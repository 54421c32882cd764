package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/markdave123-py/paperdex/internal/services"
)

type ChatHandler struct {
	retrieval *services.RetrievalService
}

func NewChatHandler(retrieval *services.RetrievalService) *ChatHandler {
	return &ChatHandler{retrieval: retrieval}
}

type ChatRequest struct {
	PaperID string `json:"paper_id"`
	Query   string `json:"query"`
}

// Query answers a question from the indexed chunks, optionally scoped to one paper.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	answer, err := h.retrieval.Ask(r.Context(), req.Query, req.PaperID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}
